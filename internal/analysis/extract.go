package analysis

import (
	"fmt"
	"strings"
)

// ExtractJSONObject pulls the first well-formed JSON object out of raw text.
// The enrichment service wraps its payload in prose or markdown code fences
// often enough that strict parsing of the whole response is useless. Total
// inability to find an object is a hard failure of the enrichment call.
func ExtractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("response is empty")
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("response contains no JSON object")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("response contains an unterminated JSON object")
}
