// Package langdetect guesses the ISO 639-1 language of article text. The
// detector is built once and shared; construction loads language models and
// is expensive.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Samples shorter than this carry too little signal for a reliable guess.
const minSampleLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Detect returns a lowercase two-letter language code for the article, or ""
// when the text is too short or ambiguous. Title and content are combined so
// short teasers still classify.
func Detect(title, content string) string {
	sample := strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(content))
	if sample == "" {
		return ""
	}

	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minSampleLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
