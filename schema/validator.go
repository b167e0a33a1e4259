// Package submitschema validates article submission payloads against the
// embedded JSON schema before they enter the pipeline.
package submitschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed submit_article.schema.json
var submitArticleSchemaJSON string

// Submission is a validated article submission. Pointer fields were absent
// from the payload when nil.
type Submission struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Content     *string `json:"content,omitempty"`
	Summary     *string `json:"summary,omitempty"`
	URL         *string `json:"url,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Source      *string `json:"source,omitempty"`
	Language    *string `json:"language,omitempty"`
	PublishedAt *string `json:"publishedAt,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateSubmission decodes and validates a raw submission body.
func ValidateSubmission(payload json.RawMessage) (*Submission, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var submission Submission
	if err := json.Unmarshal(normalized, &submission); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&submission); err != nil {
		return nil, err
	}

	return &submission, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("submit_article.schema.json", strings.NewReader(submitArticleSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("submit_article.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(submission *Submission) error {
	if submission == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(submission.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	if submission.URL != nil {
		if err := validateURI("url", *submission.URL); err != nil {
			return err
		}
	}
	if submission.ImageURL != nil {
		if err := validateURI("imageUrl", *submission.ImageURL); err != nil {
			return err
		}
	}
	if submission.PublishedAt != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*submission.PublishedAt)); err != nil {
			return fmt.Errorf("publishedAt must be RFC3339: %w", err)
		}
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
