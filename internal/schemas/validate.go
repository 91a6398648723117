// Package schemas provides JSON Schema validation for structured extraction
// output before it is persisted.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// jobExtractionSchema is the contract the extraction collaborator must meet.
// Kept inline: it is the only schema the pipeline validates.
const jobExtractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "JobExtraction",
  "type": "object",
  "required": ["summary", "requirements", "responsibilities"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "requirements": {"type": "array", "items": {"type": "string"}},
    "responsibilities": {"type": "array", "items": {"type": "string"}},
    "skills": {"type": "array", "items": {"type": "string"}},
    "admin_info": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "additionalProperties": true
}`

// ValidationError represents a schema validation failure with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "schema validation failed"
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// ValidateJobExtraction checks a raw extraction JSON document against the
// job-extraction schema. Returns a *ValidationError listing every failing
// field when the document does not conform.
func ValidateJobExtraction(document string) error {
	schemaLoader := gojsonschema.NewStringLoader(jobExtractionSchema)
	documentLoader := gojsonschema.NewStringLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate extraction: %w", err)
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return verr
}
