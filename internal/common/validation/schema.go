package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema for request payloads.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema and panics on an invalid definition.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Validate checks a raw JSON document against the schema.
func (s *Schema) Validate(document []byte) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ==========================
// Request schemas
// ==========================

var (
	StepInputSchema = MustCompile("step-input", `{
		"type": "object",
		"required": ["step"],
		"properties": {
			"step": {"type": "string", "minLength": 1},
			"text": {"type": "string", "maxLength": 10000}
		}
	}`)

	AccidentTypeSchema = MustCompile("accident-type", `{
		"type": "object",
		"required": ["accidentType"],
		"properties": {
			"accidentType": {"type": "string", "enum": ["collision", "theft", "weather", "vandalism", "hit_and_run", "other"]}
		}
	}`)

	PhotoUploadSchema = MustCompile("photo-upload", `{
		"type": "object",
		"required": ["photos"],
		"properties": {
			"photos": {
				"type": "array",
				"maxItems": 50,
				"items": {
					"type": "object",
					"required": ["url", "category"],
					"properties": {
						"id": {"type": "string"},
						"url": {"type": "string", "minLength": 1},
						"category": {"type": "string", "enum": ["front", "rear", "left", "right", "interior", "damage", "document"]},
						"timestamp": {"type": "string", "format": "date-time"},
						"aiAnalysis": {
							"type": "object",
							"properties": {
								"damageDetected": {"type": "boolean"},
								"damageAreas": {"type": "array", "items": {"type": "string"}},
								"severity": {"type": "string"},
								"confidence": {"type": "number", "minimum": 0, "maximum": 1}
							}
						}
					}
				}
			}
		}
	}`)

	ClaimPatchSchema = MustCompile("claim-patch", `{
		"type": "object",
		"additionalProperties": false,
		"minProperties": 1,
		"properties": {
			"status": {"type": "string"},
			"assignedAdjuster": {"type": "string", "minLength": 1},
			"estimatedCompletion": {"type": "string", "format": "date-time"}
		}
	}`)

	NotificationSchema = MustCompile("notification", `{
		"type": "object",
		"required": ["type", "message"],
		"properties": {
			"type": {"type": "string", "enum": ["status_update", "document_request", "assignment", "payment"]},
			"message": {"type": "string", "minLength": 1, "maxLength": 2000}
		}
	}`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	phonePattern := regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	return phonePattern.MatchString(phone)
}
