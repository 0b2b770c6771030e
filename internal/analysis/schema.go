package analysis

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "JobFields")
	Description string        // System prompt preamble describing the task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map"
	Description string // Description for the LLM
	Required    bool
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// JobFieldsSchema returns the extraction schema for job postings.
func JobFieldsSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "JobFields",
		Description: `You are an expert job posting parser. COPY TEXT VERBATIM - do not paraphrase, summarize, or reword.
Your task is to extract and categorize information from a raw job posting.
EXCLUDE: Application form fields, EEO statements, legal disclaimers.`,
		Fields: []SchemaField{
			{
				Name:        "requirements",
				Type:        "[\"string\"]",
				Description: "Technical requirements, qualifications, skills needed - copy each requirement verbatim",
				Required:    true,
			},
			{
				Name:        "responsibilities",
				Type:        "[\"string\"]",
				Description: "Job duties, day-to-day work - copy each responsibility verbatim",
				Required:    true,
			},
			{
				Name:        "seniority",
				Type:        "\"string\"",
				Description: "Seniority level if stated (junior, mid, senior, staff)",
				Required:    false,
			},
			{
				Name:        "location",
				Type:        "\"string\"",
				Description: "Work location or remote policy if stated",
				Required:    false,
			},
			{
				Name:        "salary",
				Type:        "\"string\"",
				Description: "Salary or compensation range if stated",
				Required:    false,
			},
		},
	}
}

// extractedFieldsSchema validates the JSON shape of an extraction response.
const extractedFieldsSchema = `{
  "type": "object",
  "properties": {
    "requirements": {"type": "array", "items": {"type": "string"}},
    "responsibilities": {"type": "array", "items": {"type": "string"}},
    "seniority": {"type": ["string", "null"]},
    "location": {"type": ["string", "null"]},
    "salary": {"type": ["string", "null"]}
  },
  "required": ["requirements", "responsibilities"]
}`

// recommendationSchema validates the JSON shape of a recommendation response.
const recommendationSchema = `{
  "type": "object",
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 1},
    "should_apply": {"type": "boolean"},
    "reason": {"type": "string", "minLength": 1}
  },
  "required": ["score", "should_apply", "reason"]
}`

// validateJSON checks a raw LLM response against a JSON schema and returns a
// readable description of the first few violations.
func validateJSON(schemaJSON, document string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("failed to validate response: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for i, desc := range result.Errors() {
		if i >= 3 {
			msgs = append(msgs, "...")
			break
		}
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
}
