package llm

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/fleveque/ecosort/internal/model"
)

// The output schema is the one place where the external contract must match
// byte-for-byte: field names, the category enum and the required list. It is
// declared once here and rendered into each provider's schema dialect below.
const (
	FieldItemName            = "itemName"
	FieldCategory            = "category"
	FieldExplanation         = "explanation"
	FieldDisposalInstruction = "disposalInstruction"
	FieldConfidence          = "confidence"
)

// RequiredFields lists every field of the result; all of them are mandatory.
var RequiredFields = []string{
	FieldItemName,
	FieldCategory,
	FieldExplanation,
	FieldDisposalInstruction,
	FieldConfidence,
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
)

type fieldSpec struct {
	name        string
	kind        fieldKind
	description string
	enum        []string
}

func schemaFields() []fieldSpec {
	return []fieldSpec{
		{FieldItemName, kindString, "Short name of the object in the image (e.g. plastic bottle, banana peel).", nil},
		{FieldCategory, kindString, "Waste category.", CategoryEnum()},
		{FieldExplanation, kindString, "Brief explanation of why the item belongs to this category.", nil},
		{FieldDisposalInstruction, kindString, "Concrete instructions for handling or disposing of the item.", nil},
		{FieldConfidence, kindNumber, "Confidence of the prediction (0-100).", nil},
	}
}

// CategoryEnum returns the five wire values in schema order.
func CategoryEnum() []string {
	out := make([]string, 0, len(model.AllCategories))
	for _, c := range model.AllCategories {
		out = append(out, string(c))
	}
	return out
}

var languageNames = map[string]string{
	"vi": "Vietnamese",
	"en": "English",
}

// Instruction is the fixed prompt sent next to the image.
func Instruction(lang string) string {
	name, ok := languageNames[lang]
	if !ok {
		name = languageNames["en"]
	}
	return fmt.Sprintf("Look at this image and identify what kind of waste it is. "+
		"Return the result as JSON following the defined schema. "+
		"The category must be exactly one of the enum values; write itemName, explanation "+
		"and disposalInstruction in %s.", name)
}

// ContractSchema is the provider-neutral JSON Schema of the result.
func ContractSchema() map[string]any {
	props := make(map[string]any, len(RequiredFields))
	for _, f := range schemaFields() {
		p := map[string]any{
			"type":        jsonType(f.kind),
			"description": f.description,
		}
		if f.enum != nil {
			p["enum"] = f.enum
		}
		props[f.name] = p
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   RequiredFields,
	}
}

func jsonType(k fieldKind) string {
	if k == kindNumber {
		return "number"
	}
	return "string"
}

// geminiSchema renders the contract as a genai.Schema for GenerationConfig.ResponseSchema.
func geminiSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(RequiredFields))
	for _, f := range schemaFields() {
		s := &genai.Schema{Type: genai.TypeString, Description: f.description}
		if f.kind == kindNumber {
			s.Type = genai.TypeNumber
		}
		// Gemini only honours an enum on strings declared with format "enum".
		if f.enum != nil {
			s.Format = "enum"
			s.Enum = f.enum
		}
		props[f.name] = s
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   RequiredFields,
	}
}

// openAISchema renders the contract for OpenAI structured outputs (strict mode
// requires additionalProperties=false and every property listed as required).
func openAISchema() *jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(RequiredFields))
	for _, f := range schemaFields() {
		d := jsonschema.Definition{Type: jsonschema.String, Description: f.description, Enum: f.enum}
		if f.kind == kindNumber {
			d.Type = jsonschema.Number
		}
		props[f.name] = d
	}
	return &jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             RequiredFields,
		AdditionalProperties: false,
	}
}

// anthropicToolSchema renders the contract as the input schema of the forced
// submit tool. Claude returns structured data by "calling" it.
func anthropicToolSchema() anthropic.ToolInputSchemaParam {
	return anthropic.ToolInputSchemaParam{
		Properties: ContractSchema()["properties"],
		Required:   RequiredFields,
	}
}
