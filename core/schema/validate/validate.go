package validate

import (
	"embed"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

const (
	SignalsSchema        = "schemas/v1/signals.schema.json"
	DecisionReportSchema = "schemas/v1/decision_report.schema.json"
)

//go:embed schemas/v1/*.json
var schemaFS embed.FS

// ValidateSignalsBundle checks a signals bundle document before it is decoded.
func ValidateSignalsBundle(data []byte) error {
	return ValidateJSON(SignalsSchema, data)
}

// ValidateDecisionReport checks an encoded decision report.
func ValidateDecisionReport(data []byte) error {
	return ValidateJSON(DecisionReportSchema, data)
}

func ValidateJSON(schemaName string, data []byte) error {
	schema, err := loadSchema(schemaName)
	if err != nil {
		return err
	}
	return validateJSON(schema, data)
}

func loadSchema(schemaName string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
