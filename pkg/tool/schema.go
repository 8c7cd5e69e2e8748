package tool

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// compileSchema compiles a descriptor's parameter schema once at
// registration time. A nil schema compiles to an accept-anything object
// schema.
func compileSchema(schemaMap map[string]interface{}) (*gojsonschema.Schema, error) {
	if schemaMap == nil {
		schemaMap = map[string]interface{}{"type": "object"}
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}

// validateArgs validates decoded arguments against a compiled schema.
func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := []string{}
		for _, resultErr := range result.Errors() {
			errs = append(errs, resultErr.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}

// ObjectSchema builds a JSON Schema for an object with the given
// properties and required names. Convenience for built-in tools.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty builds a string property schema with a description.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// IntegerProperty builds an integer property schema with a description.
func IntegerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}
