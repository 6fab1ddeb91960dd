package devices

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// deviceMetadataSchema constrains the free-form metadata bag so that known
// keys keep their types across releases. Unknown keys are allowed but must be
// scalar or flat objects, never nested arrays of mixed types.
const deviceMetadataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"firmware_version": {"type": "string"},
		"hardware_revision": {"type": "string"},
		"sensor_count": {"type": "integer", "minimum": 0},
		"battery_powered": {"type": "boolean"},
		"notes": {"type": "string", "maxLength": 2000},
		"tags": {"type": "array", "items": {"type": "string"}}
	}
}`

type MetadataValidator struct {
	schema *jsonschema.Schema
}

func NewMetadataValidator() (*MetadataValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("device_metadata.json", bytes.NewReader([]byte(deviceMetadataSchema))); err != nil {
		return nil, fmt.Errorf("failed to load metadata schema: %w", err)
	}
	schema, err := compiler.Compile("device_metadata.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile metadata schema: %w", err)
	}
	return &MetadataValidator{schema: schema}, nil
}

// Validate checks a metadata bag against the schema. nil metadata is valid.
func (v *MetadataValidator) Validate(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}
	// Round-trip through JSON so numeric types match what the schema engine expects.
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("metadata is not serializable: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("metadata is not serializable: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid device metadata: %w", err)
	}
	return nil
}
