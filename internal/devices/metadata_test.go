package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValidator(t *testing.T) {
	validator, err := NewMetadataValidator()
	require.NoError(t, err)

	assert.NoError(t, validator.Validate(nil))
	assert.NoError(t, validator.Validate(map[string]any{}))

	assert.NoError(t, validator.Validate(map[string]any{
		"firmware_version": "2.4.1",
		"sensor_count":     3,
		"battery_powered":  true,
		"tags":             []string{"greenhouse", "row-4"},
	}))

	// Unknown keys are allowed.
	assert.NoError(t, validator.Validate(map[string]any{
		"vendor_field": "anything",
	}))
}

func TestMetadataValidatorRejectsWrongTypes(t *testing.T) {
	validator, err := NewMetadataValidator()
	require.NoError(t, err)

	assert.Error(t, validator.Validate(map[string]any{
		"sensor_count": "three",
	}))
	assert.Error(t, validator.Validate(map[string]any{
		"sensor_count": -1,
	}))
	assert.Error(t, validator.Validate(map[string]any{
		"battery_powered": "yes",
	}))
	assert.Error(t, validator.Validate(map[string]any{
		"tags": []any{"ok", 42},
	}))
}
