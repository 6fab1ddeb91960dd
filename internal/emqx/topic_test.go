package emqx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTopicFilter(t *testing.T) {
	valid := []string{
		"sensors/+/data",
		"sensors/#",
		"#",
		"+",
		"iot/devices/dev-1/status",
		"iot/commands/dev-1/#",
	}
	for _, pattern := range valid {
		assert.NoError(t, ValidateTopicFilter(pattern), pattern)
	}

	invalid := []string{
		"",
		"sensors/+x/data",
		"sensors/#/data",
		"sensors/x#",
		"sensors/data+",
	}
	for _, pattern := range invalid {
		err := ValidateTopicFilter(pattern)
		assert.ErrorIs(t, err, ErrInvalidTopicPattern, pattern)
	}
}

func TestExpandPattern(t *testing.T) {
	assert.Equal(t, "iot/sensors/dev-42/data",
		ExpandPattern("iot/sensors/{device_id}/data", "dev-42"))
	assert.Equal(t, "iot/static/topic",
		ExpandPattern("iot/static/topic", "dev-42"))
}
