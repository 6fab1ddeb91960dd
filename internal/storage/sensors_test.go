package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensorValidate(t *testing.T) {
	sensor := &Sensor{Name: "greenhouse temp", Type: "temperature", Unit: "celsius", RangeMin: -40, RangeMax: 85}
	assert.NoError(t, sensor.Validate())

	inverted := &Sensor{Name: "broken", Type: "humidity", Unit: "%", RangeMin: 100, RangeMax: 0}
	assert.Error(t, inverted.Validate())

	flat := &Sensor{Name: "flat", Type: "pressure", Unit: "hPa", RangeMin: 5, RangeMax: 5}
	assert.Error(t, flat.Validate())
}

func TestSensorValidatePublishInterval(t *testing.T) {
	ok := 60
	sensor := &Sensor{Name: "s", Type: "light", Unit: "lux", RangeMin: 0, RangeMax: 100000, PublishInterval: &ok}
	assert.NoError(t, sensor.Validate())

	zero := 0
	sensor.PublishInterval = &zero
	assert.Error(t, sensor.Validate())

	tooLong := 86401
	sensor.PublishInterval = &tooLong
	assert.Error(t, sensor.Validate())
}

func TestSensorInRange(t *testing.T) {
	sensor := &Sensor{RangeMin: -40, RangeMax: 85}

	assert.True(t, sensor.InRange(0))
	assert.True(t, sensor.InRange(-40)) // bounds are inclusive
	assert.True(t, sensor.InRange(85))
	assert.False(t, sensor.InRange(-40.1))
	assert.False(t, sensor.InRange(85.1))
}
