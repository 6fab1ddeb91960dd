package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/readings?"+rawQuery, nil)
	return c
}

func TestReadingFilterFromQuery(t *testing.T) {
	deviceID := uuid.New()
	sensorID := uuid.New()

	c := queryContext(t, "device_id="+deviceID.String()+
		"&sensor_id="+sensorID.String()+
		"&from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z&limit=25&mqtt_only=1")

	filter, err := readingFilterFromQuery(c)
	require.NoError(t, err)

	require.NotNil(t, filter.DeviceID)
	assert.Equal(t, deviceID, *filter.DeviceID)
	require.NotNil(t, filter.SensorID)
	assert.Equal(t, sensorID, *filter.SensorID)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.True(t, filter.From.Before(*filter.To))
	assert.Equal(t, 25, filter.Limit)
	assert.True(t, filter.MQTTOnly)
}

func TestReadingFilterFromQueryEmpty(t *testing.T) {
	filter, err := readingFilterFromQuery(queryContext(t, ""))
	require.NoError(t, err)

	assert.Nil(t, filter.DeviceID)
	assert.Nil(t, filter.SensorID)
	assert.Nil(t, filter.From)
	assert.Nil(t, filter.To)
	assert.Zero(t, filter.Limit)
	assert.False(t, filter.MQTTOnly)
}

func TestReadingFilterFromQueryRejectsBadInput(t *testing.T) {
	cases := []string{
		"device_id=not-a-uuid",
		"sensor_id=42",
		"from=yesterday",
		"to=2026-13-01",
		"limit=0",
		"limit=ten",
	}
	for _, rawQuery := range cases {
		_, err := readingFilterFromQuery(queryContext(t, rawQuery))
		assert.Error(t, err, rawQuery)
	}
}
