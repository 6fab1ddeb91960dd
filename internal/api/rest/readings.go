package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IngestReadingRequest struct {
	DeviceID      uuid.UUID      `json:"device_id" binding:"required"`
	SensorID      uuid.UUID      `json:"sensor_id" binding:"required"`
	Value         *float64       `json:"value" binding:"required"`
	Metadata      map[string]any `json:"metadata"`
	MQTTMessageID *string        `json:"mqtt_message_id"`
	MQTTQoS       *int16         `json:"mqtt_qos" binding:"omitempty,min=0,max=2"`
	MQTTRetained  bool           `json:"mqtt_retained"`
}

// maxBulkReadings bounds a single bulk ingest call.
const maxBulkReadings = 500

// toReading resolves the referenced device and sensor and checks the value
// against the sensor's measurement range.
func (s *Server) toReading(c *gin.Context, req IngestReadingRequest) (*storage.Reading, error) {
	if _, err := s.devices.Get(c.Request.Context(), req.DeviceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("device %s not found", req.DeviceID)
		}
		return nil, err
	}

	sensor, err := s.store.GetSensor(c.Request.Context(), req.SensorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("sensor %s not found", req.SensorID)
		}
		return nil, err
	}

	if !sensor.InRange(*req.Value) {
		return nil, fmt.Errorf("value %g is outside the sensor range (%g to %g)",
			*req.Value, sensor.RangeMin, sensor.RangeMax)
	}

	return &storage.Reading{
		DeviceID:      req.DeviceID,
		SensorID:      req.SensorID,
		Value:         *req.Value,
		Metadata:      req.Metadata,
		MQTTMessageID: req.MQTTMessageID,
		MQTTQoS:       req.MQTTQoS,
		MQTTRetained:  req.MQTTRetained,
	}, nil
}

// POST /api/v1/readings
//
// Ingest endpoint used by edge agents relaying sensor values.
func (s *Server) ingestReading(c *gin.Context) {
	var req IngestReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading, err := s.toReading(c, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.store.InsertReading(c.Request.Context(), reading)
	if err != nil {
		s.logger.Error("Failed to insert reading",
			zap.String("sensor_id", req.SensorID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reading"})
		return
	}

	s.wsHub.BroadcastReading(created)

	c.JSON(http.StatusCreated, created)
}

// POST /api/v1/readings/bulk
func (s *Server) ingestReadingsBulk(c *gin.Context) {
	var req struct {
		Readings []IngestReadingRequest `json:"readings" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Readings) > maxBulkReadings {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("at most %d readings per bulk call", maxBulkReadings),
		})
		return
	}

	readings := make([]*storage.Reading, 0, len(req.Readings))
	for i, item := range req.Readings {
		reading, err := s.toReading(c, item)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("reading %d: %s", i, err.Error()),
			})
			return
		}
		readings = append(readings, reading)
	}

	created, err := s.store.InsertReadings(c.Request.Context(), readings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store readings"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("%d readings stored", len(created)),
		"count":   len(created),
	})
}

// GET /api/v1/readings
func (s *Server) listReadings(c *gin.Context) {
	filter, err := readingFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	readings, err := s.store.ListReadings(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list readings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"count":    len(readings),
	})
}

// GET /api/v1/readings/stats
func (s *Server) getReadingStats(c *gin.Context) {
	filter, err := readingFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := s.store.GetReadingStats(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate readings"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GET /api/v1/readings/latest?limit=10
func (s *Server) getLatestReadings(c *gin.Context) {
	filter, err := readingFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.Limit == 0 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	readings, err := s.store.ListReadings(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list readings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"count":    len(readings),
	})
}

func readingFilterFromQuery(c *gin.Context) (storage.ReadingFilter, error) {
	var filter storage.ReadingFilter

	if raw := c.Query("device_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid device_id")
		}
		filter.DeviceID = &id
	}
	if raw := c.Query("sensor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid sensor_id")
		}
		filter.SensorID = &id
	}
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("from must be RFC 3339")
		}
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("to must be RFC 3339")
		}
		filter.To = &ts
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	filter.MQTTOnly = c.Query("mqtt_only") != ""

	return filter, nil
}
