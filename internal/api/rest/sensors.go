package rest

import (
	"errors"
	"net/http"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateSensorRequest struct {
	Name            string  `json:"name" binding:"required"`
	Type            string  `json:"type" binding:"required"`
	Unit            string  `json:"unit" binding:"required"`
	RangeMin        float64 `json:"range_min"`
	RangeMax        float64 `json:"range_max"`
	Description     string  `json:"description"`
	MQTTTopicSuffix *string `json:"mqtt_topic_suffix"`
	PublishInterval *int    `json:"publish_interval"`
}

// GET /api/v1/sensors
func (s *Server) listSensors(c *gin.Context) {
	sensors, err := s.store.ListSensors(c.Request.Context(), c.Query("type"), c.Query("state"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sensors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sensors": sensors,
		"count":   len(sensors),
	})
}

// GET /api/v1/sensors/types
func (s *Server) listSensorTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": storage.SensorTypes})
}

// GET /api/v1/sensors/:id
func (s *Server) getSensor(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	sensor, err := s.store.GetSensor(c.Request.Context(), sensorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sensor"})
		return
	}

	c.JSON(http.StatusOK, sensor)
}

// POST /api/v1/sensors
func (s *Server) createSensor(c *gin.Context) {
	var req CreateSensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sensor := &storage.Sensor{
		Name:            req.Name,
		Type:            req.Type,
		Unit:            req.Unit,
		RangeMin:        req.RangeMin,
		RangeMax:        req.RangeMax,
		State:           storage.SensorStateActive,
		Description:     req.Description,
		MQTTTopicSuffix: req.MQTTTopicSuffix,
		PublishInterval: req.PublishInterval,
	}
	if userID, ok := c.Get("user_id"); ok {
		if id, ok := userID.(uuid.UUID); ok {
			sensor.CreatedBy = &id
		}
	}

	created, err := s.store.InsertSensor(c.Request.Context(), sensor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// PUT /api/v1/sensors/:id
func (s *Server) updateSensor(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	sensor, err := s.store.GetSensor(c.Request.Context(), sensorID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}

	var req struct {
		Name            *string  `json:"name"`
		Type            *string  `json:"type"`
		Unit            *string  `json:"unit"`
		RangeMin        *float64 `json:"range_min"`
		RangeMax        *float64 `json:"range_max"`
		State           *string  `json:"state" binding:"omitempty,oneof=active inactive maintenance"`
		Description     *string  `json:"description"`
		MQTTTopicSuffix *string  `json:"mqtt_topic_suffix"`
		PublishInterval *int     `json:"publish_interval"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		sensor.Name = *req.Name
	}
	if req.Type != nil {
		sensor.Type = *req.Type
	}
	if req.Unit != nil {
		sensor.Unit = *req.Unit
	}
	if req.RangeMin != nil {
		sensor.RangeMin = *req.RangeMin
	}
	if req.RangeMax != nil {
		sensor.RangeMax = *req.RangeMax
	}
	if req.State != nil {
		sensor.State = *req.State
	}
	if req.Description != nil {
		sensor.Description = *req.Description
	}
	if req.MQTTTopicSuffix != nil {
		sensor.MQTTTopicSuffix = req.MQTTTopicSuffix
	}
	if req.PublishInterval != nil {
		sensor.PublishInterval = req.PublishInterval
	}

	updated, err := s.store.UpdateSensor(c.Request.Context(), sensor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DELETE /api/v1/sensors/:id
//
// Removes the sensor and, by cascade, its readings.
func (s *Server) deleteSensor(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	if err := s.store.DeleteSensor(c.Request.Context(), sensorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sensor deleted successfully"})
}
