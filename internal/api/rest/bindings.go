package rest

import (
	"errors"
	"net/http"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeviceConfigRequest struct {
	DeviceID        uuid.UUID      `json:"device_id" binding:"required"`
	BrokerID        uuid.UUID      `json:"broker_id" binding:"required"`
	PublishTopicID  *uuid.UUID     `json:"publish_topic_id,omitempty"`
	PublishInterval int            `json:"publish_interval" binding:"min=0"`
	QoS             int            `json:"qos" binding:"min=0,max=2"`
	Retain          bool           `json:"retain"`
	AutoReconnect   bool           `json:"auto_reconnect"`
	Metadata        map[string]any `json:"metadata"`
}

// GET /api/v1/device-configs
func (s *Server) listDeviceConfigs(c *gin.Context) {
	bindings, err := s.store.ListDeviceBindings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list device configs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"configs": bindings, "count": len(bindings)})
}

// GET /api/v1/device-configs/device/:deviceId
func (s *Server) getDeviceConfigByDevice(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("deviceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	binding, err := s.store.GetDeviceBindingByDevice(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device has no MQTT config"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load device config"})
		return
	}

	subscriptions, err := s.store.ListBindingSubscriptions(c.Request.Context(), binding.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config":        binding,
		"subscriptions": subscriptions,
	})
}

// POST /api/v1/device-configs
func (s *Server) createDeviceConfig(c *gin.Context) {
	var req DeviceConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Referential checks up front for friendlier errors than FK violations.
	if _, err := s.devices.Get(c.Request.Context(), req.DeviceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device does not exist"})
		return
	}
	if _, err := s.store.GetBrokerConfig(c.Request.Context(), req.BrokerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "broker does not exist"})
		return
	}

	binding := &storage.DeviceBinding{
		DeviceID:         req.DeviceID,
		BrokerID:         req.BrokerID,
		PublishTopicID:   req.PublishTopicID,
		PublishInterval:  req.PublishInterval,
		QoS:              req.QoS,
		Retain:           req.Retain,
		AutoReconnect:    req.AutoReconnect,
		ConnectionStatus: storage.BindingDisconnected,
		Metadata:         req.Metadata,
		IsActive:         true,
	}

	created, err := s.store.InsertDeviceBinding(c.Request.Context(), binding)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// PUT /api/v1/device-configs/:id
func (s *Server) updateDeviceConfig(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config ID"})
		return
	}

	var req struct {
		BrokerID        *uuid.UUID     `json:"broker_id"`
		PublishTopicID  *uuid.UUID     `json:"publish_topic_id"`
		PublishInterval *int           `json:"publish_interval" binding:"omitempty,min=0"`
		QoS             *int           `json:"qos" binding:"omitempty,min=0,max=2"`
		Retain          *bool          `json:"retain"`
		AutoReconnect   *bool          `json:"auto_reconnect"`
		IsActive        *bool          `json:"is_active"`
		Metadata        map[string]any `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	binding, err := s.store.GetDeviceBinding(c.Request.Context(), configID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load device config"})
		return
	}

	if req.BrokerID != nil {
		binding.BrokerID = *req.BrokerID
	}
	if req.PublishTopicID != nil {
		binding.PublishTopicID = req.PublishTopicID
	}
	if req.PublishInterval != nil {
		binding.PublishInterval = *req.PublishInterval
	}
	if req.QoS != nil {
		binding.QoS = *req.QoS
	}
	if req.Retain != nil {
		binding.Retain = *req.Retain
	}
	if req.AutoReconnect != nil {
		binding.AutoReconnect = *req.AutoReconnect
	}
	if req.IsActive != nil {
		binding.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		binding.Metadata = req.Metadata
	}

	updated, err := s.store.UpdateDeviceBinding(c.Request.Context(), binding)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// PUT /api/v1/device-configs/:id/subscriptions
func (s *Server) setDeviceConfigSubscriptions(c *gin.Context) {
	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config ID"})
		return
	}

	var req struct {
		TopicIDs []uuid.UUID `json:"topic_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.store.GetDeviceBinding(c.Request.Context(), configID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load device config"})
		return
	}

	if err := s.store.SetBindingSubscriptions(c.Request.Context(), configID, req.TopicIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "subscriptions updated",
		"count":   len(req.TopicIDs),
	})
}
