package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateDeviceRequest struct {
	Name        string         `json:"name" binding:"required"`
	Type        string         `json:"type" binding:"required"`
	ExternalID  string         `json:"external_id" binding:"required"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	OperatorID  *uuid.UUID     `json:"operator_id,omitempty"`
	Metadata    map[string]any `json:"metadata"`
}

type StatusReportRequest struct {
	Status  string `json:"status" binding:"required,oneof=online offline error"`
	Message string `json:"message"`
}

// GET /api/v1/devices
func (s *Server) listDevices(c *gin.Context) {
	devs, err := s.devices.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devs,
		"count":   len(devs),
	})
}

// GET /api/v1/devices/:id
func (s *Server) getDevice(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	dev, err := s.devices.Get(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load device"})
		return
	}

	c.JSON(http.StatusOK, dev)
}

// POST /api/v1/devices
func (s *Server) createDevice(c *gin.Context) {
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dev := &storage.Device{
		Name:        req.Name,
		Type:        req.Type,
		ExternalID:  req.ExternalID,
		Location:    req.Location,
		State:       storage.DeviceStateActive,
		Description: req.Description,
		OperatorID:  req.OperatorID,
		Metadata:    req.Metadata,
	}

	created, err := s.devices.Create(c.Request.Context(), dev)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"device":       created,
		"mqtt_enabled": created.MQTTEnabled,
		"message":      "Device created successfully",
	})
}

// PUT /api/v1/devices/:id
func (s *Server) updateDevice(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	dev, err := s.devices.Get(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	var req struct {
		Name        *string        `json:"name"`
		Location    *string        `json:"location"`
		State       *string        `json:"state" binding:"omitempty,oneof=active inactive maintenance disconnected"`
		Description *string        `json:"description"`
		OperatorID  *uuid.UUID     `json:"operator_id"`
		Metadata    map[string]any `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.Location != nil {
		dev.Location = *req.Location
	}
	if req.State != nil {
		dev.State = *req.State
	}
	if req.Description != nil {
		dev.Description = *req.Description
	}
	if req.OperatorID != nil {
		dev.OperatorID = req.OperatorID
	}
	if req.Metadata != nil {
		dev.Metadata = req.Metadata
	}

	updated, err := s.devices.Update(c.Request.Context(), dev)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DELETE /api/v1/devices/:id
func (s *Server) deleteDevice(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	if err := s.devices.Delete(c.Request.Context(), deviceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device deleted successfully"})
}

// GET /api/v1/devices/:id/credentials
//
// Reveals the firmware-facing connection secret. The plaintext leaves the
// server only on this admin-gated path.
func (s *Server) getDeviceCredentials(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	cred, err := s.store.GetDeviceCredentialByDevice(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device has no MQTT credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credentials"})
		return
	}

	password, err := s.codec.Decrypt(cred.PasswordEnc)
	if err != nil {
		s.logger.Error("Failed to decrypt device credential",
			zap.String("device_id", deviceID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decrypt credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id": cred.ClientID,
		"username":  cred.Username,
		"password":  password,
	})
}

// POST /api/v1/devices/:id/rotate-password
func (s *Server) rotateDevicePassword(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	dev, err := s.devices.Get(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	password, err := s.engine.RotatePassword(c.Request.Context(), s.store, dev)
	if err != nil {
		if errors.Is(err, emqx.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device has no broker identity"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"password": password, // Only time the new secret is returned
		"message":  "password rotated, reconfigure the device firmware",
	})
}

// POST /api/v1/devices/:id/status
//
// External status report. The device (or its edge agent) tells us what its
// broker connection looks like; this system never observes MQTT traffic
// itself.
func (s *Server) reportDeviceStatus(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	var req StatusReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dev, err := s.devices.Get(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	now := time.Now().UTC()
	if err := s.store.UpdateDeviceConnection(c.Request.Context(), deviceID, req.Status, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record status"})
		return
	}

	// The binding row mirrors the report when one exists.
	if _, err := s.store.UpdateBindingStatus(c.Request.Context(), deviceID, bindingStatusFor(req.Status), now); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Failed to update binding status",
			zap.String("device_id", deviceID.String()), zap.Error(err))
	}

	s.wsHub.BroadcastDeviceStatus(gin.H{
		"device_id":   dev.ID,
		"external_id": dev.ExternalID,
		"name":        dev.Name,
		"status":      req.Status,
		"message":     req.Message,
		"reported_at": now,
	})

	if req.Status == storage.ConnStatusError && dev.OperatorID != nil {
		operator, err := s.store.GetUserByID(c.Request.Context(), *dev.OperatorID)
		if err != nil {
			s.logger.Warn("Failed to load operator for alert",
				zap.String("device_id", deviceID.String()), zap.Error(err))
		} else {
			text := fmt.Sprintf("Device %q (%s) reported an error: %s", dev.Name, dev.ExternalID, req.Message)
			s.alerts.AlertOperator(c.Request.Context(), operator, text)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "status recorded"})
}

func bindingStatusFor(connStatus string) string {
	switch connStatus {
	case storage.ConnStatusOnline:
		return storage.BindingConnected
	case storage.ConnStatusError:
		return storage.BindingError
	default:
		return storage.BindingDisconnected
	}
}
