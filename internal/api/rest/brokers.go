package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BrokerRequest struct {
	Name         string  `json:"name" binding:"required"`
	Host         string  `json:"host" binding:"required"`
	Port         int     `json:"port" binding:"required,min=1,max=65535"`
	Protocol     string  `json:"protocol" binding:"required,oneof=mqtt mqtts ws wss"`
	Username     *string `json:"username,omitempty"`
	Password     *string `json:"password,omitempty"`
	Keepalive    int     `json:"keepalive"`
	CleanSession bool    `json:"clean_session"`
	UseTLS       bool    `json:"use_tls"`
	CACert       *string `json:"ca_cert,omitempty"`
}

// GET /api/v1/brokers
func (s *Server) listBrokers(c *gin.Context) {
	brokers, err := s.store.ListBrokerConfigs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list brokers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"brokers": brokers, "count": len(brokers)})
}

// GET /api/v1/brokers/:id
func (s *Server) getBroker(c *gin.Context) {
	brokerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broker ID"})
		return
	}

	broker, err := s.store.GetBrokerConfig(c.Request.Context(), brokerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load broker"})
		return
	}

	c.JSON(http.StatusOK, broker)
}

// POST /api/v1/brokers
func (s *Server) createBroker(c *gin.Context) {
	var req BrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	broker := &storage.BrokerConfig{
		Name:         req.Name,
		Host:         req.Host,
		Port:         req.Port,
		Protocol:     req.Protocol,
		Username:     req.Username,
		Keepalive:    req.Keepalive,
		CleanSession: req.CleanSession,
		UseTLS:       req.UseTLS,
		CACert:       req.CACert,
		IsActive:     true,
	}
	if broker.Keepalive == 0 {
		broker.Keepalive = 60
	}

	if req.Password != nil && *req.Password != "" {
		enc, err := s.codec.Encrypt(*req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store broker password"})
			return
		}
		broker.PasswordEnc = &enc
	}

	created, err := s.store.InsertBrokerConfig(c.Request.Context(), broker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// PUT /api/v1/brokers/:id
func (s *Server) updateBroker(c *gin.Context) {
	brokerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broker ID"})
		return
	}

	broker, err := s.store.GetBrokerConfig(c.Request.Context(), brokerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load broker"})
		return
	}

	var req BrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	broker.Name = req.Name
	broker.Host = req.Host
	broker.Port = req.Port
	broker.Protocol = req.Protocol
	broker.Username = req.Username
	broker.Keepalive = req.Keepalive
	broker.CleanSession = req.CleanSession
	broker.UseTLS = req.UseTLS
	broker.CACert = req.CACert

	// Absent password keeps the stored secret.
	if req.Password != nil && *req.Password != "" {
		enc, err := s.codec.Encrypt(*req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store broker password"})
			return
		}
		broker.PasswordEnc = &enc
	}

	updated, err := s.store.UpdateBrokerConfig(c.Request.Context(), broker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DELETE /api/v1/brokers/:id
func (s *Server) deleteBroker(c *gin.Context) {
	brokerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broker ID"})
		return
	}

	if err := s.store.DeleteBrokerConfig(c.Request.Context(), brokerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete broker"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "broker deleted"})
}

// POST /api/v1/brokers/:id/activate
func (s *Server) activateBroker(c *gin.Context) {
	s.setBrokerActive(c, true)
}

// POST /api/v1/brokers/:id/deactivate
func (s *Server) deactivateBroker(c *gin.Context) {
	s.setBrokerActive(c, false)
}

func (s *Server) setBrokerActive(c *gin.Context, active bool) {
	brokerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broker ID"})
		return
	}

	if err := s.store.SetBrokerActive(c.Request.Context(), brokerID, active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update broker"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "broker updated", "is_active": active})
}

// POST /api/v1/brokers/:id/test-connection
//
// Connects to the broker with the stored credentials and disconnects again.
// Diagnostic only; nothing is published.
func (s *Server) testBrokerConnection(c *gin.Context) {
	brokerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broker ID"})
		return
	}

	broker, err := s.store.GetBrokerConfig(c.Request.Context(), brokerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "broker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load broker"})
		return
	}

	timeout := s.cfg.MQTT.TestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	start := time.Now()
	if err := s.probeBroker(broker, timeout); err != nil {
		s.logger.Warn("Broker connection test failed",
			zap.String("broker", broker.Name), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) probeBroker(broker *storage.BrokerConfig, timeout time.Duration) error {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL(broker)).
		SetClientID(fmt.Sprintf("iot-console-probe-%s", uuid.NewString()[:8])).
		SetConnectTimeout(timeout).
		SetAutoReconnect(false).
		SetCleanSession(true)

	if broker.Username != nil && *broker.Username != "" {
		opts.SetUsername(*broker.Username)
		if broker.PasswordEnc != nil {
			password, err := s.codec.Decrypt(*broker.PasswordEnc)
			if err != nil {
				return fmt.Errorf("failed to decrypt broker password: %w", err)
			}
			opts.SetPassword(password)
		}
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connection timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	client.Disconnect(250)
	return nil
}

func brokerURL(broker *storage.BrokerConfig) string {
	scheme := broker.Protocol
	switch scheme {
	case storage.ProtocolMQTT:
		scheme = "tcp"
	case storage.ProtocolMQTTS:
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, broker.Host, broker.Port)
}
