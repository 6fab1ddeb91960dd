package rest

import (
	"errors"
	"net/http"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TopicRequest struct {
	Name        string `json:"name" binding:"required"`
	Pattern     string `json:"topic_pattern" binding:"required"`
	Direction   string `json:"direction" binding:"required,oneof=publish subscribe both"`
	QoS         int    `json:"qos" binding:"min=0,max=2"`
	Retain      bool   `json:"retain"`
	Description string `json:"description"`
}

// GET /api/v1/topics
func (s *Server) listTopics(c *gin.Context) {
	topics, err := s.store.ListTopics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list topics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics, "count": len(topics)})
}

// GET /api/v1/topics/:id
func (s *Server) getTopic(c *gin.Context) {
	topicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic ID"})
		return
	}

	topic, err := s.store.GetTopic(c.Request.Context(), topicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load topic"})
		return
	}

	c.JSON(http.StatusOK, topic)
}

// POST /api/v1/topics
func (s *Server) createTopic(c *gin.Context) {
	var req TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Registry patterns may carry the {device_id} placeholder; validate the
	// expanded form.
	if err := emqx.ValidateTopicFilter(emqx.ExpandPattern(req.Pattern, "placeholder")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic := &storage.Topic{
		Name:        req.Name,
		Pattern:     req.Pattern,
		Direction:   req.Direction,
		QoS:         req.QoS,
		Retain:      req.Retain,
		Description: req.Description,
	}

	created, err := s.store.InsertTopic(c.Request.Context(), topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// PUT /api/v1/topics/:id
func (s *Server) updateTopic(c *gin.Context) {
	topicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic ID"})
		return
	}

	topic, err := s.store.GetTopic(c.Request.Context(), topicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load topic"})
		return
	}

	var req TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := emqx.ValidateTopicFilter(emqx.ExpandPattern(req.Pattern, "placeholder")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic.Name = req.Name
	topic.Pattern = req.Pattern
	topic.Direction = req.Direction
	topic.QoS = req.QoS
	topic.Retain = req.Retain
	topic.Description = req.Description

	updated, err := s.store.UpdateTopic(c.Request.Context(), topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DELETE /api/v1/topics/:id
func (s *Server) deleteTopic(c *gin.Context) {
	topicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic ID"})
		return
	}

	if err := s.store.DeleteTopic(c.Request.Context(), topicID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete topic"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "topic deleted"})
}
