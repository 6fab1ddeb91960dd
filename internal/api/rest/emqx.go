package rest

import (
	"errors"
	"net/http"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateACLRuleRequest struct {
	Username   string     `json:"username" binding:"required"`
	Permission string     `json:"permission" binding:"required,oneof=allow deny"`
	Action     string     `json:"action" binding:"required,oneof=publish subscribe all"`
	Topic      string     `json:"topic" binding:"required"`
	QoS        *int       `json:"qos,omitempty"`
	Retain     *int       `json:"retain,omitempty"`
	Position   int        `json:"position"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty"`
}

// GET /api/v1/emqx/users
//
// Broker identities as the operator console sees them. Hashes and salts are
// never serialized.
func (s *Server) listBrokerIdentities(c *gin.Context) {
	identities, err := s.store.ListBrokerIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list broker identities"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identities": identities,
		"count":      len(identities),
	})
}

// GET /api/v1/emqx/users/:username/acl
func (s *Server) listACLForUsername(c *gin.Context) {
	username := c.Param("username")

	rules, err := s.store.ListACLRulesForUsername(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ACL rules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username": username,
		"rules":    rules,
		"count":    len(rules),
	})
}

// GET /api/v1/emqx/acl
func (s *Server) listACLRules(c *gin.Context) {
	rules, err := s.store.ListACLRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ACL rules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"count": len(rules),
	})
}

// POST /api/v1/emqx/acl
//
// Adds a custom rule on top of the provisioned defaults, e.g. granting a
// device access to a shared topic.
func (s *Server) createACLRule(c *gin.Context) {
	var req CreateACLRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := emqx.ACLRule{
		Username:   req.Username,
		Permission: req.Permission,
		Action:     req.Action,
		Topic:      req.Topic,
		QoS:        req.QoS,
		Retain:     req.Retain,
		Position:   req.Position,
		IdentityID: req.IdentityID,
	}

	created, err := s.store.InsertACLRule(c.Request.Context(), rule)
	if err != nil {
		switch {
		case errors.Is(err, emqx.ErrInvalidTopicPattern), errors.Is(err, emqx.ErrInconsistentOwner):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, emqx.ErrIdentityNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "referenced identity does not exist"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}

// DELETE /api/v1/emqx/acl/:id
func (s *Server) deleteACLRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule ID"})
		return
	}

	if err := s.store.DeleteACLRule(c.Request.Context(), ruleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ACL rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete ACL rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ACL rule deleted"})
}
