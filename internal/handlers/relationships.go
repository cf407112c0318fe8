package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createRelationshipRequest struct {
	FirmPartyID   string `json:"firm_party_id"`
	ClientPartyID string `json:"client_party_id"`
}

func (h *Handlers) CreateRelationship(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req createRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	rel, err := h.Relationships.Create(c.Request.Context(), who, req.FirmPartyID, req.ClientPartyID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

func (h *Handlers) GetRelationship(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	rel, err := h.Relationships.Get(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (h *Handlers) VerifyRelationship(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	rel, err := h.Relationships.Verify(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (h *Handlers) EstablishRelationship(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	rel, err := h.Relationships.Establish(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// ScoreEvents lists the reputation audit trail of a relationship.
func (h *Handlers) ScoreEventsList(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	if h.ScoreEvents == nil {
		unavailable(c, "score audit")
		return
	}
	rel, err := h.Relationships.Get(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	events, err := h.ScoreEvents.ListByRelationship(c.Request.Context(), rel.ID, limit)
	if err != nil {
		h.Log.Warn("score events lookup failed", zapRel(rel.ID), zapErr(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "score audit unavailable", "retryable": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}
