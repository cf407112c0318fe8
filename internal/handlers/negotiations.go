package handlers

import (
	"net/http"

	"liaison/internal/models"

	"github.com/gin-gonic/gin"
)

type termsRequest struct {
	Terms  models.PlanTerms `json:"terms"`
	Reason string           `json:"reason"`
}

func (h *Handlers) RequestChange(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	p, err := h.Negotiation.RequestChange(c.Request.Context(), who, c.Param("id"), req.Terms, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) CounterRequest(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	p, err := h.Negotiation.Counter(c.Request.Context(), who, c.Param("id"), req.Terms, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) AcceptRequest(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	a, err := h.Negotiation.Accept(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) RejectRequest(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req rejectRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	r, err := h.Negotiation.Reject(c.Request.Context(), who, c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) Suggest(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req termsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	s, err := h.Negotiation.SuggestFor(c.Request.Context(), who, c.Param("id"), req.Terms)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
