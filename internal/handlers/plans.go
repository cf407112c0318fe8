package handlers

import (
	"net/http"
	"time"

	"liaison/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetPlan(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	sched, err := h.Plans.Get(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

func (h *Handlers) ActivePlan(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	sched, err := h.Plans.ActiveSchedule(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if sched == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active plan"})
		return
	}
	c.JSON(http.StatusOK, sched)
}

func (h *Handlers) CompletePlan(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	plan, err := h.Plans.Complete(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

type advanceRequest struct {
	Resolution models.Resolution `json:"resolution"`
	At         *time.Time        `json:"at"`
}

func (h *Handlers) AdvanceObligation(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	res, err := h.Plans.Advance(c.Request.Context(), who, c.Param("id"), req.Resolution, at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
