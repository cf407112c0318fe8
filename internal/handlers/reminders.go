package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) PreviewReminder(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	p, err := h.Reminders.Preview(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) SendReminder(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	d, err := h.Reminders.Send(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// DispatchReminders sends reminders for every obligation due within the
// horizon query parameter (a Go duration, default 168h).
func (h *Handlers) DispatchReminders(c *gin.Context) {
	horizon, err := time.ParseDuration(c.DefaultQuery("horizon", "168h"))
	if err != nil || horizon < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "horizon must be a non-negative duration"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	out, err := h.Reminders.DispatchDue(c.Request.Context(), horizon, limit)
	if err != nil && len(out) == 0 {
		h.fail(c, err)
		return
	}
	resp := gin.H{"sent": len(out), "items": out}
	if err != nil {
		resp["errors"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
