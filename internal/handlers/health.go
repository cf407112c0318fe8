package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type healthResp struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := healthResp{OK: true}
	if h.Health != nil {
		if err := h.Health(ctx); err != nil {
			resp.OK = false
			resp.Errors = []string{err.Error()}
		}
	}
	if !resp.OK {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func zapRel(id string) zap.Field { return zap.String("relationship_id", id) }

func zapErr(err error) zap.Field { return zap.Error(err) }
