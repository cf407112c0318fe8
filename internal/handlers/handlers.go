package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"liaison/internal/adapters/realtime"
	"liaison/internal/apperr"
	"liaison/internal/models"
	importitems "liaison/internal/repository/imports"
	"liaison/internal/services/importer"
	"liaison/internal/services/negotiation"
	"liaison/internal/services/plans"
	"liaison/internal/services/relationships"
	"liaison/internal/services/reminders"
	"liaison/internal/transport/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ObjectStore stores uploaded files and returns a URL for them.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64, ttl time.Duration) (string, error)
}

type ScoreEventLister interface {
	ListByRelationship(ctx context.Context, relationshipID string, limit int64) ([]models.ScoreEvent, error)
}

type ImportRecords interface {
	Start(ctx context.Context, typ, filePath string) (string, error)
	Get(ctx context.Context, id string) (importitems.Record, error)
	Items(ctx context.Context, id, status string) ([]importitems.Item, error)
}

// Handlers wires the domain services to HTTP. Optional collaborators
// (Importer, Records, ScoreEvents, Objects) may be nil; their routes then
// answer 503.
type Handlers struct {
	Relationships *relationships.Service
	Plans         *plans.Service
	Negotiation   *negotiation.Service
	Reminders     *reminders.Dispatcher
	Broker        realtime.Broker

	Importer    *importer.Service
	Records     ImportRecords
	ScoreEvents ScoreEventLister
	Objects     ObjectStore

	Health func(ctx context.Context) error

	AttachmentTTL time.Duration
	ImportTimeout time.Duration
	Log           *zap.Logger
}

// fail maps domain errors to HTTP statuses. Unclassified errors are logged
// and reported without detail.
func (h *Handlers) fail(c *gin.Context, err error) {
	var (
		ve *apperr.ValidationError
		ae *apperr.AuthorizationError
		nf *apperr.NotFoundError
		iv *apperr.InvariantViolation
		df *apperr.DependencyFailure
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": ve.Field})
	case errors.As(err, &ae):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &iv):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "rule": iv.Rule, "retryable": true})
	case errors.As(err, &df):
		h.Log.Warn("dependency failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable", "retryable": true})
	default:
		h.Log.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}

// actor returns the authenticated party id, aborting with 401 when absent.
func actor(c *gin.Context) (string, bool) {
	id, err := auth.PartyID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", false
	}
	return id, true
}

// RequireParties only admits the listed party ids.
func RequireParties(ids []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return func(c *gin.Context) {
		id, ok := actor(c)
		if !ok {
			return
		}
		if _, ok := allowed[id]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator access required"})
			return
		}
		c.Next()
	}
}
