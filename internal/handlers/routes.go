package handlers

import (
	"liaison/internal/observability/metrics"

	"github.com/gin-gonic/gin"
)

// Register mounts every route. authn authenticates the caller, limit
// throttles mutating calls and operator guards import and batch routes.
func (h *Handlers) Register(r *gin.Engine, authn, limit, operator gin.HandlerFunc) {
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1", authn)
	write := api.Group("", limit)

	write.POST("/relationships", h.CreateRelationship)
	api.GET("/relationships/:id", h.GetRelationship)
	write.POST("/relationships/:id/verify", h.VerifyRelationship)
	write.POST("/relationships/:id/establish", h.EstablishRelationship)
	api.GET("/relationships/:id/plan", h.ActivePlan)
	api.GET("/relationships/:id/score-events", h.ScoreEventsList)
	api.GET("/relationships/:id/stream", h.Stream)

	api.GET("/relationships/:id/notices", h.ListNotices)
	write.POST("/relationships/:id/notices", h.PostNotice)
	write.POST("/relationships/:id/attachments", h.UploadAttachment)
	write.POST("/notices/:id/read", h.MarkNoticeRead)

	write.POST("/relationships/:id/plan-requests", h.RequestChange)
	api.POST("/relationships/:id/suggest", h.Suggest)
	write.POST("/plan-requests/:id/counter", h.CounterRequest)
	write.POST("/plan-requests/:id/accept", h.AcceptRequest)
	write.POST("/plan-requests/:id/reject", h.RejectRequest)

	api.GET("/plans/:id", h.GetPlan)
	write.POST("/plans/:id/complete", h.CompletePlan)
	write.POST("/obligations/:id/advance", h.AdvanceObligation)
	api.GET("/obligations/:id/reminder", h.PreviewReminder)
	write.POST("/obligations/:id/reminder", h.SendReminder)

	ops := api.Group("", operator)
	ops.POST("/reminders/dispatch", h.DispatchReminders)
	ops.POST("/imports", h.Import)
	ops.POST("/imports/upload", h.UploadStatement)
	ops.GET("/imports/:id", h.GetImport)
}
