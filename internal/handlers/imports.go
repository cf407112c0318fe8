package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"liaison/internal/services/importer"
	"liaison/internal/services/importer/processors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type importRequest struct {
	Type           string `json:"type"`
	FilePath       string `json:"file_path"`
	BatchSize      int    `json:"batch_size"`
	TimeoutMin     int    `json:"timeout_minutes,omitempty"`
	ImportRecordID string `json:"import_record_id"`
}

// Import starts a statement import in the background and answers 202.
func (h *Handlers) Import(c *gin.Context) {
	if h.Importer == nil {
		unavailable(c, "importer")
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_path is required"})
		return
	}
	if req.Type == "" {
		req.Type = processors.StatementType
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 1000
	}
	if req.ImportRecordID == "" && h.Records != nil {
		id, err := h.Records.Start(c.Request.Context(), req.Type, req.FilePath)
		if err != nil {
			h.Log.Warn("import record not created", zapErr(err))
		}
		req.ImportRecordID = id
	}

	timeout := h.ImportTimeout
	if req.TimeoutMin > 0 {
		timeout = time.Duration(req.TimeoutMin) * time.Minute
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	reqCopy := req
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := h.Importer.Import(ctx, importer.Request{
			Type:           reqCopy.Type,
			FilePath:       reqCopy.FilePath,
			BatchSize:      reqCopy.BatchSize,
			ImportRecordID: reqCopy.ImportRecordID,
		})
		if err != nil {
			h.Log.Error("background import failed",
				zap.String("type", reqCopy.Type),
				zap.String("path", reqCopy.FilePath),
				zap.Error(err),
			)
			return
		}
		h.Log.Info("background import done",
			zap.String("import_record_id", res.ImportRecordID),
			zap.Int("rows", res.RowsProcessed),
			zap.Int("applied", res.Applied),
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":           "started",
		"type":             req.Type,
		"file_path":        req.FilePath,
		"batch_size":       req.BatchSize,
		"import_record_id": req.ImportRecordID,
	})
}

// UploadStatement stores a multipart `file` and registers an import record
// pointing at it; the returned path can be passed to Import.
func (h *Handlers) UploadStatement(c *gin.Context) {
	if h.Objects == nil {
		unavailable(c, "object storage")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.badRequest(c, err)
		return
	}
	defer f.Close()

	key := fmt.Sprintf("imports/%d-%s", time.Now().UnixNano(), path.Base(fh.Filename))
	if _, err := h.Objects.Put(c.Request.Context(), key, fh.Header.Get("Content-Type"), f, fh.Size, time.Hour); err != nil {
		h.Log.Warn("statement upload failed", zapErr(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to store file", "retryable": true})
		return
	}

	resp := gin.H{"path": key}
	if h.Records != nil {
		typ := c.DefaultPostForm("type", processors.StatementType)
		id, err := h.Records.Start(c.Request.Context(), typ, key)
		if err != nil {
			h.Log.Warn("import record not created", zapErr(err))
		}
		resp["id"] = id
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) GetImport(c *gin.Context) {
	if h.Records == nil {
		unavailable(c, "import records")
		return
	}
	rec, err := h.Records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "import record not found"})
		return
	}
	items, err := h.Records.Items(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		h.Log.Warn("import items lookup failed", zapErr(err))
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "items": items})
}
