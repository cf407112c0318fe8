package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"liaison/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxAttachmentBytes = 25 << 20

type postNoticeRequest struct {
	Text       string             `json:"text"`
	Attachment *models.Attachment `json:"attachment"`
}

func (h *Handlers) PostNotice(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req postNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	n, err := h.Negotiation.Post(c.Request.Context(), who, c.Param("id"), req.Text, req.Attachment)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handlers) ListNotices(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	after, _ := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.Negotiation.List(c.Request.Context(), who, c.Param("id"), after, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handlers) MarkNoticeRead(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	if err := h.Negotiation.MarkRead(c.Request.Context(), who, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAttachment stores a multipart `file` in object storage and returns
// the attachment reference to send with a notice.
func (h *Handlers) UploadAttachment(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	if h.Objects == nil {
		unavailable(c, "object storage")
		return
	}
	rel, err := h.Relationships.Get(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAttachmentBytes)
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

	name := path.Base(fh.Filename)
	key := fmt.Sprintf("attachments/%s/%s-%s", rel.ID, uuid.NewString(), name)
	ttl := h.AttachmentTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	url, err := h.Objects.Put(c.Request.Context(), key, fh.Header.Get("Content-Type"), f, fh.Size, ttl)
	if err != nil {
		h.Log.Warn("attachment upload failed", zapRel(rel.ID), zapErr(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to store file", "retryable": true})
		return
	}
	c.JSON(http.StatusCreated, models.Attachment{URL: url, Name: name})
}
