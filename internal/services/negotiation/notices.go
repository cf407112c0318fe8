package negotiation

import (
	"context"
	"strings"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/ports"

	"go.uber.org/zap"
)

const maxListLimit = 200

// Post sends a free-text notice, optionally with an attachment already
// uploaded to object storage.
func (s *Service) Post(ctx context.Context, actor, relationshipID, text string, att *models.Attachment) (models.Notice, error) {
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return models.Notice{}, apperr.Validation("text", "message is empty")
	}
	if att != nil && (att.URL == "" || att.Name == "") {
		return models.Notice{}, apperr.Validation("attachment", "url and name are required")
	}
	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		return models.Notice{}, ports.MapError("post_notice", "relationship", relationshipID, err)
	}
	if !rel.IsParty(actor) {
		return models.Notice{}, apperr.Unauthorized(actor, "not a party to relationship "+rel.ID)
	}
	n := s.notice(rel.ID, actor, rel.Counterparty(actor), models.NoticeText, models.TextBody(text))
	n.Attachment = att
	if err := s.store.InsertNotice(ctx, &n); err != nil {
		return models.Notice{}, ports.MapError("post_notice", "notice", n.ID, err)
	}
	s.publish(ctx, n)
	s.log.Debug("notice posted", zap.String("notice_id", n.ID), zap.Int64("seq", n.Seq))
	return n, nil
}

// List returns notices of a relationship with Seq greater than afterSeq,
// in sequence order.
func (s *Service) List(ctx context.Context, actor, relationshipID string, afterSeq int64, limit int) ([]models.Notice, error) {
	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		return nil, ports.MapError("list_notices", "relationship", relationshipID, err)
	}
	if !rel.IsParty(actor) {
		return nil, apperr.Unauthorized(actor, "not a party to relationship "+rel.ID)
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	out, err := s.store.ListNotices(ctx, rel.ID, afterSeq, limit)
	if err != nil {
		return nil, ports.MapError("list_notices", "relationship", rel.ID, err)
	}
	return out, nil
}

// MarkRead sets the read receipt. Only the receiver can mark a notice read.
func (s *Service) MarkRead(ctx context.Context, actor, noticeID string) error {
	n, err := s.store.GetNotice(ctx, noticeID)
	if err != nil {
		return ports.MapError("mark_read", "notice", noticeID, err)
	}
	if n.ReceiverID != actor {
		return apperr.Unauthorized(actor, "only the receiver can mark notice "+noticeID+" read")
	}
	if n.Read {
		return nil
	}
	return ports.MapError("mark_read", "notice", noticeID, s.store.MarkNoticeRead(ctx, noticeID, actor))
}
