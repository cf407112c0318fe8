package database

import (
	"context"
	"encoding/json"
	"fmt"

	"liaison/internal/models"
)

const noticeColumns = `
	id::text, relationship_id::text, seq, sender_id, receiver_id, kind, body,
	attachment_url, attachment_name, read, proposal_state, version, created_at`

func scanNotice(row interface{ Scan(...any) error }) (models.Notice, error) {
	var (
		n       models.Notice
		body    []byte
		attURL  *string
		attName *string
	)
	err := row.Scan(
		&n.ID, &n.RelationshipID, &n.Seq, &n.SenderID, &n.ReceiverID, &n.Kind, &body,
		&attURL, &attName, &n.Read, &n.ProposalState, &n.Version, &n.CreatedAt,
	)
	if err != nil {
		return models.Notice{}, err
	}
	if err := json.Unmarshal(body, &n.Body); err != nil {
		return models.Notice{}, fmt.Errorf("notice %s body: %w", n.ID, err)
	}
	if attURL != nil {
		n.Attachment = &models.Attachment{URL: *attURL}
		if attName != nil {
			n.Attachment.Name = *attName
		}
	}
	return n, nil
}

// The relationship row update serializes concurrent inserts and yields
// the next sequence number in the same statement.
const insertNoticeQuery = `
	WITH next AS (
		UPDATE relationships SET notice_seq = notice_seq + 1
		WHERE id = $2::uuid
		RETURNING notice_seq
	)
	INSERT INTO notices (
		id, relationship_id, seq, sender_id, receiver_id, kind, body,
		attachment_url, attachment_name, read, proposal_state, version, created_at
	)
	SELECT
		$1::uuid, $2::uuid, next.notice_seq, $3, $4, $5, $6::jsonb,
		$7, $8, $9, $10, $11, $12
	FROM next
	RETURNING seq;
`

func (r *repo) InsertNotice(ctx context.Context, n *models.Notice) error {
	body, err := json.Marshal(n.Body)
	if err != nil {
		return fmt.Errorf("notice %s body: %w", n.ID, err)
	}
	var attURL, attName *string
	if n.Attachment != nil {
		attURL, attName = &n.Attachment.URL, &n.Attachment.Name
	}
	err = r.q.QueryRow(ctx, insertNoticeQuery,
		n.ID, n.RelationshipID, n.SenderID, n.ReceiverID, n.Kind, string(body),
		attURL, attName, n.Read, n.ProposalState, n.Version, n.CreatedAt,
	).Scan(&n.Seq)
	return mapErr(err)
}

func (r *repo) GetNotice(ctx context.Context, id string) (models.Notice, error) {
	n, err := scanNotice(r.q.QueryRow(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE id = $1::uuid`, id))
	return n, mapErr(err)
}

func (r *repo) ListNotices(ctx context.Context, relationshipID string, afterSeq int64, limit int) ([]models.Notice, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+noticeColumns+` FROM notices
		WHERE relationship_id = $1::uuid AND seq > $2
		ORDER BY seq
		LIMIT $3`, relationshipID, afterSeq, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]models.Notice, 0)
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, mapErr(rows.Err())
}

func (r *repo) TransitionProposal(ctx context.Context, id string, version int, from, to models.ProposalState) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE notices SET proposal_state = $4, version = version + 1
		WHERE id = $1::uuid AND version = $2 AND proposal_state = $3`,
		id, version, from, to)
	if err != nil {
		return mapErr(err)
	}
	return r.conditional(ctx, tag, "notices", id)
}

func (r *repo) MarkNoticeRead(ctx context.Context, id, receiverID string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE notices SET read = true WHERE id = $1::uuid AND receiver_id = $2`, id, receiverID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows)
	}
	return nil
}
