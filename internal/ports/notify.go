package ports

import (
	"context"

	"liaison/internal/models"
)

type Email struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	SenderName string `json:"sender_name,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// NoticePublisher fans inserted notices out to live subscribers.
type NoticePublisher interface {
	PublishNotice(ctx context.Context, n models.Notice) error
}

// ScoreAudit receives every reputation change.
type ScoreAudit interface {
	RecordScoreEvent(ctx context.Context, ev models.ScoreEvent) error
}

// Directory resolves a party id to display name and email.
type Directory interface {
	Contact(ctx context.Context, partyID string) (name, email string, err error)
}
