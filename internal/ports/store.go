package ports

import (
	"context"
	"errors"
	"time"

	"liaison/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint or a conditional
	// update (optimistic token, expected status) rejects the write.
	ErrConflict = errors.New("write conflict")
	// ErrRejected is returned when the store refuses a value through a
	// check constraint.
	ErrRejected = errors.New("value rejected by store")
)

// Repository is the persistence contract consumed by the services. The
// backing store must guarantee at most one active plan per relationship,
// unique obligation sequences per plan, referential integrity and a
// monotonic notice sequence per relationship.
type Repository interface {
	InsertRelationship(ctx context.Context, r models.Relationship) error
	GetRelationship(ctx context.Context, id string) (models.Relationship, error)
	UpdateRelationshipStatus(ctx context.Context, id string, from, to models.RelationshipStatus) error
	SaveReputation(ctx context.Context, r models.Relationship) error

	InsertPlan(ctx context.Context, p models.PaymentPlan) error
	GetPlan(ctx context.Context, id string) (models.PaymentPlan, error)
	ActivePlan(ctx context.Context, relationshipID string) (*models.PaymentPlan, error)
	// TransitionPlan changes status only when the current status is from.
	TransitionPlan(ctx context.Context, id string, from, to models.PlanStatus, modifiedBy string, at time.Time) error

	InsertObligation(ctx context.Context, o models.Obligation) error
	GetObligation(ctx context.Context, id string) (models.Obligation, error)
	GetObligationBySequence(ctx context.Context, planID string, seq int) (models.Obligation, error)
	ListObligations(ctx context.Context, planID string) ([]models.Obligation, error)
	// UpdateObligation persists o only when the stored status is from.
	UpdateObligation(ctx context.Context, o models.Obligation, from models.ObligationStatus) error
	// ListDueBefore returns obligations of active plans with one of the given
	// statuses and a due date before cutoff, earliest first.
	ListDueBefore(ctx context.Context, cutoff time.Time, statuses []models.ObligationStatus, limit int) ([]models.Obligation, error)

	InsertNotice(ctx context.Context, n *models.Notice) error
	GetNotice(ctx context.Context, id string) (models.Notice, error)
	ListNotices(ctx context.Context, relationshipID string, afterSeq int64, limit int) ([]models.Notice, error)
	// TransitionProposal moves a plan request from one state to another when
	// its version still equals version; the stored version is incremented.
	TransitionProposal(ctx context.Context, id string, version int, from, to models.ProposalState) error
	MarkNoticeRead(ctx context.Context, id, receiverID string) error
}

// Store runs fn inside a single transaction. Either every write made
// through the passed Repository commits, or none does.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
