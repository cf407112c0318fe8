package relationships

import (
	"context"
	"errors"
	"strings"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/ports"
	"liaison/internal/services/scoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store  ports.Store
	policy scoring.Policy
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store ports.Store, policy scoring.Policy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, policy: policy, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Create opens a pending relationship between a firm and a client. The
// actor must be one of the two parties; each pair may exist once.
func (s *Service) Create(ctx context.Context, actor, firmPartyID, clientPartyID string) (models.Relationship, error) {
	firmPartyID, clientPartyID = strings.TrimSpace(firmPartyID), strings.TrimSpace(clientPartyID)
	switch {
	case firmPartyID == "":
		return models.Relationship{}, apperr.Validation("firm_party_id", "required")
	case clientPartyID == "":
		return models.Relationship{}, apperr.Validation("client_party_id", "required")
	case models.IsReservedPartyID(firmPartyID):
		return models.Relationship{}, apperr.Validation("firm_party_id", "reserved")
	case models.IsReservedPartyID(clientPartyID):
		return models.Relationship{}, apperr.Validation("client_party_id", "reserved")
	case firmPartyID == clientPartyID:
		return models.Relationship{}, apperr.Validation("client_party_id", "must differ from firm_party_id")
	case actor != firmPartyID && actor != clientPartyID:
		return models.Relationship{}, apperr.Unauthorized(actor, "must be one of the parties")
	}
	now := s.now()
	rel := models.Relationship{
		ID:            uuid.NewString(),
		FirmPartyID:   firmPartyID,
		ClientPartyID: clientPartyID,
		Status:        models.RelationshipPending,
		InitiatedBy:   actor,
		Score:         s.policy.InitialScore,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertRelationship(ctx, rel); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return models.Relationship{}, apperr.InvariantWrap("unique_relationship", "relationship already exists for this firm and client", err)
		}
		return models.Relationship{}, ports.MapError("create_relationship", "relationship", rel.ID, err)
	}
	s.log.Info("relationship created",
		zap.String("relationship_id", rel.ID),
		zap.String("firm_party_id", firmPartyID),
		zap.String("client_party_id", clientPartyID),
		zap.String("actor", actor),
	)
	return rel, nil
}

func (s *Service) Get(ctx context.Context, actor, id string) (models.Relationship, error) {
	rel, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return models.Relationship{}, ports.MapError("get_relationship", "relationship", id, err)
	}
	if !rel.IsParty(actor) {
		return models.Relationship{}, apperr.Unauthorized(actor, "not a party to relationship "+id)
	}
	return rel, nil
}

// Verify moves a pending relationship to verified. Only the party that did
// not initiate it may verify.
func (s *Service) Verify(ctx context.Context, actor, id string) (models.Relationship, error) {
	return s.transition(ctx, actor, id, models.RelationshipPending, models.RelationshipVerified, true)
}

// Establish completes onboarding of a verified relationship.
func (s *Service) Establish(ctx context.Context, actor, id string) (models.Relationship, error) {
	return s.transition(ctx, actor, id, models.RelationshipVerified, models.RelationshipEstablished, false)
}

func (s *Service) transition(ctx context.Context, actor, id string, from, to models.RelationshipStatus, counterpartyOnly bool) (models.Relationship, error) {
	rel, err := s.Get(ctx, actor, id)
	if err != nil {
		return models.Relationship{}, err
	}
	if counterpartyOnly && actor == rel.InitiatedBy {
		return models.Relationship{}, apperr.Unauthorized(actor, "the initiating party cannot verify")
	}
	if rel.Status != from {
		return models.Relationship{}, apperr.Invariant("relationship_state", "relationship "+id+" is "+string(rel.Status)+", expected "+string(from))
	}
	if err := s.store.UpdateRelationshipStatus(ctx, id, from, to); err != nil {
		return models.Relationship{}, ports.MapError("relationship_"+string(to), "relationship", id, err)
	}
	rel.Status = to
	rel.UpdatedAt = s.now()
	s.log.Info("relationship status changed",
		zap.String("relationship_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor),
	)
	return rel, nil
}
