package audit

import (
	"context"

	mg "liaison/internal/config/connections/mongo"
	"liaison/internal/models"
	"liaison/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ScoreEventsCollection = "score_events"

// ScoreEvents is the append-only reputation trail kept in Mongo.
type ScoreEvents struct {
	m *mg.Mongo
}

var _ ports.ScoreAudit = (*ScoreEvents)(nil)

func NewScoreEvents(m *mg.Mongo) *ScoreEvents {
	return &ScoreEvents{m: m}
}

func (s *ScoreEvents) RecordScoreEvent(ctx context.Context, ev models.ScoreEvent) error {
	if s == nil || s.m == nil || s.m.Database == nil {
		return mongo.ErrClientDisconnected
	}
	_, err := s.m.Database.Collection(ScoreEventsCollection).InsertOne(ctx, ev, options.InsertOne())
	return err
}

// ListByRelationship returns the newest events first.
func (s *ScoreEvents) ListByRelationship(ctx context.Context, relationshipID string, limit int64) ([]models.ScoreEvent, error) {
	if s == nil || s.m == nil || s.m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	opts.SetLimit(limit)

	cur, err := s.m.Database.Collection(ScoreEventsCollection).Find(ctx, bson.M{"relationship_id": relationshipID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.ScoreEvent, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureIndexes creates the lookup index used by ListByRelationship.
func (s *ScoreEvents) EnsureIndexes(ctx context.Context) error {
	if s == nil || s.m == nil || s.m.Database == nil {
		return mongo.ErrClientDisconnected
	}
	_, err := s.m.Database.Collection(ScoreEventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "relationship_id", Value: 1}, {Key: "at", Value: -1}},
	})
	return err
}
