package database

import (
	"context"

	"liaison/internal/models"
)

const relationshipColumns = `
	id::text, firm_party_id, client_party_id, status, initiated_by,
	score, consecutive_misses, on_time_streak, last_miss_at,
	on_time_count, resolved_count, created_at, updated_at`

func scanRelationship(row interface{ Scan(...any) error }) (models.Relationship, error) {
	var r models.Relationship
	err := row.Scan(
		&r.ID, &r.FirmPartyID, &r.ClientPartyID, &r.Status, &r.InitiatedBy,
		&r.Score, &r.ConsecutiveMisses, &r.OnTimeStreak, &r.LastMissAt,
		&r.OnTimeCount, &r.ResolvedCount, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const insertRelationshipQuery = `
	INSERT INTO relationships (
		id, firm_party_id, client_party_id, status, initiated_by,
		score, consecutive_misses, on_time_streak, last_miss_at,
		on_time_count, resolved_count, created_at, updated_at
	)
	VALUES (
		$1::uuid, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12, $13
	);
`

func (r *repo) InsertRelationship(ctx context.Context, rel models.Relationship) error {
	_, err := r.q.Exec(ctx, insertRelationshipQuery,
		rel.ID, rel.FirmPartyID, rel.ClientPartyID, rel.Status, rel.InitiatedBy,
		rel.Score, rel.ConsecutiveMisses, rel.OnTimeStreak, rel.LastMissAt,
		rel.OnTimeCount, rel.ResolvedCount, rel.CreatedAt, rel.UpdatedAt,
	)
	return mapErr(err)
}

func (r *repo) GetRelationship(ctx context.Context, id string) (models.Relationship, error) {
	rel, err := scanRelationship(r.q.QueryRow(ctx,
		`SELECT `+relationshipColumns+` FROM relationships WHERE id = $1::uuid`, id))
	return rel, mapErr(err)
}

func (r *repo) UpdateRelationshipStatus(ctx context.Context, id string, from, to models.RelationshipStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE relationships SET status = $3, updated_at = now()
		WHERE id = $1::uuid AND status = $2`, id, from, to)
	if err != nil {
		return mapErr(err)
	}
	return r.conditional(ctx, tag, "relationships", id)
}

func (r *repo) SaveReputation(ctx context.Context, rel models.Relationship) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE relationships SET
			score = $2, consecutive_misses = $3, on_time_streak = $4, last_miss_at = $5,
			on_time_count = $6, resolved_count = $7, updated_at = $8
		WHERE id = $1::uuid`,
		rel.ID, rel.Score, rel.ConsecutiveMisses, rel.OnTimeStreak, rel.LastMissAt,
		rel.OnTimeCount, rel.ResolvedCount, rel.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return r.conditional(ctx, tag, "relationships", rel.ID)
}
