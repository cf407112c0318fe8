package database

import (
	"context"

	"liaison/internal/config/connections/postgres"
	"liaison/internal/ports"

	"github.com/jackc/pgx/v5"
)

var errNoRows = pgx.ErrNoRows

// PartyRepo resolves party ids to contact details for reminders.
type PartyRepo struct {
	pg *postgres.Postgres
}

func NewPartyRepo(pg *postgres.Postgres) *PartyRepo {
	return &PartyRepo{pg: pg}
}

var _ ports.Directory = (*PartyRepo)(nil)

func (r *PartyRepo) Contact(ctx context.Context, partyID string) (string, string, error) {
	var name, email string
	err := r.pg.Pool.QueryRow(ctx, `SELECT name, email FROM parties WHERE id = $1`, partyID).Scan(&name, &email)
	if err != nil {
		return "", "", mapErr(err)
	}
	return name, email, nil
}

const upsertPartyQuery = `
	INSERT INTO parties (id, name, email)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email;
`

func (r *PartyRepo) Upsert(ctx context.Context, id, name, email string) error {
	_, err := r.pg.Pool.Exec(ctx, upsertPartyQuery, id, name, email)
	return mapErr(err)
}
