package relationships

import (
	"context"
	"testing"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/repository/memory"
	"liaison/internal/services/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	svc := NewService(memory.New(), scoring.DefaultPolicy(), nil)
	ctx := context.Background()

	rel, err := svc.Create(ctx, "firm", "firm", "client")
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipPending, rel.Status)
	assert.Equal(t, 100.0, rel.Score)
	assert.Equal(t, "firm", rel.InitiatedBy)

	_, err = svc.Verify(ctx, "firm", rel.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = svc.Establish(ctx, "client", rel.ID)
	assert.ErrorIs(t, err, apperr.ErrInvariant)

	rel, err = svc.Verify(ctx, "client", rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipVerified, rel.Status)

	rel, err = svc.Establish(ctx, "firm", rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipEstablished, rel.Status)

	got, err := svc.Get(ctx, "client", rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipEstablished, got.Status)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(memory.New(), scoring.DefaultPolicy(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "firm", "", "client")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, "firm", "firm", "firm")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, "mallory", "firm", "client")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCreate_RejectsSystemParty(t *testing.T) {
	svc := NewService(memory.New(), scoring.DefaultPolicy(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "system", "system", "client")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "firm_party_id", ve.Field)

	_, err = svc.Create(ctx, "firm", "firm", " System")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "client_party_id", ve.Field)
}

func TestCreate_PairIsUnique(t *testing.T) {
	svc := NewService(memory.New(), scoring.DefaultPolicy(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "firm", "firm", "client")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "client", "firm", "client")
	assert.ErrorIs(t, err, apperr.ErrInvariant)
}

func TestGet_OutsiderAndMissing(t *testing.T) {
	svc := NewService(memory.New(), scoring.DefaultPolicy(), nil)
	ctx := context.Background()
	rel, err := svc.Create(ctx, "client", "firm", "client")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "mallory", rel.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = svc.Get(ctx, "firm", "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
