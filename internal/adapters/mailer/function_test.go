package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"liaison/internal/apperr"
	"liaison/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionMailer_Send(t *testing.T) {
	var got ports.Email
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewFunctionMailer(srv.URL, "k-1", nil)
	err := m.Send(context.Background(), ports.Email{To: "ana@example.com", Subject: "Reminder", Body: "pay", SenderName: "Ledger & Co"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.To)
	assert.Equal(t, "Ledger & Co", got.SenderName)
}

func TestFunctionMailer_NonSuccessIsDependencyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewFunctionMailer(srv.URL, "", nil).Send(context.Background(), ports.Email{To: "a@b.c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDependency)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestFunctionMailer_EmptyRecipient(t *testing.T) {
	err := NewFunctionMailer("http://unused", "", nil).Send(context.Background(), ports.Email{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
