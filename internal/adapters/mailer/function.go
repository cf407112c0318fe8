package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/ports"

	"go.uber.org/zap"
)

// FunctionMailer posts emails to the hosted outbound email function.
type FunctionMailer struct {
	URL    string
	Key    string
	Client *http.Client
	Log    *zap.Logger
}

var _ ports.Mailer = (*FunctionMailer)(nil)

func NewFunctionMailer(url, key string, log *zap.Logger) *FunctionMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &FunctionMailer{
		URL:    url,
		Key:    key,
		Client: &http.Client{Timeout: 10 * time.Second},
		Log:    log.Named("mailer"),
	}
}

func (m *FunctionMailer) Send(ctx context.Context, e ports.Email) error {
	if e.To == "" {
		return apperr.Validation("to", "recipient email is empty")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return apperr.Dependency("email", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.Key != "" {
		req.Header.Set("Authorization", "Bearer "+m.Key)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return apperr.Dependency("email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Dependency("email", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}
	m.Log.Debug("email sent", zap.String("subject", e.Subject), zap.String("sender_id", e.SenderID))
	return nil
}

// Discard drops every email; used when no email function is configured.
type Discard struct{ Log *zap.Logger }

func (d Discard) Send(_ context.Context, e ports.Email) error {
	if d.Log != nil {
		d.Log.Debug("email discarded", zap.String("subject", e.Subject))
	}
	return nil
}
