package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("REMINDER_HORIZON", "")

	s := Load()
	assert.Equal(t, "8070", s.Port)
	assert.Equal(t, StorePostgres, s.Store)
	assert.Equal(t, 7*24*time.Hour, s.ReminderHorizon)
	require.NoError(t, s.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "Memory")
	t.Setenv("RATE_LIMIT_RPS", "20")
	t.Setenv("REMINDER_HORIZON", "72h")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("ADMIN_PARTY_IDS", " ops-1, ,ops-2")

	s := Load()
	assert.Equal(t, StoreMemory, s.Store)
	assert.Equal(t, 20, s.RateLimitRPS)
	assert.Equal(t, 72*time.Hour, s.ReminderHorizon)
	assert.Equal(t, 0, s.Redis.DB)
	assert.Equal(t, []string{"ops-1", "ops-2"}, s.AdminParties)
}

func TestValidate(t *testing.T) {
	s := Load()
	s.Store = "sqlite"
	s.RateBurst = 0
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE")
	assert.Contains(t, err.Error(), "RATE_LIMIT_BURST")
}
