package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"liaison/internal/services/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPolicyCommandPrintsOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_penalty: 12\n"), 0o600))

	var out bytes.Buffer
	policyCmd.SetOut(&out)
	policyFile = path
	t.Cleanup(func() { policyFile = "" })
	require.NoError(t, policyCmd.RunE(policyCmd, nil))

	var p scoring.Policy
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &p))
	assert.Equal(t, 12.0, p.BasePenalty)
	assert.Equal(t, scoring.DefaultPolicy().Multiplier, p.Multiplier)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret-0123")
	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	require.NoError(t, tokenCmd.RunE(tokenCmd, []string{"firm-1"}))
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out.String())

	t.Setenv("JWT_SECRET", "")
	assert.Error(t, tokenCmd.RunE(tokenCmd, []string{"firm-1"}))
}

func TestHasScheme(t *testing.T) {
	assert.True(t, hasScheme("s3://b/k"))
	assert.True(t, hasScheme("https://x/y.csv"))
	assert.False(t, hasScheme("./statements/march.csv"))
}
