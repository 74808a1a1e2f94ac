package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func memoryEnv(t *testing.T) {
	t.Setenv("HUMANITY_APP_ENV", "test")
	t.Setenv("HUMANITY_MONGO_DRIVER", "memory")
	t.Setenv("HUMANITY_STORAGE_DRIVER", "memory")
	t.Setenv("HUMANITY_JWT_SECRET", "cli-secret")
}

func TestTokenCommand(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "token", "alice", "--config", "", "--ttl", "1h")
	require.NoError(t, err)

	v, err := auth.NewVerifier(auth.VerifierConfig{Secret: "cli-secret"})
	require.NoError(t, err)
	p, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)

	_, err = run(t, "token", "alice", "--config", "", "--ttl", "soon")
	assert.Error(t, err)
}

func TestSweepDryRun(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "sweep", "--config", "", "--dry-run", "--grace", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 0")
}
