package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	require.NoError(t, Load("config.yaml"))
	assert.Equal(t, ":8080", C.Server.Port)
	assert.Equal(t, "change-me", C.JWT.Secret)
	assert.Equal(t, 2*time.Second, C.Game.RevealDelay)
	assert.Equal(t, 24*time.Hour, C.Game.RecordTTL)
	assert.Equal(t, 10*time.Minute, C.Game.IdleTimeout)

	s := C.GameSettings()
	assert.Equal(t, 10, s.StartingLives)
	assert.Equal(t, 10*time.Second, s.RevealWindow)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SNAPPOKER_JWT_SECRET", "from-env")
	t.Setenv("SNAPPOKER_GAME_STARTINGLIVES", "3")
	t.Setenv("SNAPPOKER_DATABASE_DSN", "postgres://x")

	require.NoError(t, Load(""))
	assert.Equal(t, "from-env", C.JWT.Secret)
	assert.Equal(t, 3, C.Game.StartingLives)
	assert.Equal(t, "postgres://x", C.Database.DSN)
	assert.Equal(t, 300, C.Matchmaker.PlayerTTL)
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	noSecret := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(noSecret, []byte("server:\n  port: \":1\"\n"), 0o600))
	assert.Error(t, Load(noSecret))

	assert.Error(t, Load(filepath.Join(dir, "missing.yaml")))

	badLives := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(badLives, []byte("jwt:\n  secret: x\ngame:\n  startingLives: 0\n"), 0o600))
	assert.Error(t, Load(badLives))
}
