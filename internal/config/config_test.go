package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultPathYieldsDefaults(t *testing.T) {
	cfg, err := Load(DefaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "http://localhost:2333", cfg.BaseURL())
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	require.Error(t, err)
}

func TestLoadNormalizesProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"domain: dir.example\nprotocol: https\nenv: production\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://", cfg.Protocol)
	assert.Equal(t, "https://dir.example", cfg.BaseURL())
	assert.False(t, cfg.IsDev())
}

func TestDSNAssembly(t *testing.T) {
	db := DatabaseConfig{Host: "db.internal", Port: 3307, User: "wi", Password: "pw", Name: "worldindex"}
	dsn := db.DSNValue()
	assert.Contains(t, dsn, "wi:pw@tcp(db.internal:3307)/worldindex")
	assert.Contains(t, dsn, "parseTime=True")

	verbatim := DatabaseConfig{DSN: "custom-dsn"}
	assert.Equal(t, "custom-dsn", verbatim.DSNValue())
}
