package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "data/triagem.db", cfg.SQLitePath)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.CORSOrigins)
	assert.True(t, cfg.IsDev())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TRIAGEM_ADDR", ":9090")
	t.Setenv("TRIAGEM_STORE", "Postgres")
	t.Setenv("TRIAGEM_DATABASE_URL", "postgres://u:p@localhost:5432/triagem")
	t.Setenv("TRIAGEM_DB_MAX_CONNS", "4")
	t.Setenv("TRIAGEM_TOKEN_TTL", "2h")
	t.Setenv("TRIAGEM_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, int32(4), cfg.DBMaxConns)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Env: "development", Store: StoreMemory, DBMaxConns: 2, DBMinConns: 1, TokenTTL: time.Hour}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.Store = "mongo"
	assert.Error(t, c.Validate())

	c = base()
	c.Store = StorePostgres
	assert.Error(t, c.Validate())

	c = base()
	c.Env = "production"
	assert.Error(t, c.Validate())
	c.JWTSecret = "x"
	assert.NoError(t, c.Validate())

	c = base()
	c.DBMinConns = 5
	assert.Error(t, c.Validate())

	c = base()
	c.TokenTTL = 0
	assert.Error(t, c.Validate())
}
