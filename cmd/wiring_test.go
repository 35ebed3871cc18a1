package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/cache"
	"github.com/spigell/sahara/internal/session"
)

func testConfig(t *testing.T, overrides map[string]any) *Config {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}

	var config *Config
	require.NoError(t, v.Unmarshal(&config))
	return config
}

func TestConfigDefaults(t *testing.T) {
	config := testConfig(t, nil)

	assert.Equal(t, ":8080", config.Server.Listen)
	assert.True(t, config.AI.Enabled)
	assert.Equal(t, "gemini-2.0-flash", config.AI.Gemini.Model)
	assert.InDelta(t, 0.3, config.AI.Gemini.Temperature, 1e-6)
	assert.EqualValues(t, 2000, config.AI.Gemini.MaxOutputTokens)
	assert.Equal(t, 15*time.Second, config.AI.Gemini.Timeout)
	assert.Equal(t, 5*time.Minute, config.Cache.TTL)
	assert.Equal(t, 5, config.Sessions.RecentLimit)
	assert.Equal(t, time.Second, config.Matching.BatchDelay)
}

func TestConfigParsesDurations(t *testing.T) {
	config := testConfig(t, map[string]any{"cache.ttl": "90s", "ai.gemini.timeout": "3s"})

	assert.Equal(t, 90*time.Second, config.Cache.TTL)
	assert.Equal(t, 3*time.Second, config.AI.Gemini.Timeout)
}

func TestBuildComponentsWithoutAIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	config := testConfig(t, map[string]any{
		"sessions.backend":     "sqlite",
		"sessions.sqlite-path": filepath.Join(t.TempDir(), "sessions.db"),
	})

	c, err := buildComponents(context.Background(), config, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.False(t, c.orchestrator.AIEnabled())
	assert.Equal(t, "keyword-matcher", c.orchestrator.AIModel())
	assert.Greater(t, c.catalog.Len(), 0)
	assert.Nil(t, c.redis)
}

func TestBuildComponentsWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	config := testConfig(t, map[string]any{
		"ai.enabled":       false,
		"cache.backend":    "redis",
		"sessions.backend": "redis",
		"redis.address":    mr.Addr(),
	})

	c, err := buildComponents(context.Background(), config, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.redis)
	_, err = c.recorder.Record(context.Background(), session.Record{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("sahara:session:record:s1"))
}

func TestBackendSelection(t *testing.T) {
	config := testConfig(t, nil)

	c, err := newCache(config, nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, c)

	store, err := newSessionStore(config, nil)
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, store)

	config.Cache.Backend = "memcached"
	_, err = newCache(config, nil)
	assert.ErrorContains(t, err, "unsupported cache backend")

	config.Sessions.Backend = "mongo"
	_, err = newSessionStore(config, nil)
	assert.ErrorContains(t, err, "unsupported sessions backend")
}

func TestNewAIMatcherRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	config := testConfig(t, nil)

	_, err := newAIMatcher(context.Background(), config.AI, nil, zap.NewNop())
	assert.ErrorContains(t, err, "gemini api key is not configured")

	config.AI.Provider = "openai"
	_, err = newAIMatcher(context.Background(), config.AI, nil, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported ai provider")
}

func TestSessionsCommandsNeedPersistentStore(t *testing.T) {
	config := testConfig(t, nil)
	assert.ErrorContains(t, requirePersistentSessions(config), "configure redis or sqlite")

	config.Sessions.Backend = "MEMORY"
	assert.Error(t, requirePersistentSessions(config))

	config.Sessions.Backend = backendSQLite
	assert.NoError(t, requirePersistentSessions(config))

	config.Sessions.Backend = backendRedis
	assert.NoError(t, requirePersistentSessions(config))
}
