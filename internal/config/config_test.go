package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "BOARDSYNC_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "BOARDSYNC_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "BOARDSYNC_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "BOARDSYNC_TEST_DUR_UNSET", setVal: nil, fallback: 2 * time.Second, want: 2 * time.Second},
		{name: "parses duration", key: "BOARDSYNC_TEST_DUR_VALID", setVal: strPtr("45s"), want: 45 * time.Second},
		{name: "errors on bare number", key: "BOARDSYNC_TEST_DUR_NAN", setVal: strPtr("45"), wantErr: true},
		{name: "errors on junk", key: "BOARDSYNC_TEST_DUR_JUNK", setVal: strPtr("soon"), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Run("parses true", func(t *testing.T) {
		t.Setenv("BOARDSYNC_TEST_BOOL", "true")
		got, err := getEnvBool("BOARDSYNC_TEST_BOOL", false)
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("errors on junk", func(t *testing.T) {
		t.Setenv("BOARDSYNC_TEST_BOOL_JUNK", "yep")
		_, err := getEnvBool("BOARDSYNC_TEST_BOOL_JUNK", false)
		assert.Error(t, err)
	})
}

func TestGetEnvList(t *testing.T) {
	t.Run("splits and trims", func(t *testing.T) {
		t.Setenv("BOARDSYNC_TEST_LIST", "http://a.example, http://b.example ,")
		got := getEnvList("BOARDSYNC_TEST_LIST", nil)
		assert.Equal(t, []string{"http://a.example", "http://b.example"}, got)
	})

	t.Run("fallback when unset", func(t *testing.T) {
		got := getEnvList("BOARDSYNC_TEST_LIST_UNSET", []string{"http://localhost:3000"})
		assert.Equal(t, []string{"http://localhost:3000"}, got)
	})
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":3001", cfg.Server.Addr)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, 2*time.Second, cfg.Redis.ProbeTimeout)
		assert.False(t, cfg.Redis.ForceMemory)
		assert.Equal(t, 25*time.Second, cfg.Sync.PingInterval)
		assert.Equal(t, 60*time.Second, cfg.Sync.ReadTimeout)
		assert.Equal(t, 15*time.Second, cfg.Sync.PresenceSweep)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("BOARDSYNC_SERVER_ADDR", ":9000")
		t.Setenv("BOARDSYNC_FORCE_MEMORY", "true")
		t.Setenv("BOARDSYNC_REDIS_ADDR", "redis.internal:6380")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.True(t, cfg.Redis.ForceMemory)
		assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	})

	t.Run("rejects conn timeout below ping interval", func(t *testing.T) {
		t.Setenv("BOARDSYNC_CONN_TIMEOUT", "10s")
		t.Setenv("BOARDSYNC_PING_INTERVAL", "25s")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects malformed redis db", func(t *testing.T) {
		t.Setenv("BOARDSYNC_REDIS_DB", "two")

		_, err := Load()
		assert.Error(t, err)
	})
}
