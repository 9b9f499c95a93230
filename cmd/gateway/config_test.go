package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadConfig_ProductionDefaults(t *testing.T) {
	v := newViper()
	v.Set("GROQ_API_KEY", "sk-test")

	cfg, err := readConfig(v)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.listenAddr)
	require.Zero(t, cfg.readTimeout, "slow uploads must not be cut off by default")
	require.Equal(t, "https://api.groq.com/openai/v1/audio/transcriptions", cfg.upstreamURL)
	require.Equal(t, "https://dayonebuilder.github.io", cfg.allowedOrigin)
	require.Equal(t, "/transcribe", cfg.path)
	require.True(t, cfg.rateEnabled)
	require.Equal(t, 30, cfg.rateLimit)
	require.Equal(t, 60*time.Second, cfg.rateWindow)
	require.Equal(t, "CF-Connecting-IP", cfg.rateKeyHeader)
	require.Zero(t, cfg.concurrencyMax)
	require.Zero(t, cfg.upstreamTimeout)
	require.Zero(t, cfg.maxBodyBytes)
	require.Equal(t, "none", cfg.rateStatsBackend)
}

func TestReadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "sk-env")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW", "10s")
	t.Setenv("ALLOWED_ORIGIN", "http://localhost:5173")
	t.Setenv("UPSTREAM_RPS", "2.5")
	t.Setenv("READ_TIMEOUT", "5m")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)
	require.Equal(t, "sk-env", cfg.apiKey)
	require.Equal(t, 5, cfg.rateLimit)
	require.Equal(t, 10*time.Second, cfg.rateWindow)
	require.Equal(t, "http://localhost:5173", cfg.allowedOrigin)
	require.InDelta(t, 2.5, cfg.upstreamRPS, 1e-9)
	require.Equal(t, 5*time.Minute, cfg.readTimeout)
}

func TestReadConfig_FlagOverridesEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "sk-env")
	t.Setenv("LISTEN_ADDR", ":9000")

	v := newViper()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.Flags().Set("listen", "127.0.0.1:7000"))

	cfg, err := readConfig(v)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.listenAddr)
}

func TestReadConfig_Validation(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")

	cases := map[string]map[string]any{
		"missing key":           {},
		"empty origin":          {"GROQ_API_KEY": "k", "ALLOWED_ORIGIN": " "},
		"bad upstream":          {"GROQ_API_KEY": "k", "UPSTREAM_URL": "ftp://nope"},
		"relative path":         {"GROQ_API_KEY": "k", "TRANSCRIBE_PATH": "transcribe"},
		"zero limit":            {"GROQ_API_KEY": "k", "RATE_LIMIT": 0},
		"zero window":           {"GROQ_API_KEY": "k", "RATE_WINDOW": time.Duration(0)},
		"negative read timeout": {"GROQ_API_KEY": "k", "READ_TIMEOUT": -time.Second},
		"negative concurrency":  {"GROQ_API_KEY": "k", "CONCURRENCY_MAX": -1},
		"negative rps":          {"GROQ_API_KEY": "k", "UPSTREAM_RPS": -1.0},
		"negative body":         {"GROQ_API_KEY": "k", "MAX_BODY_BYTES": int64(-1)},
		"redis without addr":    {"GROQ_API_KEY": "k", "RATE_STATS_BACKEND": "redis"},
		"nats without url":      {"GROQ_API_KEY": "k", "RATE_STATS_BACKEND": "nats", "RATE_STATS_NATS_URL": ""},
		"unknown backend":       {"GROQ_API_KEY": "k", "RATE_STATS_BACKEND": "kafka"},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			v := newViper()
			for k, val := range values {
				v.Set(k, val)
			}
			_, err := readConfig(v)
			require.Error(t, err)
		})
	}
}

func TestReadConfig_RateDisabledSkipsLimitValidation(t *testing.T) {
	v := newViper()
	v.Set("GROQ_API_KEY", "k")
	v.Set("RATE_ENABLED", false)
	v.Set("RATE_LIMIT", 0)

	_, err := readConfig(v)
	require.NoError(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug", "console")
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = newLogger("loud", "json")
	require.Error(t, err)

	_, err = newLogger("info", "xml")
	require.Error(t, err)
}

func TestBuildStats_MemoryAndNone(t *testing.T) {
	st, closeFn, err := buildStats(context.Background(), config{rateStatsBackend: "memory"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, st)
	closeFn()

	st, closeFn, err = buildStats(context.Background(), config{rateStatsBackend: "none"}, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, st)
	closeFn()
}
