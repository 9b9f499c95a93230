package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"transcribe-gateway/gateway"
	"transcribe-gateway/middleware/ratelimit"
	"transcribe-gateway/upstream"
)

type config struct {
	listenAddr    string
	readTimeout   time.Duration
	upstreamURL   string
	apiKey        string
	allowedOrigin string
	path          string

	rateEnabled      bool
	rateLimit        int
	rateWindow       time.Duration
	rateKeyHeader    string
	trustXFF         bool
	rateCleanupEvery time.Duration
	addHeaders       bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	upstreamTimeout time.Duration
	upstreamRPS     float64
	upstreamBurst   int
	maxBodyBytes    int64

	rateStatsBackend       string
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
	rateStatsNatsURL       string
	rateStatsNatsSubject   string

	logLevel  string
	logFormat string
}

// defaults: sem nenhuma variável além de GROQ_API_KEY o gateway sobe com o comportamento de produção.
var defaults = map[string]any{
	"LISTEN_ADDR":     ":8080",
	"READ_TIMEOUT":    time.Duration(0),
	"UPSTREAM_URL":    upstream.DefaultURL,
	"ALLOWED_ORIGIN":  gateway.DefaultAllowedOrigin,
	"TRANSCRIBE_PATH": gateway.DefaultPath,

	"RATE_ENABLED":          true,
	"RATE_LIMIT":            30,
	"RATE_WINDOW":           time.Minute,
	"RATE_KEY_HEADER":       ratelimit.DefaultKeyHeader,
	"TRUST_XFF":             false,
	"RATE_CLEANUP_EVERY":    2 * time.Minute,
	"ADD_RATELIMIT_HEADERS": false,

	"CONCURRENCY_MAX":     0,
	"CONCURRENCY_TIMEOUT": time.Duration(0),

	"UPSTREAM_TIMEOUT": time.Duration(0),
	"UPSTREAM_RPS":     0.0,
	"UPSTREAM_BURST":   1,
	"MAX_BODY_BYTES":   int64(0),

	"RATE_STATS_BACKEND":      "none",
	"RATE_STATS_REDIS_DB":     0,
	"RATE_STATS_PREFIX":       "transcribe:ratelimit:stats",
	"RATE_STATS_TTL":          24 * time.Hour,
	"RATE_STATS_BUCKET":       "minute",
	"RATE_STATS_TRACK_KEYS":   false,
	"RATE_STATS_NATS_URL":     "nats://127.0.0.1:4222",
	"RATE_STATS_NATS_SUBJECT": "transcribe.ratelimit",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	return v
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr:    v.GetString("LISTEN_ADDR"),
		readTimeout:   v.GetDuration("READ_TIMEOUT"),
		upstreamURL:   strings.TrimSpace(v.GetString("UPSTREAM_URL")),
		apiKey:        strings.TrimSpace(v.GetString("GROQ_API_KEY")),
		allowedOrigin: strings.TrimSpace(v.GetString("ALLOWED_ORIGIN")),
		path:          v.GetString("TRANSCRIBE_PATH"),

		rateEnabled:      v.GetBool("RATE_ENABLED"),
		rateLimit:        v.GetInt("RATE_LIMIT"),
		rateWindow:       v.GetDuration("RATE_WINDOW"),
		rateKeyHeader:    strings.TrimSpace(v.GetString("RATE_KEY_HEADER")),
		trustXFF:         v.GetBool("TRUST_XFF"),
		rateCleanupEvery: v.GetDuration("RATE_CLEANUP_EVERY"),
		addHeaders:       v.GetBool("ADD_RATELIMIT_HEADERS"),

		concurrencyMax:     v.GetInt("CONCURRENCY_MAX"),
		concurrencyTimeout: v.GetDuration("CONCURRENCY_TIMEOUT"),

		upstreamTimeout: v.GetDuration("UPSTREAM_TIMEOUT"),
		upstreamRPS:     v.GetFloat64("UPSTREAM_RPS"),
		upstreamBurst:   v.GetInt("UPSTREAM_BURST"),
		maxBodyBytes:    v.GetInt64("MAX_BODY_BYTES"),

		rateStatsBackend:       strings.ToLower(strings.TrimSpace(v.GetString("RATE_STATS_BACKEND"))),
		rateStatsRedisAddr:     v.GetString("RATE_STATS_REDIS_ADDR"),
		rateStatsRedisPassword: v.GetString("RATE_STATS_REDIS_PASSWORD"),
		rateStatsRedisDB:       v.GetInt("RATE_STATS_REDIS_DB"),
		rateStatsPrefix:        v.GetString("RATE_STATS_PREFIX"),
		rateStatsTTL:           v.GetDuration("RATE_STATS_TTL"),
		rateStatsBucket:        v.GetString("RATE_STATS_BUCKET"),
		rateStatsTrackKeys:     v.GetBool("RATE_STATS_TRACK_KEYS"),
		rateStatsNatsURL:       v.GetString("RATE_STATS_NATS_URL"),
		rateStatsNatsSubject:   v.GetString("RATE_STATS_NATS_SUBJECT"),

		logLevel:  v.GetString("LOG_LEVEL"),
		logFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if cfg.apiKey == "" {
		return config{}, errors.New("GROQ_API_KEY is required")
	}
	if cfg.allowedOrigin == "" {
		return config{}, errors.New("ALLOWED_ORIGIN must not be empty")
	}
	u, err := url.Parse(cfg.upstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return config{}, fmt.Errorf("invalid UPSTREAM_URL %q", cfg.upstreamURL)
	}
	if !strings.HasPrefix(cfg.path, "/") {
		return config{}, fmt.Errorf("TRANSCRIBE_PATH must start with /, got %q", cfg.path)
	}
	if cfg.rateEnabled {
		if cfg.rateLimit <= 0 {
			return config{}, errors.New("RATE_LIMIT must be > 0")
		}
		if cfg.rateWindow <= 0 {
			return config{}, errors.New("RATE_WINDOW must be > 0")
		}
	}
	if cfg.readTimeout < 0 {
		return config{}, errors.New("READ_TIMEOUT must be >= 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.upstreamRPS < 0 {
		return config{}, errors.New("UPSTREAM_RPS must be >= 0")
	}
	if cfg.maxBodyBytes < 0 {
		return config{}, errors.New("MAX_BODY_BYTES must be >= 0")
	}

	switch cfg.rateStatsBackend {
	case "", "none", "memory":
	case "redis":
		if strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
			return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_BACKEND=redis")
		}
	case "nats":
		if strings.TrimSpace(cfg.rateStatsNatsURL) == "" {
			return config{}, errors.New("RATE_STATS_NATS_URL is required when RATE_STATS_BACKEND=nats")
		}
	default:
		return config{}, fmt.Errorf("unknown RATE_STATS_BACKEND %q (none, memory, redis, nats)", cfg.rateStatsBackend)
	}

	return cfg, nil
}
