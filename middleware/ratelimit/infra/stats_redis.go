package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transcribe-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const defaultStatsPrefix = "transcribe:ratelimit:stats"

// RedisStatsStore grava contadores allowed/denied em hashes do Redis:
//
//	<prefix>:total                  cumulativo, não expira
//	<prefix>:minute:<yyyymmddhhmm>  série por minuto (bucket "minute")
//	<prefix>:route                  "<METHOD> <path>:<allowed|denied>"
//	<prefix>:key:<cliente>          por cliente (trackKeys)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: defaultStatsPrefix,
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := statsField(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		s.incrExpiring(ctx, pipe, bucketKey, field)
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			s.incrExpiring(ctx, pipe, s.prefix+":key:"+k, field)
		}
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis stats pipeline: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func statsField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
