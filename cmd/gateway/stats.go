package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transcribe-gateway/middleware/ratelimit/domain"
	"transcribe-gateway/middleware/ratelimit/infra"
)

// buildStats monta o destino das estatísticas do rate limit conforme RATE_STATS_BACKEND.
// O closer é sempre não-nil.
func buildStats(ctx context.Context, cfg config, log *zap.Logger) (domain.StatsStore, func(), error) {
	switch cfg.rateStatsBackend {
	case "memory":
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
		return mem, func() {
			total := mem.Total()
			log.Info("rate limit totals",
				zap.Int64("allowed", total.Allowed),
				zap.Int64("denied", total.Denied))
		}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis stats ping: %w", err)
		}

		st := infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		log.Info("rate limit stats in redis", zap.String("addr", cfg.rateStatsRedisAddr))
		return st, func() { _ = rdb.Close() }, nil

	case "nats":
		nc, err := infra.DialNats(cfg.rateStatsNatsURL, "transcribe-gateway")
		if err != nil {
			return nil, nil, err
		}
		st := infra.NewNatsStatsStore(nc, infra.WithStatsSubject(cfg.rateStatsNatsSubject))
		log.Info("rate limit stats on nats", zap.String("subject", st.Subject()+".{allowed,denied}"))
		return st, func() {
			if err := nc.Drain(); err != nil {
				nc.Close()
			}
		}, nil

	default:
		return nil, func() {}, nil
	}
}
