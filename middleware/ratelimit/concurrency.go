package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"transcribe-gateway/middleware/ratelimit/application"
	"transcribe-gateway/middleware/ratelimit/domain"
	"transcribe-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Pool substitui o semáforo padrão (testes).
	Pool     domain.SlotPool
	OnReject func(w http.ResponseWriter, r *http.Request, status int)
	Logger   *zap.Logger
}

// ConcurrencyMiddleware limita quantas requests chegam ao próximo handler ao mesmo tempo.
// Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 && opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.OnReject == nil {
		opts.OnReject = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if !errors.Is(err, application.ErrAcquireTimeout) {
					// cliente foi embora; ninguém vai ler a resposta
					opts.Logger.Debug("client gone while waiting for slot", zap.Error(err))
					return
				}
				opts.Logger.Warn("no concurrency slot available", zap.Int("max", opts.Max))
				opts.OnReject(w, r, opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
