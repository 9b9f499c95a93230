package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"transcribe-gateway/middleware/ratelimit/application"
	"transcribe-gateway/middleware/ratelimit/domain"
)

// DefaultKeyHeader é o header com o IP real do cliente quando o gateway roda atrás da Cloudflare.
const DefaultKeyHeader = "CF-Connecting-IP"

type KeyFunc func(r *http.Request) string

// RejectFunc escreve a resposta de bloqueio. Retry-After já está setado em w.
type RejectFunc func(w http.ResponseWriter, r *http.Request, dec domain.Decision)

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	OnReject            RejectFunc
	Logger              *zap.Logger
}

type windowInfo interface {
	Limit() int
	Window() time.Duration
}

// DefaultKeyFunc monta a chave do cliente.
//
// Com keyHeader configurado o header é a fonte de verdade: se vier vazio
// (e não houver XFF confiável) a chave é "unknown", nunca o RemoteAddr, já que
// atrás de um proxy o RemoteAddr é o próprio proxy.
// Sem keyHeader: XFF (se confiável) -> host do RemoteAddr -> "unknown".
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if ip := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
				return ip
			}
		}

		if keyHeader != "" {
			return string(domain.UnknownKey)
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return string(domain.UnknownKey)
	}
}

// firstForwardedFor pega o primeiro IP do X-Forwarded-For (cliente original).
func firstForwardedFor(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func defaultReject(status int) RejectFunc {
	return func(w http.ResponseWriter, _ *http.Request, _ domain.Decision) {
		http.Error(w, http.StatusText(status), status)
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = application.DefaultRetryAfter
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.OnReject == nil {
		opts.OnReject = defaultReject(opts.RejectStatus)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))
			if key == "" {
				key = domain.UnknownKey
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(key))
				if wi, ok := opts.Store.(windowInfo); ok {
					w.Header().Set("X-RateLimit-Limit", formatInt(wi.Limit()))
					w.Header().Set("X-RateLimit-Window", formatFloat(wi.Window().Seconds()))
				}
			}

			dec := svc.Decide(key)
			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				if err != nil {
					opts.Logger.Debug("rate limit stats not recorded", zap.Error(err))
				}
			}
			if !dec.Allowed {
				opts.Logger.Info("rate limit exceeded",
					zap.String("client", string(key)),
					zap.Duration("retry_after", dec.RetryAfter))
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
				opts.OnReject(w, r, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
