package application

import (
	"time"

	"transcribe-gateway/middleware/ratelimit/domain"
)

// DefaultRetryAfter é usado quando o limiter não sabe quando a janela termina.
const DefaultRetryAfter = 1 * time.Second

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if key == "" {
		key = domain.UnknownKey
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}
	if lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if h, ok := lim.(domain.RetryHinter); ok {
		if d := h.RetryAfter(); d > 0 {
			retry = d
		}
	}
	if retry <= 0 {
		retry = DefaultRetryAfter
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
