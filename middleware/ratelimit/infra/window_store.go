package infra

import (
	"context"
	"sync"
	"time"

	"transcribe-gateway/middleware/ratelimit/domain"
)

// WindowStore implementa janela fixa por chave: a primeira requisição abre a janela,
// as seguintes incrementam o contador e passam enquanto count <= limit.
// Requisições negadas também incrementam (o contador não satura).
//
// Toda leitura+escrita do contador acontece sob o mesmo mutex, então duas requisições
// simultâneas da mesma chave não conseguem estourar o limite nem reabrir a janela duas vezes.
type WindowStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*windowEntry
	window       domain.Window
	now          func() time.Time
	cleanupEvery time.Duration
}

type windowEntry struct {
	start time.Time
	count int
}

type WindowOption func(*WindowStore)

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func WithCleanupEvery(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

func NewWindowStore(limit int, window time.Duration, opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		entries:      make(map[domain.Key]*windowEntry),
		window:       domain.Window{Limit: limit, Duration: window},
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Limit() int                  { return s.window.Limit }
func (s *WindowStore) Window() time.Duration       { return s.window.Duration }
func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Len retorna quantas chaves estão na tabela (inclusive janelas já vencidas
// que o janitor ainda não removeu).
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Count retorna o contador atual da chave e se ela existe.
func (s *WindowStore) Count(key domain.Key) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	return ent.count, true
}

// Get implementa domain.LimiterStore.
//
// O limiter retornado não guarda estado próprio: cada Allow vai até a tabela,
// então não há ponteiro "órfão" quando o janitor remove a chave.
func (s *WindowStore) Get(key domain.Key) domain.Limiter {
	return windowLimiter{store: s, key: key}
}

type windowLimiter struct {
	store *WindowStore
	key   domain.Key
}

func (l windowLimiter) Allow() bool               { return l.store.hit(l.key) }
func (l windowLimiter) RetryAfter() time.Duration { return l.store.retryAfter(l.key) }

func (s *WindowStore) hit(key domain.Key) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || s.expired(ent, now) {
		s.entries[key] = &windowEntry{start: now, count: 1}
		return true
	}

	ent.count++
	return ent.count <= s.window.Limit
}

func (s *WindowStore) retryAfter(key domain.Key) time.Duration {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || s.expired(ent, now) {
		return 0
	}
	return ent.start.Add(s.window.Duration).Sub(now)
}

// expired: a janela só reinicia quando passou MAIS que a duração.
func (s *WindowStore) expired(ent *windowEntry, now time.Time) bool {
	return now.Sub(ent.start) > s.window.Duration
}

// Cleanup remove chaves cuja janela já venceu. Como a próxima requisição dessas
// chaves reiniciaria a janela de qualquer forma, remover não muda nenhuma decisão.
func (s *WindowStore) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if s.expired(ent, now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa janelas vencidas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
