package infra

import (
	"context"
	"sync"

	"transcribe-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore guarda contadores em memória.
// Útil para testes, desenvolvimento e para o resumo logado no shutdown.
//
// Não faz expiração: com trackKeys ligado o mapa por cliente cresce sem limite.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byRoute[route]
	c.add(ev.Allowed)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[ev.Key]
		k.add(ev.Allowed)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
