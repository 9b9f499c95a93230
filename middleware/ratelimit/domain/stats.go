package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Method/Path são strings genéricas; o gateway só expõe POST /transcribe,
// então a cardinalidade por rota é baixa. Já Key (IP do cliente) pode crescer
// bastante: só é indexada quando a implementação pede (trackKeys).
type StatsEvent struct {
	Key     Key    `json:"key"`
	Allowed bool   `json:"allowed"`
	Method  string `json:"method"`
	Path    string `json:"path"`

	At time.Time `json:"at"`
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, publicar em NATS, memória, etc.
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
