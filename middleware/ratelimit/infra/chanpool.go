package infra

import (
	"context"
)

// ChanPool é um semáforo baseado em channel para limitar chamadas simultâneas ao upstream.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool com capacidade `max`.
func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

// Acquire implementa domain.SlotPool.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InFlight retorna quantas vagas estão ocupadas agora.
func (p *ChanPool) InFlight() int { return len(p.sem) }

// Cap retorna a capacidade total.
func (p *ChanPool) Cap() int { return cap(p.sem) }
