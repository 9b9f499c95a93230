package application

import (
	"context"
	"errors"
	"time"

	"transcribe-gateway/middleware/ratelimit/domain"
)

// ErrAcquireTimeout indica que o AcquireTimeout estourou antes de liberar uma vaga.
var ErrAcquireTimeout = errors.New("concurrency slot acquire timed out")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas para chamadas
// ao upstream, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Em caso de falha retorna ErrAcquireTimeout, ou ctx.Err() quando quem desistiu
// foi o chamador (cliente desconectou). Sem erro, release deve ser chamado uma vez.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrAcquireTimeout
}
