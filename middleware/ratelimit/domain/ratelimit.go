package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica o cliente (ex: valor do CF-Connecting-IP).
type Key string

// UnknownKey é a chave usada quando não há identificação do cliente.
// Todos esses clientes compartilham o mesmo contador.
const UnknownKey Key = "unknown"

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Na janela fixa, Allow conta a requisição mesmo quando nega: requisições
// bloqueadas continuam consumindo a janela.
type Limiter interface {
	Allow() bool
}

// RetryHinter é opcional: limiters que sabem quando a janela termina
// informam quanto falta para liberar.
type RetryHinter interface {
	RetryAfter() time.Duration
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

// Window descreve o limite de uma janela fixa.
type Window struct {
	Limit    int
	Duration time.Duration
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
