package upstream

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindTransport cobre montar a request, conectar, timeout e espera do pacer.
	KindTransport Kind = iota + 1
	// KindBody cobre corpo da resposta truncado ou ilegível.
	KindBody
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBody:
		return "body"
	default:
		return "unknown"
	}
}

var (
	ErrTransport = errors.New("upstream transport failure")
	ErrBody      = errors.New("upstream response body unreadable")
)

// Error é o erro de uma chamada ao upstream. Use errors.Is com ErrTransport/ErrBody
// ou errors.As para ler Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrBody:
		return e.Kind == KindBody
	}
	return false
}
