package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"transcribe-gateway/middleware/ratelimit/domain"
)

const defaultStatsSubject = "transcribe.ratelimit"

// Publisher é o pedaço de *nats.Conn que o store usa.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NatsStatsStore publica cada decisão como JSON em <subject>.allowed ou <subject>.denied.
// Publish do NATS é assíncrono (buffer do cliente), então não segura a request.
type NatsStatsStore struct {
	pub     Publisher
	subject string
}

type NatsStatsOption func(*NatsStatsStore)

func WithStatsSubject(subject string) NatsStatsOption {
	return func(s *NatsStatsStore) {
		if sub := strings.Trim(strings.TrimSpace(subject), "."); sub != "" {
			s.subject = sub
		}
	}
}

func NewNatsStatsStore(pub Publisher, opts ...NatsStatsOption) *NatsStatsStore {
	s := &NatsStatsStore{pub: pub, subject: defaultStatsSubject}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *NatsStatsStore) Subject() string { return s.subject }

func (s *NatsStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.pub == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode stats event: %w", err)
	}
	if err := s.pub.Publish(s.subject+"."+statsField(ev.Allowed), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// DialNats conecta no servidor NATS usado para o stream de estatísticas.
func DialNats(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
