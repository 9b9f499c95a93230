package infra

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transcribe-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByRouteAndKey(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Allowed: true, Method: "POST", Path: "/transcribe"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Allowed: false, Method: "POST", Path: "/transcribe"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "b", Allowed: true, Method: "POST", Path: "/transcribe"}))

	require.Equal(t, Counters{Allowed: 2, Denied: 1}, s.Total())
	require.Equal(t, Counters{Allowed: 2, Denied: 1}, s.ByRoute()["POST /transcribe"])
	require.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByKey()["a"])
	require.Equal(t, Counters{Allowed: 1}, s.ByKey()["b"])
}

func TestMemoryStatsStore_SkipsKeysByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "a", Allowed: true}))
	require.Empty(t, s.ByKey())
}

type recordedMsg struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []recordedMsg
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, recordedMsg{subject: subject, data: data})
	return nil
}

func TestNatsStatsStore_PublishesDecisionAsJSON(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNatsStatsStore(pub, WithStatsSubject("gw.stats."))
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "1.2.3.4", Allowed: false, Method: "POST", Path: "/transcribe", At: at}))
	require.Len(t, pub.msgs, 1)
	require.Equal(t, "gw.stats.denied", pub.msgs[0].subject)

	var got domain.StatsEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &got))
	require.Equal(t, domain.Key("1.2.3.4"), got.Key)
	require.False(t, got.Allowed)
	require.True(t, at.Equal(got.At))
}

func TestNatsStatsStore_WrapsPublishError(t *testing.T) {
	boom := errors.New("boom")
	s := NewNatsStatsStore(&fakePublisher{err: boom})

	err := s.Record(context.Background(), domain.StatsEvent{Allowed: true})
	require.ErrorIs(t, err, boom)
	require.Equal(t, defaultStatsSubject, s.Subject())
}

func TestRedisStatsStore_NilClientIsNoop(t *testing.T) {
	s := NewRedisStatsStore(nil, WithStatsPrefix("::x::"))
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Allowed: true}))
	require.Equal(t, "x", s.prefix)
}
