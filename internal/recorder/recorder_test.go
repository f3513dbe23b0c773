package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shortlink-core/internal/geo"
	"shortlink-core/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu     sync.Mutex
	events []*model.VisitEvent
	gate   chan struct{}
	err    error
	panic  bool
}

func (s *memorySink) Append(_ context.Context, ev *model.VisitEvent) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.panic {
		panic("sink exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fixedLocator struct{ loc geo.Location }

func (f fixedLocator) Locate(context.Context, string) geo.Location { return f.loc }

var testLink = &model.ShortLink{ID: 42, ShortCode: "abc1234", OwnerID: 7}

func TestRecord_EnrichesAndAppends(t *testing.T) {
	sink := &memorySink{}
	r := New(sink, fixedLocator{geo.Location{Country: "Germany", CountryCode: "DE", City: "Berlin"}}, Options{Workers: 2}, zap.NewNop().Sugar())
	r.Start()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, r.Record(testLink, Visit{
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		Referer:   "https://news.example",
		At:        at,
	}))
	require.NoError(t, r.Stop(context.Background()))

	require.Equal(t, 1, sink.len())
	ev := sink.events[0]
	assert.Equal(t, uint(42), ev.ShortLinkID)
	assert.Equal(t, "abc1234", ev.ShortCode)
	assert.Equal(t, uint(7), ev.OwnerID)
	assert.Equal(t, "203.0.113.9", ev.IPAddress)
	assert.Equal(t, "https://news.example", ev.Referer)
	assert.Equal(t, "DE", ev.CountryCode)
	assert.Equal(t, "Berlin", ev.City)
	assert.Equal(t, "Mobile", ev.DeviceType)
	assert.True(t, ev.IsMobile)
	assert.Equal(t, at, ev.CreatedAt)
	assert.Equal(t, uint64(1), r.Stats().Recorded)
}

func TestRecord_DoesNotBlockWhenSinkIsSlow(t *testing.T) {
	sink := &memorySink{gate: make(chan struct{})}
	r := New(sink, nil, Options{Workers: 1, QueueSize: 2}, zap.NewNop().Sugar())
	r.Start()

	start := time.Now()
	accepted := 0
	for i := 0; i < 10; i++ {
		if r.Record(testLink, Visit{IP: "198.51.100.1"}) {
			accepted++
		}
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "记录不能阻塞调用方")
	// 一个 worker 持有一条，队列里最多两条
	assert.LessOrEqual(t, accepted, 3)
	assert.GreaterOrEqual(t, accepted, 2)
	assert.Equal(t, uint64(10-accepted), r.Stats().Dropped)

	close(sink.gate)
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, accepted, sink.len())
}

func TestRecord_SinkFailuresAreSwallowed(t *testing.T) {
	failing := &memorySink{err: errors.New("db down")}
	r := New(failing, nil, Options{Workers: 1}, zap.NewNop().Sugar())
	r.Start()
	r.Record(testLink, Visit{IP: "198.51.100.1"})
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, uint64(1), r.Stats().Failed)

	panicking := &memorySink{panic: true}
	r = New(panicking, nil, Options{Workers: 1}, zap.NewNop().Sugar())
	r.Start()
	r.Record(testLink, Visit{IP: "198.51.100.1"})
	r.Record(testLink, Visit{IP: "198.51.100.2"})
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, uint64(2), r.Stats().Failed, "panic 之后 worker 继续工作")
}

func TestStop_DrainsQueueAndRejectsNewVisits(t *testing.T) {
	sink := &memorySink{}
	r := New(sink, nil, Options{Workers: 2, QueueSize: 100}, zap.NewNop().Sugar())
	for i := 0; i < 50; i++ {
		require.True(t, r.Record(testLink, Visit{IP: "198.51.100.1"}))
	}
	r.Start()
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, 50, sink.len())

	assert.False(t, r.Record(testLink, Visit{IP: "198.51.100.1"}))
	assert.NoError(t, r.Stop(context.Background()), "重复停止无副作用")
}

func TestStop_DeadlineAbandonsRemaining(t *testing.T) {
	sink := &memorySink{gate: make(chan struct{})}
	r := New(sink, nil, Options{Workers: 1, QueueSize: 10}, zap.NewNop().Sugar())
	r.Start()
	for i := 0; i < 5; i++ {
		r.Record(testLink, Visit{IP: "198.51.100.1"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(sink.gate)
}
