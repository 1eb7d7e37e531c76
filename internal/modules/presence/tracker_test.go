package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTracker(resolve NameResolver) *Tracker {
	return NewTracker(resolve, zap.NewNop())
}

func TestHeartbeatNewVsRefresh(t *testing.T) {
	tr := newTracker(nil)

	assert.True(t, tr.Heartbeat("s1", "https://game.example/play", 0))
	assert.False(t, tr.Heartbeat("s1", "https://game.example/play", 100))
	assert.True(t, tr.Heartbeat("s2", "https://game.example/play", 100))
}

func TestPruneBoundary(t *testing.T) {
	tr := newTracker(nil)
	tr.Heartbeat("s1", "https://game.example/play", 0)

	assert.Equal(t, 1, tr.LiveCount("https://game.example/play", 4999))
	assert.Equal(t, 0, tr.LiveCount("https://game.example/play", 5001))
}

func TestLiveCountMergesByBaseURL(t *testing.T) {
	tr := newTracker(nil)
	tr.Heartbeat("s1", "https://x.com/app?s=1", 0)
	tr.Heartbeat("s2", "https://x.com/app?s=2", 0)
	tr.Heartbeat("s3", "https://y.com/other", 0)

	assert.Equal(t, 2, tr.LiveCount("https://x.com/app", 1000))
	assert.Equal(t, 3, tr.TotalOnline(1000))
}

func TestRefreshExtendsLifetime(t *testing.T) {
	tr := newTracker(nil)
	tr.Heartbeat("s1", "https://game.example/play", 0)
	tr.Heartbeat("s1", "https://game.example/play", 3000)

	assert.Equal(t, 1, tr.LiveCount("https://game.example/play", 7000))
	assert.Equal(t, 0, tr.LiveCount("https://game.example/play", 8001))
}

func TestSubscribeReceivesJoinEvents(t *testing.T) {
	tr := newTracker(func(url string) string { return "Cool World" })
	events, cancel := tr.Subscribe()
	defer cancel()

	tr.Heartbeat("s1", "https://game.example/play", 0)

	ev := <-events
	assert.Equal(t, EventJoin, ev.Kind)
	assert.Equal(t, "Cool World", ev.ListingName)
	assert.Equal(t, "https://game.example/play", ev.URL)

	// A refresh is not a join.
	tr.Heartbeat("s1", "https://game.example/play", 100)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestSlowSubscriberSkipsEvents(t *testing.T) {
	tr := newTracker(nil)
	events, cancel := tr.Subscribe()
	defer cancel()

	// Overrun the buffer; the tracker must not block.
	for i := 0; i < eventBuffer*3; i++ {
		tr.Heartbeat("s", "https://game.example/play?n="+string(rune('a'+i%26)), int64(i))
	}

	drained := 0
	for {
		select {
		case <-events:
			drained++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, drained, eventBuffer)
	assert.Greater(t, drained, 0)
}

func TestResolverFallsBackToDomain(t *testing.T) {
	tr := newTracker(func(url string) string { return "" })
	events, cancel := tr.Subscribe()
	defer cancel()

	tr.Heartbeat("s1", "https://game.example/play", 0)
	ev := <-events
	assert.Equal(t, "game.example", ev.ListingName)
}

func TestResolverPanicRecovered(t *testing.T) {
	tr := newTracker(func(url string) string { panic("resolver exploded") })
	events, cancel := tr.Subscribe()
	defer cancel()

	require.NotPanics(t, func() {
		tr.Heartbeat("s1", "https://game.example/play", 0)
	})
	ev := <-events
	assert.Equal(t, "game.example", ev.ListingName)
	assert.Equal(t, 1, tr.LiveCount("https://game.example/play", 1000))
}

func TestCloseEndsStreams(t *testing.T) {
	tr := newTracker(nil)
	events, cancel := tr.Subscribe()
	defer cancel()

	tr.Close()
	_, ok := <-events
	assert.False(t, ok)

	late, lateCancel := tr.Subscribe()
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok)
}
