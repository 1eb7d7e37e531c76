package presence

import (
	"sync"

	"github.com/worldindex/core/internal/pkg/urlx"
	"go.uber.org/zap"
)

// StalenessMS is how long a session counts after its last heartbeat. A
// heartbeat at t=0 still counts at t=4999 and no longer at t=5000.
const StalenessMS = 5000

// eventBuffer is the per-subscriber channel depth. A subscriber that falls
// behind skips events instead of stalling the tracker.
const eventBuffer = 16

// EventKind discriminates stream events.
type EventKind string

const (
	EventJoin      EventKind = "join"
	EventHeartbeat EventKind = "heartbeat"
)

// Event is one push-stream notification.
type Event struct {
	Kind        EventKind `json:"kind"`
	ListingName string    `json:"listing_name,omitempty"`
	URL         string    `json:"url,omitempty"`
}

// NameResolver maps a session URL to a display name for join notifications.
type NameResolver func(url string) string

type session struct {
	id         string
	lastSeenMS int64
}

// Tracker is the in-process presence store. Sessions are keyed by the literal
// submitted URL; merging by base url happens only at read time. The store is
// ephemeral and its loss on restart is accepted.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string][]session
	// lastGood is a snapshot taken after each successful mutation. A panic
	// inside a guarded section restores it instead of propagating: presence
	// is best-effort and must never take down request handling.
	lastGood map[string][]session

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool

	resolve NameResolver
	logger  *zap.Logger
}

func NewTracker(resolve NameResolver, logger *zap.Logger) *Tracker {
	return &Tracker{
		sessions: map[string][]session{},
		lastGood: map[string][]session{},
		subs:     map[int]chan Event{},
		resolve:  resolve,
		logger:   logger,
	}
}

// Heartbeat records a session sighting and reports whether the session is new
// for its URL. New sessions emit a join event; the name lookup runs outside
// the lock.
func (t *Tracker) Heartbeat(sessionID, url string, tsMS int64) (isNew bool) {
	t.withWrite(func() {
		list := t.sessions[url]
		for i := range list {
			if list[i].id == sessionID {
				list[i].lastSeenMS = tsMS
				return
			}
		}
		t.sessions[url] = append(list, session{id: sessionID, lastSeenMS: tsMS})
		isNew = true
	})

	if isNew {
		t.publish(Event{Kind: EventJoin, ListingName: t.resolveName(url), URL: url})
	}
	return isNew
}

// Prune drops sessions not seen within the staleness window.
func (t *Tracker) Prune(nowMS int64) {
	t.withWrite(func() {
		for url, list := range t.sessions {
			kept := list[:0]
			for _, s := range list {
				if nowMS-s.lastSeenMS < StalenessMS {
					kept = append(kept, s)
				}
			}
			if len(kept) == 0 {
				delete(t.sessions, url)
			} else {
				t.sessions[url] = kept
			}
		}
	})
}

// LiveCount sums live sessions across every literal URL sharing the listing's
// base url.
func (t *Tracker) LiveCount(listingURL string, nowMS int64) int {
	t.Prune(nowMS)
	base := urlx.Base(listingURL)

	count := 0
	t.withRead(func() {
		for url, list := range t.sessions {
			if urlx.Base(url) == base {
				count += len(list)
			}
		}
	})
	return count
}

// TotalOnline sums live sessions across all URLs.
func (t *Tracker) TotalOnline(nowMS int64) int {
	t.Prune(nowMS)

	total := 0
	t.withRead(func() {
		for _, list := range t.sessions {
			total += len(list)
		}
	})
	return total
}

// Subscribe attaches a listener to the event stream. The returned cancel
// must be called when the subscriber goes away.
func (t *Tracker) Subscribe() (<-chan Event, func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	ch := make(chan Event, eventBuffer)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	return ch, func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

// Close tears down the broadcast source; every subscriber's stream ends.
func (t *Tracker) Close() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

func (t *Tracker) publish(ev Event) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is behind; it skips this event
		}
	}
}

func (t *Tracker) resolveName(url string) (name string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("name resolution panicked", zap.Any("panic", r))
			name = urlx.Domain(url)
		}
	}()
	if t.resolve != nil {
		if n := t.resolve(url); n != "" {
			return n
		}
	}
	return urlx.Domain(url)
}

// withWrite runs fn under the write lock. A panic restores the last-known-good
// map instead of propagating.
func (t *Tracker) withWrite(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("presence write panicked", zap.Any("panic", r))
			t.sessions = copySessions(t.lastGood)
			return
		}
		t.lastGood = copySessions(t.sessions)
	}()
	fn()
}

func (t *Tracker) withRead(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("presence read panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

func copySessions(src map[string][]session) map[string][]session {
	dst := make(map[string][]session, len(src))
	for url, list := range src {
		dst[url] = append([]session(nil), list...)
	}
	return dst
}
