package visits_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitpulse/backend/internal/visits"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []visits.Event
}

func (p *recordingPublisher) Publish(event visits.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []visits.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]visits.Event, len(p.events))
	copy(out, p.events)
	return out
}

func openReq(domain, visitorID string, enteredAt time.Time) visits.OpenRequest {
	return visits.OpenRequest{
		Domain:    domain,
		VisitorID: visitorID,
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0 (test)",
		EnteredAt: enteredAt,
	}
}

func TestTrackerOpenOrContinue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("opens first session for a visitor", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		pub := &recordingPublisher{}
		tracker := visits.NewTracker(store, pub)

		enteredAt := time.Now().Add(-time.Minute)
		session, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", enteredAt))
		require.NoError(t, err)

		assert.NotEmpty(t, session.ID)
		assert.Equal(t, "shop.example", session.Domain)
		assert.Equal(t, "v-1", session.VisitorID)
		assert.True(t, session.IsOpen())
		assert.True(t, session.EnteredAt.Equal(enteredAt.UTC()))

		events := pub.snapshot()
		require.Len(t, events, 1)
		assert.Equal(t, visits.EventSessionOpened, events[0].Kind)
		assert.Equal(t, session.ID, events[0].Session.ID)
	})

	t.Run("supersedes an open session for the same visitor", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		pub := &recordingPublisher{}
		tracker := visits.NewTracker(store, pub)

		firstEntered := time.Now().Add(-10 * time.Minute)
		first, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", firstEntered))
		require.NoError(t, err)

		secondEntered := time.Now().Add(-time.Minute)
		second, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", secondEntered))
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)

		// The superseded session closed at the moment the new one began.
		closed, err := store.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, closed.ExitedAt)
		assert.True(t, closed.ExitedAt.Equal(secondEntered.UTC()))

		assert.Equal(t, 1, store.OpenCount("shop.example", "v-1"))

		events := pub.snapshot()
		require.Len(t, events, 3)
		assert.Equal(t, visits.EventSessionOpened, events[0].Kind)
		assert.Equal(t, visits.EventSessionClosed, events[1].Kind)
		assert.Equal(t, first.ID, events[1].Session.ID)
		assert.Equal(t, visits.EventSessionOpened, events[2].Kind)
		assert.Equal(t, second.ID, events[2].Session.ID)
	})

	t.Run("same visitor id on different domains stays independent", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		_, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", time.Now()))
		require.NoError(t, err)
		_, err = tracker.OpenOrContinue(ctx, openReq("blog.example", "v-1", time.Now()))
		require.NoError(t, err)

		assert.Equal(t, 1, store.OpenCount("shop.example", "v-1"))
		assert.Equal(t, 1, store.OpenCount("blog.example", "v-1"))
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		t.Parallel()

		tracker := visits.NewTracker(visits.NewMemoryStore(), visits.NopPublisher{})

		for name, mutate := range map[string]func(*visits.OpenRequest){
			"domain":     func(r *visits.OpenRequest) { r.Domain = "" },
			"visitor id": func(r *visits.OpenRequest) { r.VisitorID = "" },
			"ip":         func(r *visits.OpenRequest) { r.IP = "" },
			"user agent": func(r *visits.OpenRequest) { r.UserAgent = "" },
			"entered at": func(r *visits.OpenRequest) { r.EnteredAt = time.Time{} },
		} {
			req := openReq("shop.example", "v-1", time.Now())
			mutate(&req)
			_, err := tracker.OpenOrContinue(ctx, req)
			assert.ErrorIs(t, err, visits.ErrInvalidInput, "missing %s", name)
		}
	})

	t.Run("surfaces store outage", func(t *testing.T) {
		t.Parallel()

		tracker := visits.NewTracker(visits.NewMemoryStore(), visits.NopPublisher{})

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := tracker.OpenOrContinue(canceled, openReq("shop.example", "v-1", time.Now()))
		assert.ErrorIs(t, err, visits.ErrStoreUnavailable)
	})
}

func TestTrackerClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("closes an open session", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		pub := &recordingPublisher{}
		tracker := visits.NewTracker(store, pub)

		session, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", time.Now().Add(-time.Minute)))
		require.NoError(t, err)

		exitedAt := time.Now()
		closed, err := tracker.Close(ctx, session.ID, "shop.example", exitedAt)
		require.NoError(t, err)
		require.NotNil(t, closed.ExitedAt)
		assert.True(t, closed.ExitedAt.Equal(exitedAt.UTC()))

		events := pub.snapshot()
		require.Len(t, events, 2)
		assert.Equal(t, visits.EventSessionClosed, events[1].Kind)
	})

	t.Run("rejects a second close without touching the timestamp", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		session, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", time.Now().Add(-time.Minute)))
		require.NoError(t, err)

		firstExit := time.Now().Add(-30 * time.Second)
		_, err = tracker.Close(ctx, session.ID, "shop.example", firstExit)
		require.NoError(t, err)

		_, err = tracker.Close(ctx, session.ID, "shop.example", time.Now())
		assert.ErrorIs(t, err, visits.ErrAlreadyClosed)

		stored, err := store.FindByID(ctx, session.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ExitedAt)
		assert.True(t, stored.ExitedAt.Equal(firstExit.UTC()))
	})

	t.Run("rejects a close scoped to another domain", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		session, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1", time.Now()))
		require.NoError(t, err)

		_, err = tracker.Close(ctx, session.ID, "blog.example", time.Now())
		assert.ErrorIs(t, err, visits.ErrDomainMismatch)

		stored, err := store.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsOpen())
	})

	t.Run("rejects an unknown session id", func(t *testing.T) {
		t.Parallel()

		tracker := visits.NewTracker(visits.NewMemoryStore(), visits.NopPublisher{})

		_, err := tracker.Close(ctx, "missing", "shop.example", time.Now())
		assert.ErrorIs(t, err, visits.ErrNotFound)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		t.Parallel()

		tracker := visits.NewTracker(visits.NewMemoryStore(), visits.NopPublisher{})

		_, err := tracker.Close(ctx, "", "shop.example", time.Now())
		assert.ErrorIs(t, err, visits.ErrInvalidInput)

		_, err = tracker.Close(ctx, "id", "", time.Now())
		assert.ErrorIs(t, err, visits.ErrInvalidInput)

		_, err = tracker.Close(ctx, "id", "shop.example", time.Time{})
		assert.ErrorIs(t, err, visits.ErrInvalidInput)
	})
}

func TestTrackerSingleOpenSessionInvariant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("concurrent opens for the same visitor leave one open session", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		const workers = 20
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := tracker.OpenOrContinue(ctx, openReq("shop.example", "v-1",
					time.Now().Add(time.Duration(i)*time.Millisecond)))
				assert.NoError(t, err)
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, 1, store.OpenCount("shop.example", "v-1"))
	})

	t.Run("randomized interleaving of opens and closes", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		visitors := []string{"v-1", "v-2", "v-3"}
		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rng := rand.New(rand.NewSource(int64(w)))
				for range 50 {
					visitorID := visitors[rng.Intn(len(visitors))]
					session, err := tracker.OpenOrContinue(ctx, openReq("shop.example", visitorID, time.Now()))
					if !assert.NoError(t, err) {
						return
					}
					if rng.Intn(2) == 0 {
						_, err := tracker.Close(ctx, session.ID, "shop.example", time.Now())
						// Another worker may have superseded or closed it first.
						if err != nil {
							assert.ErrorIs(t, err, visits.ErrAlreadyClosed)
						}
					}
				}
			}()
		}
		wg.Wait()

		for _, visitorID := range visitors {
			assert.LessOrEqual(t, store.OpenCount("shop.example", visitorID), 1, "visitor %s", visitorID)
		}
	})
}

func TestTrackerList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns newest sessions first", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		base := time.Now().Add(-time.Hour)
		for i := range 3 {
			_, err := tracker.OpenOrContinue(ctx, openReq("shop.example",
				fmt.Sprintf("v-%d", i), base.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}
		_, err := tracker.OpenOrContinue(ctx, openReq("blog.example", "v-x", base))
		require.NoError(t, err)

		result, err := tracker.List(ctx, "shop.example")
		require.NoError(t, err)
		require.Len(t, result.Sessions, 3)
		assert.False(t, result.Truncated)
		assert.Equal(t, "v-2", result.Sessions[0].VisitorID)
		assert.Equal(t, "v-0", result.Sessions[2].VisitorID)
	})

	t.Run("flags a truncated result", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		base := time.Now().Add(-time.Hour)
		for i := range visits.ListLimit + 5 {
			_, err := tracker.OpenOrContinue(ctx, openReq("shop.example",
				fmt.Sprintf("v-%d", i), base.Add(time.Duration(i)*time.Second)))
			require.NoError(t, err)
		}

		result, err := tracker.List(ctx, "shop.example")
		require.NoError(t, err)
		assert.Len(t, result.Sessions, visits.ListLimit)
		assert.True(t, result.Truncated)
	})

	t.Run("rejects empty domain", func(t *testing.T) {
		t.Parallel()

		tracker := visits.NewTracker(visits.NewMemoryStore(), visits.NopPublisher{})

		_, err := tracker.List(ctx, "")
		assert.ErrorIs(t, err, visits.ErrInvalidInput)
	})
}

func TestTrackerSuspiciousIPs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reports ips above the threshold", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		for i := range 5 {
			req := openReq("shop.example", fmt.Sprintf("noisy-%d", i), time.Now())
			req.IP = "198.51.100.9"
			_, err := tracker.OpenOrContinue(ctx, req)
			require.NoError(t, err)
		}
		quiet := openReq("shop.example", "quiet", time.Now())
		quiet.IP = "203.0.113.1"
		_, err := tracker.OpenOrContinue(ctx, quiet)
		require.NoError(t, err)

		flagged, err := tracker.SuspiciousIPs(ctx, "shop.example", time.Hour, 5)
		require.NoError(t, err)
		require.Len(t, flagged, 1)
		assert.Equal(t, "198.51.100.9", flagged[0].IP)
		assert.Equal(t, 5, flagged[0].Count)
	})

	t.Run("ignores activity outside the window", func(t *testing.T) {
		t.Parallel()

		store := visits.NewMemoryStore()
		tracker := visits.NewTracker(store, visits.NopPublisher{})

		for i := range 5 {
			req := openReq("shop.example", fmt.Sprintf("old-%d", i), time.Now().Add(-2*time.Hour))
			req.IP = "198.51.100.9"
			_, err := tracker.OpenOrContinue(ctx, req)
			require.NoError(t, err)
		}

		flagged, err := tracker.SuspiciousIPs(ctx, "shop.example", time.Hour, 3)
		require.NoError(t, err)
		assert.Empty(t, flagged)
	})

	t.Run("rejects invalid parameters", func(t *testing.T) {
		t.Parallel()

		tracker := visits.NewTracker(visits.NewMemoryStore(), visits.NopPublisher{})

		_, err := tracker.SuspiciousIPs(ctx, "", time.Hour, 3)
		assert.ErrorIs(t, err, visits.ErrInvalidInput)

		_, err = tracker.SuspiciousIPs(ctx, "shop.example", 0, 3)
		assert.ErrorIs(t, err, visits.ErrInvalidInput)

		_, err = tracker.SuspiciousIPs(ctx, "shop.example", time.Hour, 0)
		assert.ErrorIs(t, err, visits.ErrInvalidInput)
	})
}
