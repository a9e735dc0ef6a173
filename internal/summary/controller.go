package summary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"changelens/internal/logging"
	"changelens/internal/types"
)

const (
	// DefaultSettleDelay is how long the controller waits after a turn
	// completes before inspecting the working tree, so trailing side effects
	// of the turn can finish flushing.
	DefaultSettleDelay = 2 * time.Second

	// DefaultFetchTimeout bounds a single status fetch. On expiry the
	// in-flight guard is released and the message is recorded as a fetch
	// failure rather than stalling the session forever.
	DefaultFetchTimeout = 10 * time.Second
)

// sessionState is the per-session transient tracking: the last message id
// the controller reacted to, and the guard against overlapping synthesis
// attempts.
type sessionState struct {
	lastObserved string
	inFlight     bool
}

// Controller owns the one-shot-per-message synthesis state machine. It
// observes transcript updates, waits out a settling delay, fetches and
// normalizes version-control status, and appends at most one change-summary
// part per completed assistant message.
type Controller struct {
	store  types.TranscriptStore
	status types.StatusProvider
	ledger *Ledger

	settleDelay  time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionState
	closed   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettleDelay overrides the settling delay between turn completion and
// status inspection. Shortening it trades rare missed changes for
// responsiveness; the settle-before-inspect intent stays.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) { c.settleDelay = d }
}

// WithFetchTimeout overrides the bound on a single status fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.fetchTimeout = d }
}

// WithClock overrides the time source. Summaries and part ids derive their
// timestamps from it.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller over the given collaborators. The
// ledger is injected so its lifetime is explicit; passing a shared ledger
// across controllers preserves at-most-once across re-mounts within one
// process.
func NewController(store types.TranscriptStore, status types.StatusProvider, ledger *Ledger, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		status:       status,
		ledger:       ledger,
		settleDelay:  DefaultSettleDelay,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		sessions:     make(map[string]*sessionState),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TranscriptChanged notifies the controller that a session's transcript has
// been updated. dir is the session's working directory, used for the status
// fetch. The call is cheap and non-blocking: when the tail message is a
// newly completed assistant turn, the actual fetch-and-append sequence runs
// on its own goroutine after the settling delay.
func (c *Controller) TranscriptChanged(sessionID, dir string) {
	log := logging.Get(logging.CategorySummary)

	messages, err := c.store.Messages(sessionID)
	if err != nil {
		log.Warn("transcript read failed for session %s: %v", sessionID, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	last := messages[len(messages)-1]
	if last.ID == "" || !last.Finished() {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	st := c.sessions[sessionID]
	if st == nil {
		st = &sessionState{}
		c.sessions[sessionID] = st
	}

	// A second trigger while a fetch is pending is ignored, not queued; the
	// next notification after completion re-evaluates the tail naturally.
	if st.inFlight {
		c.mu.Unlock()
		log.Debug("session %s: synthesis in flight, ignoring trigger", sessionID)
		return
	}
	if c.ledger.Seen(last.ID) {
		c.mu.Unlock()
		return
	}
	if st.lastObserved == last.ID {
		c.mu.Unlock()
		return
	}
	st.lastObserved = last.ID

	// Idempotent recognition: a message summarized by a prior run needs no
	// fetch, just a ledger entry.
	if last.HasPart(types.PartChangeSummary) {
		c.ledger.Record(last.ID, OutcomeAlreadySummarized)
		c.mu.Unlock()
		log.Debug("message %s already summarized", last.ID)
		return
	}

	st.inFlight = true
	c.wg.Add(1)
	c.mu.Unlock()

	log.Debug("session %s: scheduling synthesis for message %s in %v", sessionID, last.ID, c.settleDelay)
	go c.synthesize(sessionID, dir, last.ID)
}

// synthesize runs one fetch-and-append attempt after the settling delay.
// Every exit path clears the in-flight guard; every path except cancellation
// finalizes the message in the ledger.
func (c *Controller) synthesize(sessionID, dir, messageID string) {
	defer c.wg.Done()
	log := logging.Get(logging.CategorySummary)

	timer := time.NewTimer(c.settleDelay)
	select {
	case <-c.stopCh:
		timer.Stop()
		// Torn down before the fetch fired. No ledger entry: the message
		// stays eligible for a retry by a later controller sharing the ledger.
		c.mu.Lock()
		if st := c.sessions[sessionID]; st != nil {
			st.inFlight = false
			if st.lastObserved == messageID {
				st.lastObserved = ""
			}
		}
		c.mu.Unlock()
		log.Debug("session %s: synthesis for %s cancelled before settle", sessionID, messageID)
		return
	case <-timer.C:
	}

	outcome := c.attempt(sessionID, dir, messageID)
	c.ledger.Record(messageID, outcome)

	c.mu.Lock()
	if st := c.sessions[sessionID]; st != nil {
		st.inFlight = false
	}
	c.mu.Unlock()

	log.Info("session %s message %s: %s", sessionID, messageID, outcome)
}

// attempt fetches status, normalizes it, and appends the summary part.
// Collaborator failures degrade to a skip outcome; nothing here is fatal.
func (c *Controller) attempt(sessionID, dir, messageID string) Outcome {
	log := logging.Get(logging.CategorySummary)

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	report, err := c.status.Status(ctx, dir)
	if err != nil {
		log.Warn("status fetch failed for %s: %v", dir, err)
		return OutcomeFetchFailed
	}
	if report == nil || report.Clean {
		return OutcomeCleanTree
	}

	cs := Normalize(report, c.now())
	if cs == nil {
		return OutcomeNoActionableFiles
	}

	created := c.now()
	part := types.MessagePart{
		ID:            fmt.Sprintf("%s-summary-%d", messageID, created.UnixNano()),
		Kind:          types.PartChangeSummary,
		Synthetic:     true,
		ChangeSummary: cs,
		CreatedAt:     created,
	}
	if err := c.store.AppendPart(sessionID, messageID, part); err != nil {
		log.Error("append failed for session %s message %s: %v", sessionID, messageID, err)
		return OutcomeAppendFailed
	}
	return OutcomeAttached
}

// Close cancels pending synthesis attempts and waits for their goroutines.
// Attempts that had not fetched yet leave no ledger entry.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopCh)
	c.wg.Wait()
}
