package summary

import "sync"

// Outcome records how a synthesis decision for a message was finalized.
// Membership alone drives de-duplication; the tag exists for diagnostics.
type Outcome int

const (
	// OutcomeAttached means a change-summary part was appended.
	OutcomeAttached Outcome = iota
	// OutcomeAlreadySummarized means the message already carried a summary part.
	OutcomeAlreadySummarized
	// OutcomeCleanTree means the provider reported no pending changes.
	OutcomeCleanTree
	// OutcomeNoActionableFiles means every reported file was dropped during normalization.
	OutcomeNoActionableFiles
	// OutcomeFetchFailed means the status provider was unavailable or errored.
	OutcomeFetchFailed
	// OutcomeAppendFailed means the summary was built but the transcript append failed.
	OutcomeAppendFailed
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	names := []string{
		"attached",
		"already-summarized",
		"clean-tree",
		"no-actionable-files",
		"fetch-failed",
		"append-failed",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "unknown"
}

// Ledger is the process-wide de-duplication record for synthesis decisions.
// Entries are append-only for the process lifetime and never removed; a
// message id present here has been finalized (attached or deliberately
// skipped) and is never re-evaluated. The ledger is injected into the
// controller rather than held as package state so tests can reset it by
// constructing a fresh one.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]Outcome
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]Outcome)}
}

// Seen reports whether a synthesis decision for the message has been finalized.
func (l *Ledger) Seen(messageID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[messageID]
	return ok
}

// Record finalizes a synthesis decision for the message. The first record
// wins; a message is decided exactly once per process run.
func (l *Ledger) Record(messageID string, outcome Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[messageID]; ok {
		return
	}
	l.entries[messageID] = outcome
}

// Outcome returns the recorded outcome for a message, if any.
func (l *Ledger) Outcome(messageID string) (Outcome, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.entries[messageID]
	return o, ok
}

// Len returns the number of finalized decisions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
