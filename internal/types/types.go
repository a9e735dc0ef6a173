// Package types provides shared type definitions used across changelens packages.
// This package exists to break import cycles between summary, transcript, and vcs.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import "time"

// =============================================================================
// CHANGE SUMMARY TYPES
// =============================================================================

// ChangeStatus is the closed set of per-file change kinds a summary can carry.
// Raw status codes outside this set are dropped during normalization, never
// mapped to a catch-all bucket.
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "added"
	StatusModified ChangeStatus = "modified"
	StatusDeleted  ChangeStatus = "deleted"
	StatusRenamed  ChangeStatus = "renamed"
)

// DiffStat holds line-level stats for one path.
type DiffStat struct {
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
}

// FileChange is one changed path in a change summary.
// Path is repository-relative and never empty. OldPath is set only for
// renames. Stats is nil when the provider has no line-level stats for the
// path (deleted files, binary files, untracked files).
type FileChange struct {
	Path    string       `json:"path"`
	Status  ChangeStatus `json:"status"`
	OldPath string       `json:"oldPath,omitempty"`
	Stats   *DiffStat    `json:"stats,omitempty"`
}

// ChangeSummary is the unit attached to an assistant message after a turn.
// Files preserves the provider's reported order. A summary with zero files
// is never constructed; callers get nil instead.
type ChangeSummary struct {
	Files     []FileChange `json:"files"`
	Timestamp time.Time    `json:"timestamp"`
}

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// PartKind tags the payload of a message part.
type PartKind string

const (
	PartText          PartKind = "text"
	PartToolUse       PartKind = "tool-use"
	PartChangeSummary PartKind = "change-summary"
)

// MessagePart is one part of a transcript message. Synthetic marks parts
// generated by changelens rather than authored by the assistant, so
// downstream consumers can treat them distinctly from model output.
type MessagePart struct {
	ID            string         `json:"id"`
	Kind          PartKind       `json:"kind"`
	Synthetic     bool           `json:"synthetic,omitempty"`
	Text          string         `json:"text,omitempty"`
	ChangeSummary *ChangeSummary `json:"changeSummary,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FinishStop is the terminal finish reason for a completed assistant turn.
const FinishStop = "stop"

// Message is one transcript entry in a session.
type Message struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId"`
	Role         string        `json:"role"`
	FinishReason string        `json:"finishReason,omitempty"`
	Parts        []MessagePart `json:"parts,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Finished reports whether the message is a completed assistant turn.
func (m *Message) Finished() bool {
	return m.Role == RoleAssistant && m.FinishReason == FinishStop
}

// HasPart reports whether the message already carries a part of the given kind.
func (m *Message) HasPart(kind PartKind) bool {
	for i := range m.Parts {
		if m.Parts[i].Kind == kind {
			return true
		}
	}
	return false
}

// Session identifies one conversation and its working directory.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Directory string    `json:"directory"`
	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// VERSION CONTROL STATUS TYPES
// =============================================================================

// StatusEntry is one path in a raw status report, carrying the two-column
// porcelain code pair. OldPath is present for rename entries.
type StatusEntry struct {
	Path       string
	OldPath    string
	Index      byte
	WorkingDir byte
}

// StatusReport is a raw, provider-specific working tree status.
// DiffStats maps path to line stats and may be nil or partial; binary files
// and untracked files have no entry.
type StatusReport struct {
	Files     []StatusEntry
	DiffStats map[string]DiffStat
	Clean     bool
}
