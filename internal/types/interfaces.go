package types

import "context"

// TranscriptStore is the session/message collaborator the synthesis
// controller consumes. Messages returns the ordered transcript for a
// session, nil when the session is unknown. AppendPart must be safe to call
// once per (session, message) for a given part kind.
type TranscriptStore interface {
	Messages(sessionID string) ([]Message, error)
	AppendPart(sessionID, messageID string, part MessagePart) error
}

// StatusProvider reports the version-control status of a working directory.
// Implementations may fail; callers are expected to degrade, not abort.
type StatusProvider interface {
	Status(ctx context.Context, dir string) (*StatusReport, error)
}

// Editor is the host environment's file-open/diff-open capability.
// Presentation only: the synthesis pipeline never depends on it for
// correctness.
type Editor interface {
	OpenFile(path string) error
	OpenDiff(baseRef, path, label string) error
}
