package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"changelens/internal/logging"
	"changelens/internal/types"
)

// Record is one line of a session transcript file. Host agents append these
// as the conversation progresses: usually a single session record first,
// then one message record per turn (messages may be rewritten with a finish
// reason once the turn completes).
type Record struct {
	Type string `json:"type"` // "session" or "message"

	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt,omitempty"`

	// Session fields
	Title     string `json:"title,omitempty"`
	Directory string `json:"directory,omitempty"`

	// Message fields
	Role         string              `json:"role,omitempty"`
	FinishReason string              `json:"finishReason,omitempty"`
	Parts        []types.MessagePart `json:"parts,omitempty"`
}

// bufio.Scanner default is too small for tool-heavy assistant turns.
const maxLineBytes = 4 * 1024 * 1024

// LoadFile reads a session transcript file into the store and returns the
// session id and its working directory. The session id defaults to the file
// name stem and the directory to defaultDir when the file carries no session
// record. Malformed lines are skipped, not fatal: transcripts are written by
// an external agent and may be mid-append.
func LoadFile(store *Store, path, defaultDir string) (sessionID, dir string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	sessionID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir = defaultDir

	var messages []types.Message

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			logging.WatcherDebug("%s:%d: skipping malformed record: %v", path, line, err)
			continue
		}

		switch rec.Type {
		case "session":
			if rec.ID != "" {
				sessionID = rec.ID
			}
			if rec.Directory != "" {
				dir = rec.Directory
			}
			if err := store.UpsertSession(&types.Session{
				ID:        sessionID,
				Title:     rec.Title,
				Directory: dir,
				CreatedAt: rec.CreatedAt,
			}); err != nil {
				return "", "", err
			}
		case "message":
			if rec.ID == "" {
				logging.WatcherDebug("%s:%d: message record without id", path, line)
				continue
			}
			messages = append(messages, types.Message{
				ID:           rec.ID,
				Role:         rec.Role,
				FinishReason: rec.FinishReason,
				Parts:        rec.Parts,
				CreatedAt:    rec.CreatedAt,
			})
		default:
			logging.WatcherDebug("%s:%d: unknown record type %q", path, line, rec.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}

	// The session row must exist before messages reference it, and the file
	// may declare the session anywhere (or not at all).
	if sess, err := store.Session(sessionID); err != nil {
		return "", "", err
	} else if sess == nil {
		if err := store.UpsertSession(&types.Session{ID: sessionID, Directory: dir}); err != nil {
			return "", "", err
		}
	} else if sess.Directory != "" {
		dir = sess.Directory
	}

	for i := range messages {
		messages[i].SessionID = sessionID
		if err := store.UpsertMessage(&messages[i]); err != nil {
			return "", "", err
		}
	}

	return sessionID, dir, nil
}
