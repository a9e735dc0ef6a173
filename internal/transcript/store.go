// Package transcript provides the session/message store and the transcript
// file watcher that drives change-summary synthesis.
package transcript

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"changelens/internal/logging"
	"changelens/internal/types"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed transcript store. It implements
// types.TranscriptStore and is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ types.TranscriptStore = (*Store)(nil)

// NewStore opens (or creates) the transcript database at path.
// Use ":memory:" for an ephemeral store in tests.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript db: %w", err)
	}

	// Single connection: the modernc driver serializes writers anyway and
	// this keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Transcript store opened: %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			directory  TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id            TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			role          TEXT NOT NULL,
			finish_reason TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS parts (
			id         TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			synthetic  INTEGER NOT NULL DEFAULT 0,
			payload    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parts_message ON parts(message_id, seq)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateSession creates a new session for a working directory and returns it.
func (s *Store) CreateSession(title, directory string) (*types.Session, error) {
	sess := &types.Session{
		ID:        uuid.NewString(),
		Title:     title,
		Directory: directory,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.UpsertSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// UpsertSession inserts a session, or refreshes its title/directory when the
// id already exists. Externally supplied ids are kept verbatim.
func (s *Store) UpsertSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		return fmt.Errorf("session id required")
	}
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, title, directory, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, directory = excluded.directory`,
		sess.ID, sess.Title, sess.Directory, created,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert session %s: %v", sess.ID, err)
		return err
	}

	logging.StoreDebug("Session upserted: id=%s dir=%s", sess.ID, sess.Directory)
	return nil
}

// Session returns one session by id, nil when unknown.
func (s *Store) Session(id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, title, directory, created_at FROM sessions WHERE id = ?`, id)
	var sess types.Session
	if err := row.Scan(&sess.ID, &sess.Title, &sess.Directory, &sess.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// Sessions lists all sessions, oldest first.
func (s *Store) Sessions() ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, title, directory, created_at FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var sess types.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Directory, &sess.CreatedAt); err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// UpsertMessage inserts a message, or refreshes its finish reason when the
// id already exists (a turn completes after the message first appears).
// Message parts carried on msg are appended idempotently by part id.
func (s *Store) UpsertMessage(msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" || msg.SessionID == "" {
		return fmt.Errorf("message and session ids required")
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (id, session_id, seq, role, finish_reason, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq)+1, 0) FROM messages WHERE session_id = ?), ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET finish_reason = excluded.finish_reason`,
		msg.ID, msg.SessionID, msg.SessionID, msg.Role, msg.FinishReason, created,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert message %s: %v", msg.ID, err)
		return err
	}

	for i := range msg.Parts {
		if err := s.appendPartLocked(msg.ID, msg.Parts[i]); err != nil {
			return err
		}
	}

	logging.StoreDebug("Message upserted: session=%s id=%s finish=%s parts=%d",
		msg.SessionID, msg.ID, msg.FinishReason, len(msg.Parts))
	return nil
}

// Messages returns the ordered transcript for a session, with parts
// attached. Returns nil for an unknown session.
func (s *Store) Messages(sessionID string) ([]types.Message, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Messages")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, session_id, role, finish_reason, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.FinishReason, &msg.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range messages {
		parts, err := s.partsLocked(messages[i].ID)
		if err != nil {
			return nil, err
		}
		messages[i].Parts = parts
	}
	return messages, nil
}

// AppendPart appends one part to a message, keyed by session and message id.
// Safe to call more than once for the same part id: duplicates are ignored.
func (s *Store) AppendPart(sessionID, messageID string, part types.MessagePart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owner string
	err := s.db.QueryRow(`SELECT session_id FROM messages WHERE id = ?`, messageID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("unknown message %s", messageID)
		}
		return err
	}
	if owner != sessionID {
		return fmt.Errorf("message %s does not belong to session %s", messageID, sessionID)
	}

	return s.appendPartLocked(messageID, part)
}

// appendPartLocked writes one part row. Caller holds s.mu.
// INSERT OR IGNORE keeps replays of the same part id idempotent, the same
// trick the turn-history tables use for duplicate syncs.
func (s *Store) appendPartLocked(messageID string, part types.MessagePart) error {
	if part.ID == "" {
		part.ID = uuid.NewString()
	}
	created := part.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	payload, err := json.Marshal(part)
	if err != nil {
		return fmt.Errorf("failed to encode part: %w", err)
	}

	synthetic := 0
	if part.Synthetic {
		synthetic = 1
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO parts (id, message_id, seq, kind, synthetic, payload, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq)+1, 0) FROM parts WHERE message_id = ?), ?, ?, ?, ?)`,
		part.ID, messageID, messageID, string(part.Kind), synthetic, string(payload), created,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append part to %s: %v", messageID, err)
		return err
	}

	logging.StoreDebug("Part appended: message=%s kind=%s synthetic=%v", messageID, part.Kind, part.Synthetic)
	return nil
}

// partsLocked loads the ordered parts of a message. Caller holds s.mu.
func (s *Store) partsLocked(messageID string) ([]types.MessagePart, error) {
	rows, err := s.db.Query(`SELECT payload FROM parts WHERE message_id = ? ORDER BY seq`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []types.MessagePart
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var part types.MessagePart
		if err := json.Unmarshal([]byte(payload), &part); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping undecodable part on %s: %v", messageID, err)
			continue
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
