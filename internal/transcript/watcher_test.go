package transcript

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingNotifier collects TranscriptChanged calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	dirs  map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{dirs: make(map[string]string)}
}

func (n *recordingNotifier) TranscriptChanged(sessionID, dir string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sessionID)
	n.dirs[sessionID] = dir
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *recordingNotifier) dirFor(sessionID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dirs[sessionID]
}

func newTestWatcher(t *testing.T, store *Store, notify Notifier, dir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(store, notify, dir, "/default/ws")
	require.NoError(t, err)
	w.debounceDur = 20 * time.Millisecond
	t.Cleanup(w.Stop)
	return w
}

func TestWatcherCatchesUpOnExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte(
		`{"type":"session","id":"s1","directory":"/proj"}
{"type":"message","id":"m1","role":"assistant","finishReason":"stop"}
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	store := newTestStore(t)
	notify := newRecordingNotifier()
	w := newTestWatcher(t, store, notify, dir)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsWatching())

	// Catch-up happens synchronously in Start.
	assert.Equal(t, 1, notify.callCount())
	assert.Equal(t, "/proj", notify.dirFor("s1"))

	msgs, err := store.Messages("s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestWatcherPicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	notify := newRecordingNotifier()
	w := newTestWatcher(t, store, notify, dir)

	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "s2.jsonl"), []byte(
		`{"type":"message","id":"m1","role":"user"}
`), 0644))

	require.Eventually(t, func() bool {
		return notify.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// No directory in the file, so the configured default applies.
	assert.Equal(t, "/default/ws", notify.dirFor("s2"))

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.EventsSeen, 1)
	assert.GreaterOrEqual(t, stats.FilesLoaded, 1)
}

func TestWatcherDebouncesRapidAppends(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	notify := newRecordingNotifier()
	w := newTestWatcher(t, store, notify, dir)
	w.debounceDur = 100 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(dir, "s3.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.WriteString(`{"type":"message","id":"m` + string(rune('0'+i)) + `","role":"user"}` + "\n")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return notify.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Five writes within the debounce window collapse to one load.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, notify.callCount())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	w := newTestWatcher(t, store, newRecordingNotifier(), dir)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.False(t, w.IsWatching())
	w.Stop()
}

func TestWatcherDoubleStart(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	w := newTestWatcher(t, store, newRecordingNotifier(), dir)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
