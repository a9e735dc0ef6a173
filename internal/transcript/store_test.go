package transcript

import (
	"testing"
	"time"

	"changelens/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSessions(t *testing.T) {
	store := newTestStore(t)

	t.Run("create and fetch", func(t *testing.T) {
		sess, err := store.CreateSession("fix the parser", "/tmp/project")
		require.NoError(t, err)
		require.NotEmpty(t, sess.ID)

		got, err := store.Session(sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "fix the parser", got.Title)
		assert.Equal(t, "/tmp/project", got.Directory)
	})

	t.Run("unknown session is nil", func(t *testing.T) {
		got, err := store.Session("nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert refreshes title and directory", func(t *testing.T) {
		sess := &types.Session{ID: "s-up", Title: "old", Directory: "/a"}
		require.NoError(t, store.UpsertSession(sess))

		sess.Title = "new"
		sess.Directory = "/b"
		require.NoError(t, store.UpsertSession(sess))

		got, err := store.Session("s-up")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, "/b", got.Directory)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		assert.Error(t, store.UpsertSession(&types.Session{}))
	})

	t.Run("list", func(t *testing.T) {
		sessions, err := store.Sessions()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(sessions), 2)
	})
}

func TestStoreMessages(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.CreateSession("", "/tmp/ws")
	require.NoError(t, err)

	t.Run("ordered by insertion", func(t *testing.T) {
		for _, id := range []string{"m1", "m2", "m3"} {
			require.NoError(t, store.UpsertMessage(&types.Message{
				ID: id, SessionID: sess.ID, Role: types.RoleUser,
			}))
		}

		msgs, err := store.Messages(sess.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, "m3", msgs[2].ID)
	})

	t.Run("upsert updates finish reason without duplicating", func(t *testing.T) {
		require.NoError(t, store.UpsertMessage(&types.Message{
			ID: "m2", SessionID: sess.ID, Role: types.RoleAssistant, FinishReason: types.FinishStop,
		}))

		msgs, err := store.Messages(sess.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, types.FinishStop, msgs[1].FinishReason)
	})

	t.Run("unknown session yields nil", func(t *testing.T) {
		msgs, err := store.Messages("missing")
		require.NoError(t, err)
		assert.Nil(t, msgs)
	})

	t.Run("ids required", func(t *testing.T) {
		assert.Error(t, store.UpsertMessage(&types.Message{ID: "x"}))
		assert.Error(t, store.UpsertMessage(&types.Message{SessionID: sess.ID}))
	})
}

func TestStoreAppendPart(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.CreateSession("", "/tmp/ws")
	require.NoError(t, err)
	require.NoError(t, store.UpsertMessage(&types.Message{
		ID: "m1", SessionID: sess.ID, Role: types.RoleAssistant, FinishReason: types.FinishStop,
	}))

	part := types.MessagePart{
		ID:        "m1-summary-1",
		Kind:      types.PartChangeSummary,
		Synthetic: true,
		ChangeSummary: &types.ChangeSummary{
			Files: []types.FileChange{
				{Path: "a.ts", Status: types.StatusModified, Stats: &types.DiffStat{Insertions: 3, Deletions: 1}},
			},
			Timestamp: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		},
	}

	t.Run("append and round trip", func(t *testing.T) {
		require.NoError(t, store.AppendPart(sess.ID, "m1", part))

		msgs, err := store.Messages(sess.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Parts, 1)

		got := msgs[0].Parts[0]
		assert.Equal(t, types.PartChangeSummary, got.Kind)
		assert.True(t, got.Synthetic)
		require.NotNil(t, got.ChangeSummary)
		require.Len(t, got.ChangeSummary.Files, 1)
		assert.Equal(t, "a.ts", got.ChangeSummary.Files[0].Path)
		require.NotNil(t, got.ChangeSummary.Files[0].Stats)
		assert.Equal(t, 3, got.ChangeSummary.Files[0].Stats.Insertions)
	})

	t.Run("duplicate part id is ignored", func(t *testing.T) {
		require.NoError(t, store.AppendPart(sess.ID, "m1", part))

		msgs, err := store.Messages(sess.ID)
		require.NoError(t, err)
		assert.Len(t, msgs[0].Parts, 1)
	})

	t.Run("unknown message rejected", func(t *testing.T) {
		err := store.AppendPart(sess.ID, "ghost", part)
		assert.ErrorContains(t, err, "unknown message")
	})

	t.Run("session mismatch rejected", func(t *testing.T) {
		err := store.AppendPart("other-session", "m1", part)
		assert.ErrorContains(t, err, "does not belong")
	})

	t.Run("part id generated when empty", func(t *testing.T) {
		require.NoError(t, store.AppendPart(sess.ID, "m1", types.MessagePart{
			Kind: types.PartText, Text: "done",
		}))

		msgs, err := store.Messages(sess.ID)
		require.NoError(t, err)
		require.Len(t, msgs[0].Parts, 2)
		assert.NotEmpty(t, msgs[0].Parts[1].ID)
	})
}

func TestStoreUpsertMessageCarriesParts(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.CreateSession("", "/tmp/ws")
	require.NoError(t, err)

	msg := &types.Message{
		ID: "m1", SessionID: sess.ID, Role: types.RoleAssistant, FinishReason: types.FinishStop,
		Parts: []types.MessagePart{
			{ID: "p1", Kind: types.PartText, Text: "hello"},
			{ID: "p2", Kind: types.PartToolUse},
		},
	}
	require.NoError(t, store.UpsertMessage(msg))

	// Replaying the same message does not duplicate its parts.
	require.NoError(t, store.UpsertMessage(msg))

	msgs, err := store.Messages(sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Parts, 2)
	assert.Equal(t, "hello", msgs[0].Parts[0].Text)
}
