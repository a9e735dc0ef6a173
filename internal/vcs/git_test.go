package vcs

import (
	"testing"

	"changelens/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorcelain(t *testing.T) {
	t.Run("empty output", func(t *testing.T) {
		assert.Empty(t, ParsePorcelain(nil))
		assert.Empty(t, ParsePorcelain([]byte("")))
	})

	t.Run("mixed entries", func(t *testing.T) {
		out := []byte("M  a.go\x00 M b.go\x00A  c.go\x00?? d.go\x00D  e.go\x00")
		entries := ParsePorcelain(out)

		want := []types.StatusEntry{
			{Path: "a.go", Index: 'M', WorkingDir: ' '},
			{Path: "b.go", Index: ' ', WorkingDir: 'M'},
			{Path: "c.go", Index: 'A', WorkingDir: ' '},
			{Path: "d.go", Index: '?', WorkingDir: '?'},
			{Path: "e.go", Index: 'D', WorkingDir: ' '},
		}
		assert.Empty(t, cmp.Diff(want, entries))
	})

	t.Run("rename consumes old path field", func(t *testing.T) {
		out := []byte("R  new.go\x00old.go\x00M  other.go\x00")
		entries := ParsePorcelain(out)

		require.Len(t, entries, 2)
		assert.Equal(t, "new.go", entries[0].Path)
		assert.Equal(t, "old.go", entries[0].OldPath)
		assert.Equal(t, byte('R'), entries[0].Index)
		assert.Equal(t, "other.go", entries[1].Path)
		assert.Empty(t, entries[1].OldPath)
	})

	t.Run("working tree rename", func(t *testing.T) {
		out := []byte(" R new.go\x00old.go\x00")
		entries := ParsePorcelain(out)

		require.Len(t, entries, 1)
		assert.Equal(t, "old.go", entries[0].OldPath)
		assert.Equal(t, byte('R'), entries[0].WorkingDir)
	})

	t.Run("path with spaces", func(t *testing.T) {
		out := []byte("M  dir with space/my file.go\x00")
		entries := ParsePorcelain(out)

		require.Len(t, entries, 1)
		assert.Equal(t, "dir with space/my file.go", entries[0].Path)
	})

	t.Run("malformed fields skipped", func(t *testing.T) {
		out := []byte("Mx\x00M\x00\x00M  ok.go\x00")
		entries := ParsePorcelain(out)

		require.Len(t, entries, 1)
		assert.Equal(t, "ok.go", entries[0].Path)
	})
}

func TestParseNumstat(t *testing.T) {
	t.Run("empty output", func(t *testing.T) {
		assert.Empty(t, ParseNumstat(nil))
	})

	t.Run("regular entries", func(t *testing.T) {
		out := []byte("3\t1\ta.ts\x0010\t0\tb.go\x00")
		stats := ParseNumstat(out)

		require.Len(t, stats, 2)
		assert.Equal(t, types.DiffStat{Insertions: 3, Deletions: 1}, stats["a.ts"])
		assert.Equal(t, types.DiffStat{Insertions: 10, Deletions: 0}, stats["b.go"])
	})

	t.Run("binary entries skipped", func(t *testing.T) {
		out := []byte("-\t-\timage.png\x002\t2\tcode.go\x00")
		stats := ParseNumstat(out)

		require.Len(t, stats, 1)
		_, ok := stats["image.png"]
		assert.False(t, ok)
		assert.Equal(t, types.DiffStat{Insertions: 2, Deletions: 2}, stats["code.go"])
	})

	t.Run("rename keyed by post-image path", func(t *testing.T) {
		out := []byte("4\t2\t\x00old.go\x00new.go\x001\t0\tplain.go\x00")
		stats := ParseNumstat(out)

		require.Len(t, stats, 2)
		assert.Equal(t, types.DiffStat{Insertions: 4, Deletions: 2}, stats["new.go"])
		_, ok := stats["old.go"]
		assert.False(t, ok)
		assert.Equal(t, types.DiffStat{Insertions: 1, Deletions: 0}, stats["plain.go"])
	})

	t.Run("truncated rename entry", func(t *testing.T) {
		out := []byte("4\t2\t\x00old.go")
		assert.Empty(t, ParseNumstat(out))
	})

	t.Run("garbage counters skipped", func(t *testing.T) {
		out := []byte("x\ty\tz.go\x005\t5\tok.go\x00")
		stats := ParseNumstat(out)

		require.Len(t, stats, 1)
		assert.Equal(t, types.DiffStat{Insertions: 5, Deletions: 5}, stats["ok.go"])
	})
}

func TestNewGitProviderDefaultsBinary(t *testing.T) {
	p := NewGitProvider("")
	assert.Equal(t, "git", p.gitBin)

	p = NewGitProvider("/usr/local/bin/git")
	assert.Equal(t, "/usr/local/bin/git", p.gitBin)
}
