// Package editor implements the host environment's file-open and diff-open
// capability for a terminal. Presentation only: the synthesis core never
// depends on this package for correctness.
package editor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"changelens/internal/logging"
	"changelens/internal/types"
)

// Terminal implements types.Editor by spawning $EDITOR for files and
// printing rendered diffs to its output writer.
type Terminal struct {
	workspace string
	gitBin    string
	out       io.Writer
}

var _ types.Editor = (*Terminal)(nil)

// NewTerminal creates a terminal editor rooted at workspace, writing diffs
// to out (stdout when nil).
func NewTerminal(workspace, gitBin string, out io.Writer) *Terminal {
	if gitBin == "" {
		gitBin = "git"
	}
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{workspace: workspace, gitBin: gitBin, out: out}
}

// OpenFile opens a workspace-relative path in the user's editor.
func (t *Terminal) OpenFile(path string) error {
	ed := os.Getenv("EDITOR")
	if ed == "" {
		ed = "vi"
	}

	cmd := exec.Command(ed, path)
	cmd.Dir = t.workspace
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor failed for %s: %w", path, err)
	}
	return nil
}

// OpenDiff renders the difference between baseRef's copy of path and the
// working copy. label is the heading shown above the diff; path is used
// when empty. A path missing from baseRef is treated as new, a path missing
// from the worktree as deleted.
func (t *Terminal) OpenDiff(baseRef, path, label string) error {
	if label == "" {
		label = path
	}

	old, err := t.showBlob(baseRef, path)
	if err != nil {
		logging.VCSDebug("no base blob %s:%s: %v", baseRef, path, err)
		old = "" // New file
	}

	var current string
	if data, err := os.ReadFile(filepath.Join(t.workspace, path)); err == nil {
		current = string(data)
	}

	_, err = fmt.Fprint(t.out, RenderUnified(label, old, current))
	return err
}

// showBlob reads a file's content at a ref via git show.
func (t *Terminal) showBlob(ref, path string) (string, error) {
	cmd := exec.Command(t.gitBin, "show", ref+":"+path)
	cmd.Dir = t.workspace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return string(out), nil
}
