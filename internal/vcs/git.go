// Package vcs reports git working tree status for a directory by shelling
// out to the git binary, the same way the rest of the tool drives git.
// Parsing is separated from execution so it can be tested without a repo.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"changelens/internal/logging"
	"changelens/internal/types"
)

// GitProvider implements types.StatusProvider against a local git checkout.
type GitProvider struct {
	gitBin string
}

var _ types.StatusProvider = (*GitProvider)(nil)

// NewGitProvider creates a provider using the given git binary, or "git"
// from PATH when empty.
func NewGitProvider(gitBin string) *GitProvider {
	if gitBin == "" {
		gitBin = "git"
	}
	return &GitProvider{gitBin: gitBin}
}

// Status returns the porcelain status of dir plus line-level diff stats.
// A tree with no pending changes comes back as Clean with no files. Diff
// stats are best-effort: a repo without commits has no HEAD to diff against,
// and the summary is still useful without line counts.
func (p *GitProvider) Status(ctx context.Context, dir string) (*types.StatusReport, error) {
	timer := logging.StartTimer(logging.CategoryVCS, "Status")
	defer timer.Stop()

	out, err := p.run(ctx, dir, "status", "--porcelain", "-z")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	entries := ParsePorcelain(out)
	if len(entries) == 0 {
		logging.VCSDebug("clean tree: %s", dir)
		return &types.StatusReport{Clean: true}, nil
	}

	report := &types.StatusReport{Files: entries}
	if numstat, err := p.run(ctx, dir, "diff", "HEAD", "--numstat", "-z"); err == nil {
		report.DiffStats = ParseNumstat(numstat)
	} else {
		logging.VCSDebug("numstat unavailable for %s: %v", dir, err)
	}

	logging.VCSDebug("status: %s has %d entries", dir, len(entries))
	return report, nil
}

// run executes a git subcommand in dir and returns stdout.
func (p *GitProvider) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.gitBin, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// ParsePorcelain parses `git status --porcelain -z` output. Each entry is
// "XY path" NUL-terminated; rename and copy entries are followed by one
// extra NUL-terminated field holding the original path.
func ParsePorcelain(out []byte) []types.StatusEntry {
	fields := strings.Split(string(out), "\x00")

	var entries []types.StatusEntry
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if len(f) < 4 || f[2] != ' ' {
			continue
		}

		entry := types.StatusEntry{
			Index:      f[0],
			WorkingDir: f[1],
			Path:       f[3:],
		}
		if entry.Index == 'R' || entry.Index == 'C' || entry.WorkingDir == 'R' || entry.WorkingDir == 'C' {
			if i+1 < len(fields) {
				i++
				entry.OldPath = fields[i]
			}
		}

		entries = append(entries, entry)
	}
	return entries
}

// ParseNumstat parses `git diff --numstat -z` output into a path-keyed map.
// Regular entries are "ins\tdel\tpath" NUL-terminated; rename entries have
// an empty path field followed by the pre- and post-image paths as separate
// NUL-terminated fields. Binary files ("-" columns) are skipped.
func ParseNumstat(out []byte) map[string]types.DiffStat {
	fields := strings.Split(string(out), "\x00")
	stats := make(map[string]types.DiffStat)

	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if f == "" {
			continue
		}

		parts := strings.SplitN(f, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		path := parts[2]
		if path == "" {
			// Rename: pre-image then post-image follow. Key by post-image,
			// matching the porcelain entry's new path.
			if i+2 >= len(fields) {
				break
			}
			path = fields[i+2]
			i += 2
		}

		if parts[0] == "-" || parts[1] == "-" {
			continue
		}
		ins, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		del, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}

		stats[path] = types.DiffStat{Insertions: ins, Deletions: del}
	}
	return stats
}
