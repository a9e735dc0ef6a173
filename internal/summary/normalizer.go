// Package summary synthesizes change-summary parts for completed assistant
// turns from version-control status. The normalizer is the pure half of the
// pipeline; the controller owns the stateful half.
package summary

import (
	"time"

	"changelens/internal/types"
)

// Normalize translates a raw status report into a ChangeSummary, or nil when
// the report has no actionable files. File order follows the report, never
// re-sorted. The timestamp is supplied by the caller so the function stays
// referentially transparent.
//
// Per-file resolution prefers the index column when it is not blank, falling
// back to the working-tree column. Untracked files count as added. Codes
// outside {A, M, D, R, ?} drop the entry silently.
//
// Callers are expected to short-circuit on a clean tree before invoking
// Normalize; it is never asked to prove cleanliness.
func Normalize(report *types.StatusReport, now time.Time) *types.ChangeSummary {
	if report == nil || len(report.Files) == 0 {
		return nil
	}

	files := make([]types.FileChange, 0, len(report.Files))
	for _, entry := range report.Files {
		if entry.Path == "" {
			continue
		}

		code := entry.Index
		if code == ' ' || code == 0 {
			code = entry.WorkingDir
		}

		status, ok := mapStatusCode(code)
		if !ok {
			continue
		}

		fc := types.FileChange{Path: entry.Path, Status: status}
		if status == types.StatusRenamed {
			fc.OldPath = entry.OldPath
		}
		if stat, ok := report.DiffStats[entry.Path]; ok {
			fc.Stats = statsFor(status, stat)
		}

		files = append(files, fc)
	}

	if len(files) == 0 {
		return nil
	}

	return &types.ChangeSummary{Files: files, Timestamp: now}
}

// mapStatusCode maps a single porcelain status code onto the closed
// ChangeStatus set. Unrecognized codes yield ok=false.
func mapStatusCode(code byte) (types.ChangeStatus, bool) {
	switch code {
	case 'A', '?':
		return types.StatusAdded, true
	case 'M':
		return types.StatusModified, true
	case 'D':
		return types.StatusDeleted, true
	case 'R':
		return types.StatusRenamed, true
	default:
		return "", false
	}
}

// statsFor filters raw line stats for a file. Deleted entries never carry
// insertions; negative values (a provider bug) suppress the stats entirely.
func statsFor(status types.ChangeStatus, stat types.DiffStat) *types.DiffStat {
	if stat.Insertions < 0 || stat.Deletions < 0 {
		return nil
	}
	if status == types.StatusDeleted {
		if stat.Deletions == 0 {
			return nil
		}
		return &types.DiffStat{Deletions: stat.Deletions}
	}
	s := stat
	return &s
}
