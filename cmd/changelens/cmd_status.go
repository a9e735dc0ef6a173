package main

import (
	"context"
	"fmt"
	"time"

	"changelens/internal/summary"
	"changelens/internal/types"
	"changelens/internal/vcs"

	"github.com/spf13/cobra"
)

// statusCmd previews a summary for the current tree
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Preview the change summary for the workspace's working tree",
	Long: `Fetches git status for the workspace and prints the change summary the
synthesis pipeline would attach to a completed turn right now. No
transcript is touched.

Example:
  changelens status
  changelens status -w /path/to/project`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.VCS.FetchTimeoutDuration())
	defer cancel()

	provider := vcs.NewGitProvider(cfg.VCS.GitBinary)
	report, err := provider.Status(ctx, workspace)
	if err != nil {
		return fmt.Errorf("status fetch failed: %w", err)
	}

	if report == nil || report.Clean {
		fmt.Println("Working tree clean. No summary would be attached.")
		return nil
	}

	cs := summary.Normalize(report, time.Now())
	if cs == nil {
		fmt.Println("No actionable file changes. No summary would be attached.")
		return nil
	}

	printSummary(cs)
	return nil
}

// printSummary renders a change summary as one line per file.
func printSummary(cs *types.ChangeSummary) {
	fmt.Printf("Change summary (%d files):\n", len(cs.Files))
	for _, fc := range cs.Files {
		line := fmt.Sprintf("  %-8s %s", fc.Status, fc.Path)
		if fc.OldPath != "" {
			line += fmt.Sprintf(" (from %s)", fc.OldPath)
		}
		if fc.Stats != nil {
			line += fmt.Sprintf("  +%d -%d", fc.Stats.Insertions, fc.Stats.Deletions)
		}
		fmt.Println(line)
	}
}
