package main

import (
	"changelens/internal/editor"

	"github.com/spf13/cobra"
)

var diffBaseRef string

// diffCmd renders a diff for one workspace path
var diffCmd = &cobra.Command{
	Use:   "diff <path>",
	Short: "Show the diff between a base ref and the working copy of a path",
	Long: `Renders a line diff between the file as stored at --base (HEAD by
default) and the current working copy.

Example:
  changelens diff internal/app/server.go
  changelens diff --base main README.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := editor.NewTerminal(workspace, cfg.VCS.GitBinary, cmd.OutOrStdout())
		return term.OpenDiff(diffBaseRef, args[0], "")
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffBaseRef, "base", "HEAD", "Base ref to diff against")
}
