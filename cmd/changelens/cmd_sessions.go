package main

import (
	"fmt"
	"strings"

	"changelens/internal/config"
	"changelens/internal/transcript"
	"changelens/internal/types"

	"github.com/spf13/cobra"
)

// sessionsCmd lists recorded sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.NewStore(config.ResolvePath(workspace, cfg.Transcript.DatabasePath))
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.Sessions()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), title)
		}
		return nil
	},
}

// showCmd prints one session's transcript with its summaries
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session transcript including attached change summaries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.NewStore(config.ResolvePath(workspace, cfg.Transcript.DatabasePath))
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := store.Session(args[0])
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("unknown session %s", args[0])
		}

		msgs, err := store.Messages(sess.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Session %s (%s)\n", sess.ID, sess.Directory)
		for i := range msgs {
			printMessage(&msgs[i])
		}
		return nil
	},
}

func printMessage(m *types.Message) {
	header := m.Role
	if m.FinishReason != "" {
		header += " [" + m.FinishReason + "]"
	}
	fmt.Printf("\n-- %s %s\n", header, m.CreatedAt.Format("15:04:05"))

	for _, p := range m.Parts {
		switch p.Kind {
		case types.PartChangeSummary:
			if p.ChangeSummary != nil {
				printSummary(p.ChangeSummary)
			}
		case types.PartText:
			text := strings.TrimSpace(p.Text)
			if text != "" {
				fmt.Println(text)
			}
		default:
			fmt.Printf("(%s part)\n", p.Kind)
		}
	}
}
