package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"changelens/internal/config"
	"changelens/internal/summary"
	"changelens/internal/transcript"
	"changelens/internal/vcs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// watchCmd runs the synthesis daemon
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch session transcripts and attach change summaries",
	Long: `Runs the synthesis pipeline until interrupted: watches the transcript
directory for per-session *.jsonl files, and when an assistant turn
completes, waits out the settling delay, fetches git status for the
session's workspace, and appends a change-summary part to the message.

Example:
  changelens watch
  changelens watch --workspace /path/to/project`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	store, err := transcript.NewStore(config.ResolvePath(workspace, cfg.Transcript.DatabasePath))
	if err != nil {
		return err
	}
	defer store.Close()

	provider := vcs.NewGitProvider(cfg.VCS.GitBinary)
	controller := summary.NewController(store, provider, summary.NewLedger(),
		summary.WithSettleDelay(cfg.VCS.SettleDelayDuration()),
		summary.WithFetchTimeout(cfg.VCS.FetchTimeoutDuration()),
	)
	defer controller.Close()

	watcher, err := transcript.NewWatcher(store, controller,
		config.ResolvePath(workspace, cfg.Transcript.Dir), workspace)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		return err
	}

	logger.Info("changelens watching",
		zap.String("workspace", workspace),
		zap.String("transcripts", cfg.Transcript.Dir),
		zap.Duration("settle_delay", cfg.VCS.SettleDelayDuration()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		watcher.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	stats := watcher.Stats()
	logger.Info("watcher stopped",
		zap.Int("files_loaded", stats.FilesLoaded),
		zap.Int("notifications", stats.Notifications),
		zap.Int("errors", stats.Errors),
	)
	return nil
}
