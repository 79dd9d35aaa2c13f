package cli

import (
	"context"
	"errors"
	"log/slog"
	"microscope/internal/core/config"
	"microscope/internal/core/watcher"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-check files whenever they change",
	Long: `Watch runs a full check, then keeps the symbol index up to date and
re-checks each batch of changed files until interrupted. Edits to the
configuration file or composer.json update the namespace mappings, the
debounce and the output settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdown, err := startObservability(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		paths := argPaths(args)
		rt, err := newRuntime(ctx, cfg, runtimeOptions{
			Paths:      paths,
			NeedOracle: cfg.Check.ReferencesEnabled(),
			InMemory:   true,
			AutoFix:    cfg.Check.AutoFix,
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := startMetricsServer(ctx, rt)
		defer srv.Stop(context.Background())

		files, err := candidates(ctx, rt.scanner)
		if err != nil {
			return err
		}
		if err := watchRun(ctx, cmd, rt, files); err != nil {
			return err
		}
		quiet = true

		w, err := watcher.New(cfg.Watch.Debounce, cfg.Exclude.Dirs, rt.scanner, func(changed []string) {
			rt.refreshIndex(ctx, changed)
			existing := existingPaths(changed)
			if len(existing) == 0 {
				return
			}
			slog.Info("re-checking changed files", "files", len(existing))
			if err := watchRun(ctx, cmd, rt, existing); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("check failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		defer w.Close()

		roots := existingPaths(paths)
		if err := w.Watch(roots); err != nil {
			return err
		}

		if configPath != "" {
			cw := config.NewWatcher(configPath, func(next config.Reload) {
				w.SetDebounce(next.Config.Watch.Debounce)
				rt.app.SetMappings(next.Mappings)
				outputMu.Lock()
				cfg.Output = next.Config.Output
				applyOutputFlags(cmd)
				outputMu.Unlock()
			})
			if err := cw.Start(ctx); err != nil {
				slog.Warn("config watcher not started", "error", err)
			} else {
				defer cw.Stop()
			}
		}

		slog.Info("watching for changes", "roots", len(roots), "debounce", cfg.Watch.Debounce)
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchRun checks files and prints the report; remaining problems are not
// an error while watching.
func watchRun(ctx context.Context, cmd *cobra.Command, rt *runtime, files []string) error {
	rt.collector.Reset()
	run, err := checkFiles(ctx, rt, files)
	if err != nil {
		return err
	}
	err = finishReport(cmd, run, rt.collector)
	var exit *ExitError
	if errors.As(err, &exit) {
		return nil
	}
	return err
}
