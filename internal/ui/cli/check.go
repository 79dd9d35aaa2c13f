package cli

import (
	"context"
	"fmt"
	"log/slog"
	"microscope/internal/core/app"
	"microscope/internal/core/ports"
	"microscope/internal/shared/util"
	"microscope/internal/ui/report"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	fixFlag          bool
	dryRunFlag       bool
	rebuildIndexFlag bool
	noReferences     bool
	noNamespaces     bool
	noCallables      bool
	onlyAbsolute     bool
)

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Check references, callable strings and namespaces",
	Long: `Check scans the given paths (or the configured scan_paths) and reports
unresolved imports, class references and "Class@method" strings, then
compares every namespace declaration with the configured source roots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("fix") {
			cfg.Check.AutoFix = fixFlag
		}
		if noReferences {
			cfg.Check.References = boolPtr(false)
		}
		if noNamespaces {
			cfg.Check.Namespaces = boolPtr(false)
		}
		if noCallables {
			cfg.Check.Callables = boolPtr(false)
		}
		if onlyAbsolute {
			cfg.Check.OnlyAbsoluteCallables = true
		}
		if !cfg.Check.ReferencesEnabled() && !cfg.Check.NamespacesEnabled() {
			return fmt.Errorf("both reference and namespace checks are disabled")
		}
		return runCheck(cmd, argPaths(args))
	},
}

func init() {
	checkCmd.Flags().BoolVar(&fixFlag, "fix", false, "rewrite namespace statements that disagree with their source root")
	checkCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "with --fix, report fixes without writing files")
	checkCmd.Flags().BoolVar(&rebuildIndexFlag, "rebuild-index", false, "rebuild the stored symbol index before checking")
	checkCmd.Flags().BoolVar(&noReferences, "no-references", false, "skip import, reference and callable checks")
	checkCmd.Flags().BoolVar(&noNamespaces, "no-namespaces", false, "skip namespace checks")
	checkCmd.Flags().BoolVar(&noCallables, "no-callables", false, "skip \"Class@method\" callable strings")
	checkCmd.Flags().BoolVar(&onlyAbsolute, "only-absolute", false, "only check callable strings with a leading backslash")
	rootCmd.AddCommand(checkCmd)
}

func boolPtr(v bool) *bool {
	return &v
}

func runCheck(cmd *cobra.Command, paths []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := startObservability(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	rt, err := newRuntime(ctx, cfg, runtimeOptions{
		Paths:        paths,
		NeedOracle:   cfg.Check.ReferencesEnabled(),
		RebuildIndex: rebuildIndexFlag,
		AutoFix:      cfg.Check.AutoFix,
		DryRun:       dryRunFlag,
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

	run, err := checkFiles(ctx, rt, files)
	if err != nil {
		return err
	}
	slog.Debug("run finished", "run_id", run.ID, "duration", run.Duration, "heap_mb", util.ReadMemoryUsage().HeapMB)
	return finishReport(cmd, run, rt.collector)
}

func candidates(ctx context.Context, src ports.CandidateSource) ([]string, error) {
	files, err := src.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Warn("no PHP files found under the scan paths")
	}
	slog.Debug("scanned candidate files", "files", len(files))
	return files, nil
}

// checkFiles runs the enabled passes with a progress bar on stderr.
func checkFiles(ctx context.Context, rt *runtime, files []string) (app.RunResult, error) {
	passes := 0
	if rt.cfg.Check.ReferencesEnabled() {
		passes++
	}
	if rt.cfg.Check.NamespacesEnabled() {
		passes++
	}

	var sinks ports.Events
	if bar := newProgress(len(files)*passes, "Checking"); bar != nil {
		sinks = append(sinks, bar)
		defer bar.finish()
	}
	if rt.cfg.Check.AutoFix {
		sinks = append(sinks, ports.EventFunc(logFixEvent))
	}
	rt.app.SetEventSink(sinks)

	switch {
	case passes == 2:
		return rt.app.Run(ctx, files)
	case rt.cfg.Check.ReferencesEnabled():
		return rt.app.CheckReferences(ctx, files)
	default:
		return rt.app.CheckNamespaces(ctx, files)
	}
}

func logFixEvent(e ports.Event) {
	switch e.Kind {
	case ports.NamespaceFixing:
		slog.Debug("fixing namespace", "path", e.Path)
	case ports.NamespaceFixed:
		if e.Err == nil && dryRunFlag {
			slog.Info("namespace fix not written (dry run)", "path", e.Path)
		}
	}
}

// finishReport renders the collected diagnostics and turns problems that no
// applied fix settled into exit status 1.
func finishReport(cmd *cobra.Command, run app.RunResult, collector *report.Collector) error {
	diags := collector.Diagnostics()
	opts := reportOptions()
	if err := report.Write(cmd.OutOrStdout(), opts, report.SummaryOf(run), diags); err != nil {
		return err
	}
	if opts.Path != "" {
		slog.Info("report written", "path", opts.Path, "diagnostics", len(diags))
	}
	remaining := run.Outstanding()
	if dryRunFlag {
		remaining = len(diags)
	}
	if remaining > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

// outputMu guards cfg.Output, which watch reloads from the config file.
var outputMu sync.Mutex

func reportOptions() report.OutputOptions {
	outputMu.Lock()
	defer outputMu.Unlock()
	return report.OutputOptions{
		Format:      cfg.Output.Format,
		Path:        cfg.Output.Path,
		ProjectRoot: projectRoot,
		Color:       cfg.Output.ColorEnabled(),
	}
}

// progress adapts a progress bar to the event sink; every FileTapped event
// advances it by one.
type progress struct {
	bar  *progressbar.ProgressBar
	once sync.Once
}

func newProgress(total int, label string) *progress {
	if quiet || total == 0 || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionClearOnFinish(),
	)
	return &progress{bar: bar}
}

func (p *progress) Emit(e ports.Event) {
	if e.Kind == ports.FileTapped {
		p.tick()
	}
}

func (p *progress) tick() {
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	p.once.Do(func() { _ = p.bar.Finish() })
}
