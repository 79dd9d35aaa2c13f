// Package cli wires configuration, the symbol oracle and the analysis passes
// into the microscope command line.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"microscope/internal/core/config"
	"microscope/internal/shared/version"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	rootDir     string
	verbose     bool
	quiet       bool
	formatFlag  string
	outputFlag  string
	noColor     bool
	metricsAddr string

	cfg         *config.Config
	configPath  string
	projectRoot string
	workDir     string
)

var rootCmd = &cobra.Command{
	Use:   version.Name,
	Short: "Find unresolved class references and misplaced namespaces in PHP projects",
	Long: `microscope scans PHP sources without executing them and reports:
  - use imports and class references that do not resolve to a known symbol
  - "Class@method" callable strings whose class or method is missing
  - namespace declarations that disagree with the PSR-4 source roots

Example usage:
  microscope check                 # Check the whole project
  microscope check app/Http        # Check a subtree
  microscope namespaces --fix      # Rewrite misplaced namespace statements
  microscope index                 # Persist the project symbol index
  microscope watch                 # Re-check files as they change`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)

		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg, projectRoot, configPath, err = loadConfig(cfgFile, rootDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyOutputFlags(cmd)
		return nil
	},
}

// ExitError carries a process exit code without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command and returns the process exit code: 0 when
// clean, 1 when problems were reported, 2 on failure.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFile+" in the project root)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "", "output format: text, json or sarif")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "write the report to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored text output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")

	rootCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatText, config.FormatJSON, config.FormatSARIF}, cobra.ShellCompDirectiveNoFileComp
	})
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// loadConfig finds and loads the project configuration and makes the project
// root the working directory, since configured paths are relative to it. The
// returned path is empty when defaults were used.
func loadConfig(path, dir string) (*config.Config, string, string, error) {
	if dir == "" {
		dir = "."
	}
	root, err := config.DetectProjectRoot([]string{dir})
	if err != nil {
		return nil, "", "", err
	}

	if path == "" {
		path = config.FindFile(root)
	}

	var loaded *config.Config
	var used string
	if path == "" {
		slog.Debug("no config file found, using defaults", "root", root)
		loaded = config.Default()
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", "", err
		}
		loaded, err = config.Load(abs)
		if err != nil {
			return nil, "", "", err
		}
		root = filepath.Dir(abs)
		used = abs
		slog.Debug("loaded config", "path", abs)
	}
	config.ApplyEnvOverrides(loaded)

	if err := os.Chdir(root); err != nil {
		return nil, "", "", fmt.Errorf("enter project root %s: %w", root, err)
	}
	return loaded, root, used, nil
}

func applyOutputFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = formatFlag
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = config.ResolveRelative(workDir, outputFlag)
	}
	if noColor {
		off := false
		cfg.Output.Color = &off
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = metricsAddr
	}
}

// argPaths resolves command arguments against the directory the command was
// started from, falling back to the configured scan paths.
func argPaths(args []string) []string {
	if len(args) == 0 {
		return cfg.ScanPaths
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, config.ResolveRelative(workDir, arg))
	}
	return out
}
