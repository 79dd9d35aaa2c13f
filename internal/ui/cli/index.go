package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"microscope/internal/core/config"
	"microscope/internal/engine/resolver"
	"microscope/internal/shared/util"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var manifestOut string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the project symbol index",
	Long: `Index parses every file under oracle.index_paths and stores the declared
classes, interfaces, traits, enums, functions and methods in the SQLite
database at oracle.sqlite_path. Later checks answer from the stored index
until --rebuild-index is given or the index is rebuilt.

With --manifest-out the index is also written as a YAML symbol manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Oracle.SQLitePath == "" && manifestOut == "" {
			slog.Warn("oracle.sqlite_path is not set; the index is built but not persisted")
		}

		shutdown, err := startObservability(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		rt, err := newRuntime(ctx, cfg, runtimeOptions{
			Paths:        cfg.ScanPaths,
			NeedOracle:   true,
			RebuildIndex: true,
			InMemory:     true,
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		if manifestOut != "" {
			path := config.ResolveRelative(workDir, manifestOut)
			if err := writeManifest(path, rt.index); err != nil {
				return err
			}
			slog.Info("symbol manifest written", "path", path)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d symbols\n", rt.index.Len())
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&manifestOut, "manifest-out", "", "also write the index as a YAML symbol manifest")
	rootCmd.AddCommand(indexCmd)
}

func writeManifest(path string, ix *resolver.Index) error {
	var buf bytes.Buffer
	if err := resolver.WriteManifest(&buf, ix); err != nil {
		return err
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
