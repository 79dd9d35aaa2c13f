package cli

import (
	"github.com/spf13/cobra"
)

var (
	nsFixFlag    bool
	nsDryRunFlag bool
)

var namespacesCmd = &cobra.Command{
	Use:     "namespaces [paths...]",
	Aliases: []string{"ns"},
	Short:   "Check namespace declarations against the source roots",
	Long: `Namespaces compares each file's namespace declaration with the namespace
implied by its location under a configured source root. With --fix the
declaration is rewritten, or inserted when missing. No symbol index is built.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("fix") {
			cfg.Check.AutoFix = nsFixFlag
		}
		dryRunFlag = nsDryRunFlag
		cfg.Check.References = boolPtr(false)
		cfg.Check.Namespaces = boolPtr(true)
		return runCheck(cmd, argPaths(args))
	},
}

func init() {
	namespacesCmd.Flags().BoolVar(&nsFixFlag, "fix", false, "rewrite or insert namespace statements")
	namespacesCmd.Flags().BoolVar(&nsDryRunFlag, "dry-run", false, "with --fix, report fixes without writing files")
	rootCmd.AddCommand(namespacesCmd)
}
