package cmd

import (
	"github.com/spf13/cobra"

	"class-patcher/internal/output"
)

var (
	// Global flags
	configFlag  string
	verboseFlag bool
)

// NewRootCmd creates the root command for the class-patcher CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "class-patcher",
		Short: "Incremental hot-fix patch assembler for compiled classes",
		Long: `class-patcher rewrites the constructors of every compiled class of a build
so no class is pre-verified against its dex file, fingerprints the results, and
packs the classes that changed since the previous build into a patch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			output.SetupLoggingTo(cmd.ErrOrStderr(), verboseFlag)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default: patch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewBuildCmd())
	rootCmd.AddCommand(NewInspectCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
