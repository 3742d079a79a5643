package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X class-patcher/internal/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = ""
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	commit := GitCommit
	if commit == "" {
		commit = vcsRevision()
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "class-patcher version %s\n", Version)
	fmt.Fprintf(out, "  Commit:    %s\n", commit)
	fmt.Fprintf(out, "  Go:        %s\n", runtime.Version())
	return nil
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}
