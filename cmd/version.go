package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentswarm/swarm/pkg/project"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + project.BinaryName,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s, commit: %s)\n",
				project.BinaryName, project.Version(), project.BuildTimestamp(), project.GitSHA())
		},
	}
}
