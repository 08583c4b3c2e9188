package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentswarm/swarm/pkg/project"
)

// rootCmd represents the base command for the swarm application.
var rootCmd = &cobra.Command{
	Use:          project.BinaryName,
	Short:        "Orchestrate a tree of AI-agent CLI processes over MCP",
	Long:         project.Name + " " + project.Description,
	SilenceUsage: true,
}

// SetBuildInfo propagates the version/commit/date injected at build time
// (via ldflags) to both the root command and pkg/project.
func SetBuildInfo(version, commit, date string) {
	rootCmd.Version = version
	project.SetBuildInfo(version, commit, date)
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "` + project.BinaryName + ` version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newMCPServeCmd())
}
