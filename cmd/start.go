package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentswarm/swarm/pkg/orchestrator"
)

// newStartCmd creates the Cobra command for launching a swarm.
func newStartCmd() *cobra.Command {
	var (
		configPath string
		vibe       bool
		prompt     string
		debug      bool
		sessionID  string
		worktree   string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "start [config]",
		Short: "Validate and launch a swarm",
		Long: `start parses and validates a topology document, then launches its
main instance in the foreground. Connected instances are spawned lazily,
re-entrantly, the first time the main instance calls one via the task tool.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				configPath = args[0]
			}
			if configPath == "" {
				configPath = "swarm.yml"
			}

			opts := orchestrator.Options{
				ConfigPath:      configPath,
				Vibe:            vibe,
				Prompt:          prompt,
				Debug:           debug,
				SessionID:       sessionID,
				WorktreeEnabled: cmd.Flags().Changed("worktree"),
				WorktreeName:    strings.TrimSpace(worktree),
				Verbose:         verbose,
			}

			code, err := orchestrator.Run(opts)
			if err != nil {
				cmd.PrintErrln(err)
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the topology document (default: swarm.yml, or the positional argument)")
	cmd.Flags().BoolVar(&vibe, "vibe", false, "skip permission prompts for every instance")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "run one non-interactive turn with this prompt instead of an interactive session")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable verbose diagnostic logging")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "resume a previous session by id or path")
	cmd.Flags().StringVarP(&worktree, "worktree", "w", "", "remap every instance's directories into isolated git worktrees, optionally named")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable verbose CLI output")
	cmd.Flags().Lookup("worktree").NoOptDefVal = " "

	return cmd
}
