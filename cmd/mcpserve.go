package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/claude"
	"github.com/agentswarm/swarm/pkg/logging"
	"github.com/agentswarm/swarm/pkg/mcpserver"
	"github.com/agentswarm/swarm/pkg/openai"
	"github.com/agentswarm/swarm/pkg/session"
	"github.com/agentswarm/swarm/pkg/state"
	"github.com/agentswarm/swarm/pkg/topology"
)

// newMCPServeCmd creates the re-entrant `mcp-serve` command: every wiring
// entry the orchestrator generates (one per outbound edge) invokes the
// binary with this subcommand, and each invocation wraps exactly one
// sub-agent instance as a stdio MCP server. Flags mirror wiring.EdgeArgs.Render() one-for-one.
func newMCPServeCmd() *cobra.Command {
	var (
		name              string
		directory         string
		addDirs           []string
		model             string
		prompt            string
		description       string
		allowedTools      string
		disallowedTools   string
		mcpConfigPath     string
		callingInstance   string
		callingInstanceID string
		instanceID        string
		claudeSessionID   string
		vibe              bool
	)

	cmd := &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Internal: wrap one sub-agent instance as a stdio MCP server",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session.FromEnv()
			if err != nil {
				return err
			}

			startDir, err := os.ReadFile(sess.StartDirectoryPath())
			if err != nil {
				return fmt.Errorf("reading start directory: %w", err)
			}
			doc, err := topology.Load(sess.ConfigPath(), string(startDir))
			if err != nil {
				return err
			}
			resolved, err := topology.Validate(doc)
			if err != nil {
				return err
			}
			inst, ok := resolved.Instances[name]
			if !ok {
				return fmt.Errorf("instance %q not found in session topology", name)
			}

			logger, err := logging.Open(sess.LogPath(), sess.LogJSONPath(), name, instanceID, callingInstance, callingInstanceID)
			if err != nil {
				return err
			}
			defer logger.Close()

			onEvent := func(msg claude.StreamMessage) {
				_ = logger.LogEvent(msg)
			}

			var executor agent.Executor
			switch inst.EffectiveProvider() {
			case topology.ProviderOpenAI:
				executor = openai.New(openai.Config{
					InstanceName:       name,
					InstanceID:         instanceID,
					WorkDir:            directory,
					Model:              model,
					APIVersion:         inst.EffectiveAPIVersion(),
					Temperature:        inst.EffectiveTemperature(),
					BaseURL:            inst.BaseURL,
					APIKeyEnv:          inst.EffectiveOpenAITokenEnv(),
					AppendSystemPrompt: prompt,
					MCPConfigPath:      mcpConfigPath,
					StatePath:          sess.StatePath(instanceID),
					OnEvent:            onEvent,
				})
			default:
				executor = claude.New(claude.Config{
					InstanceName:       name,
					InstanceID:         instanceID,
					WorkDir:            directory,
					ExtraDirs:          addDirs,
					Model:              model,
					AppendSystemPrompt: prompt,
					AllowedTools:       splitCSV(allowedTools),
					DisallowedTools:    splitCSV(disallowedTools),
					MCPConfigPath:      mcpConfigPath,
					Vibe:               vibe,
					StatePath:          sess.StatePath(instanceID),
					Resume:             claudeSessionID,
					OnEvent:            onEvent,
				})
			}
			defer agent.CloseIfCloser(executor)

			_ = state.Save(sess.StatePath(instanceID), state.Record{
				InstanceName:    name,
				InstanceID:      instanceID,
				ClaudeSessionID: claudeSessionID,
				Status:          state.StatusIdle,
			})

			return mcpserver.Serve(mcpserver.ServerContext{
				InstanceName: name,
				Description:  description,
				Executor:     executor,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "instance name")
	cmd.Flags().StringVar(&directory, "directory", "", "instance primary working directory")
	cmd.Flags().StringArrayVar(&addDirs, "add-dir", nil, "additional working directory (repeatable)")
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().StringVar(&prompt, "prompt", "", "instance system prompt")
	cmd.Flags().StringVar(&description, "description", "", "instance description, surfaced in the task tool")
	cmd.Flags().StringVar(&allowedTools, "allowed-tools", "", "comma-separated allowed tools")
	cmd.Flags().StringVar(&disallowedTools, "disallowed-tools", "", "comma-separated disallowed tools")
	cmd.Flags().StringVar(&mcpConfigPath, "mcp-config-path", "", "this instance's own wiring file")
	cmd.Flags().StringVar(&callingInstance, "calling-instance", "", "name of the instance that spawned this process")
	cmd.Flags().StringVar(&callingInstanceID, "calling-instance-id", "", "id of the instance that spawned this process")
	cmd.Flags().StringVar(&instanceID, "instance-id", "", "this instance's id, stable for the session")
	cmd.Flags().StringVar(&claudeSessionID, "claude-session-id", "", "previously captured claude session id to resume")
	cmd.Flags().BoolVar(&vibe, "vibe", false, "skip permission prompts and tool allow-list wiring")

	return cmd
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
