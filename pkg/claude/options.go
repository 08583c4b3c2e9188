package claude

import "strings"

// Options configures one Claude CLI subprocess invocation.
type Options struct {
	// Model selects the Claude model (e.g. "sonnet", "opus").
	Model string
	// AppendSystemPrompt is appended to the default system prompt, when the
	// instance declares one.
	AppendSystemPrompt string
	// AllowedTools is the instance's allowed_tools already concatenated
	// with one mcp__<peer> entry per outbound connection.
	AllowedTools []string
	// DisallowedTools explicitly blocks specific tools.
	DisallowedTools []string
	// MCPConfigPath is the path to this instance's own wiring file.
	MCPConfigPath string
	// WorkDir is the subprocess's working directory (the instance's
	// primary directory).
	WorkDir string
	// ExtraDirs are appended via --add-dir, for multi-directory instances.
	ExtraDirs []string
	// Vibe forwards --dangerously-skip-permissions when true. It does not
	// clear AllowedTools or DisallowedTools; both are passed as given.
	Vibe bool
	// Resume is a previously captured claude_session_id; empty starts a
	// fresh conversation.
	Resume string
}

// args builds the full CLI argument vector for one invocation, ending with
// the prompt itself as the final positional argument.
func (o Options) args(prompt string) []string {
	var args []string

	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}
	if o.MCPConfigPath != "" {
		args = append(args, "--mcp-config", o.MCPConfigPath)
	}
	if len(o.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(o.AllowedTools, ","))
	}
	if len(o.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(o.DisallowedTools, ","))
	}
	if o.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", o.AppendSystemPrompt)
	}
	if o.Resume != "" {
		args = append(args, "--resume", o.Resume)
	}
	for _, dir := range o.ExtraDirs {
		args = append(args, "--add-dir", dir)
	}
	if o.Vibe {
		args = append(args, "--dangerously-skip-permissions")
	}

	args = append(args, "--output-format", "stream-json", "--verbose", "--print", prompt)
	return args
}

// RootArgs builds the argument vector for the root instance, launched in
// the foreground and attached to the user's terminal. Unlike
// args, it never forces stream-json parsing: an empty prompt starts an
// interactive REPL, and a non-empty prompt runs one non-interactive turn
// via --print with the CLI's own human-readable output.
func (o Options) RootArgs(prompt string) []string {
	var args []string

	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}
	if o.MCPConfigPath != "" {
		args = append(args, "--mcp-config", o.MCPConfigPath)
	}
	if len(o.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(o.AllowedTools, ","))
	}
	if len(o.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(o.DisallowedTools, ","))
	}
	if o.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", o.AppendSystemPrompt)
	}
	if o.Resume != "" {
		args = append(args, "--resume", o.Resume)
	}
	for _, dir := range o.ExtraDirs {
		args = append(args, "--add-dir", dir)
	}
	if o.Vibe {
		args = append(args, "--dangerously-skip-permissions")
	}
	if prompt != "" {
		args = append(args, "--print", prompt)
	}
	return args
}
