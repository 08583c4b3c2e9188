package topology

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "swarm.yml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestValidate_CycleDetection(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "d"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, `
version: 1
swarm:
  name: test
  main: lead
  instances:
    lead:
      description: lead agent
      directory: ./d
      connections: [worker]
    worker:
      description: worker agent
      directory: ./d
      connections: [lead]
`)

	doc, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = Validate(doc)
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	want := "Circular dependency detected: lead -> worker -> lead"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestValidate_MissingConnection(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "d"), 0o755)
	path := writeConfig(t, dir, `
version: 1
swarm:
  name: test
  main: lead
  instances:
    lead:
      description: lead agent
      directory: ./d
      connections: [ghost]
`)
	doc, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Validate(doc); err == nil {
		t.Fatal("expected error for missing connection target")
	}
}

func TestValidate_DirectoryMustExist(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
version: 1
swarm:
  name: test
  main: lead
  instances:
    lead:
      description: lead agent
      directory: ./does-not-exist
`)
	doc, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Validate(doc); err == nil {
		t.Fatal("expected error for nonexistent directory")
	}
}

func TestValidate_ToolListMustBeArray(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "d"), 0o755)
	path := writeConfig(t, dir, `
version: 1
swarm:
  name: test
  main: lead
  instances:
    lead:
      description: lead agent
      directory: ./d
      allowed_tools: "Read"
`)
	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected parse error for scalar allowed_tools")
	}
}

func TestValidate_OpenAIRequiresAPIKeyEnv(t *testing.T) {
	os.Unsetenv("OPENAI_API_KEY")
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "d"), 0o755)
	path := writeConfig(t, dir, `
version: 1
swarm:
  name: test
  main: lead
  instances:
    lead:
      description: lead agent
      directory: ./d
      provider: openai
`)
	doc, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = Validate(doc)
	if err == nil {
		t.Fatal("expected ConfigError for missing OPENAI_API_KEY")
	}
	want := "Environment variable 'OPENAI_API_KEY' is not set. OpenAI provider instances require an API key."
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestValidate_Success(t *testing.T) {
	dir := t.TempDir()
	backendDir := filepath.Join(dir, "backend")
	os.Mkdir(backendDir, 0o755)
	leadDir := filepath.Join(dir, "lead")
	os.Mkdir(leadDir, 0o755)

	path := writeConfig(t, dir, `
version: 1
swarm:
  name: test
  main: lead
  instances:
    lead:
      description: lead agent
      directory: ./lead
      connections: [backend]
      allowed_tools: [Read, Edit]
    backend:
      description: You are a backend dev
      directory: ./backend
      allowed_tools: [Bash, Grep]
      prompt: "You are a backend dev"
      model: sonnet
`)
	doc, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	resolved, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lead := resolved.Instances["lead"]
	if lead.Directory != leadDir {
		t.Errorf("lead.Directory = %q, want %q", lead.Directory, leadDir)
	}
	backend := resolved.Instances["backend"]
	if backend.Model != "sonnet" {
		t.Errorf("backend.Model = %q", backend.Model)
	}
	if got := backend.AllowedToolNames(); len(got) != 2 || got[0] != "Bash" || got[1] != "Grep" {
		t.Errorf("backend.AllowedToolNames() = %v", got)
	}
}

func TestInstance_ToolsAlias(t *testing.T) {
	inst := Instance{Tools: []string{"Bash"}}
	if got := inst.AllowedToolNames(); len(got) != 1 || got[0] != "Bash" {
		t.Errorf("AllowedToolNames() = %v", got)
	}
}

func TestInstance_VibeDefaults(t *testing.T) {
	claude := Instance{Provider: ProviderClaude}
	if claude.IsVibe() {
		t.Error("claude instance should default to vibe=false")
	}
	openai := Instance{Provider: ProviderOpenAI}
	if !openai.IsVibe() {
		t.Error("openai instance should default to vibe=true")
	}
}

func TestInstance_WorktreeSetting(t *testing.T) {
	cases := []struct {
		raw  any
		want WorktreeSpec
	}{
		{nil, WorktreeSpec{Enabled: false}},
		{false, WorktreeSpec{Enabled: false}},
		{true, WorktreeSpec{Enabled: true}},
		{"custom-name", WorktreeSpec{Enabled: true, Name: "custom-name"}},
	}
	for _, c := range cases {
		inst := Instance{Worktree: c.raw}
		got := inst.WorktreeSetting()
		if got != c.want {
			t.Errorf("WorktreeSetting(%v) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}
