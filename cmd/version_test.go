package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd_PrintsBinaryNameAndVersion(t *testing.T) {
	SetBuildInfo("9.9.9", "deadbeef", "2026-07-30")

	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	if cmd.RunE != nil {
		t.Fatal("expected newVersionCmd to use Run, not RunE")
	}
	cmd.Run(cmd, nil)

	out := buf.String()
	if !strings.Contains(out, "swarm version 9.9.9") {
		t.Errorf("version output = %q, missing expected version line", out)
	}
	if !strings.Contains(out, "deadbeef") {
		t.Errorf("version output = %q, missing commit sha", out)
	}
}
