package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "recordkit" {
		t.Errorf("expected Use to be 'recordkit', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	expectedCommands := []string{"version", "ping", "tables", "inspect"}
	for _, expected := range expectedCommands {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	for _, flag := range []string{"config", "no-color"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--no-color"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, want := range []string{"recordkit version: 1.0.0-test", "Git commit: abc123", "Go version: go1.23"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
}
