package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"simbridge/internal/config"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "simbridge" {
		t.Errorf("Expected Use to be 'simbridge', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"serve":   false,
		"stdio":   false,
		"version": false,
	}

	for _, cmd := range rootCmd.Commands() {
		if _, ok := expected[cmd.Name()]; ok {
			expected[cmd.Name()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "configuration error",
			err:      &config.ConfigurationError{Variable: "JWT_SECRET", Reason: "missing"},
			expected: ExitCodeConfig,
		},
		{
			name:     "wrapped configuration error",
			err:      errors.Join(errors.New("startup failed"), &config.ConfigurationError{Variable: "GITHUB_CLIENT_ID"}),
			expected: ExitCodeConfig,
		},
		{
			name:     "generic error",
			err:      errors.New("something broke"),
			expected: ExitCodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.expected {
				t.Errorf("Expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestVersionCommandOutput(t *testing.T) {
	SetVersion("9.9.9")

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if !strings.Contains(out.String(), "simbridge version 9.9.9") {
		t.Errorf("Unexpected version output: %q", out.String())
	}
}
