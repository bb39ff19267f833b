// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package main

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestRoot returns a root command isolated from the host config and with
// the simulated verification delay disabled.
func newTestRoot(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TELLERLINE_SECURITY__VERIFICATION_LATENCY_MILLIS", "0")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	return cmd, out, errOut
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd, out, _ := newTestRoot(t, "--help")

	require.NoError(t, cmd.Execute())

	for _, sub := range []string{"login", "status", "config"} {
		assert.Contains(t, out.String(), sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd, out, _ := newTestRoot(t, "--help")

	require.NoError(t, cmd.Execute())

	for flag := range flagKeys {
		assert.Contains(t, out.String(), "--"+flag)
	}
	assert.Contains(t, out.String(), "--config")
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/tellerline.yaml", "--help"},
			wantFlag: "/etc/tellerline.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, _ := newTestRoot(t, tt.args...)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestConfigPath_FallsBackToXDG(t *testing.T) {
	configFile = ""
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Empty(t, configPath(), "missing default file is skipped")

	configFile = "/explicit.yaml"
	t.Cleanup(func() { configFile = "" })
	assert.Equal(t, "/explicit.yaml", configPath())
}
