// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd executes a fresh root command with an isolated HOME so a developer's
// own config file never leaks into tests.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := runCmd(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"start", "status", "cards", "execute", "plugin", "executions", "secret", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	out, err := runCmd(t, "--verbose", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--data-dir")
	assert.Contains(t, out, "--verbose")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cardhost dev")
}

func TestStartCommand_MissingConfigFile(t *testing.T) {
	_, err := runCmd(t, "start", "--config", "/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestSubcommandHelp(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"cards", "--help"}, "validate"},
		{[]string{"plugin", "--help"}, "reload"},
		{[]string{"secret", "--help"}, "delete"},
		{[]string{"execute", "--help"}, "--string"},
		{[]string{"executions", "--help"}, "--tool"},
		{[]string{"status", "--help"}, "--address"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			out, err := runCmd(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer

	logger := setupLogging(&buf, "warn", "json", false)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = setupLogging(&buf, "bogus", "text", true)
	logger.Debug("debug line")
	assert.Contains(t, buf.String(), "msg=\"debug line\"")
}
