package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-collective/careatlas/internal/config"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"refresh", "generate", "serve", "migrate"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRefreshCommandFlags(t *testing.T) {
	f := refreshCmd.Flags().Lookup("once")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)

	require.NotNil(t, refreshCmd.Flags().Lookup("state"))
}

func TestRefreshStatesNarrowedByFlag(t *testing.T) {
	origCfg, origState := cfg, refreshState
	t.Cleanup(func() { cfg, refreshState = origCfg, origState })

	cfg = &config.Config{}
	cfg.Refresh.States = []string{"IN", "IL"}

	refreshState = ""
	assert.Equal(t, []string{"IN", "IL"}, refreshStates())

	refreshState = "MI"
	assert.Equal(t, []string{"MI"}, refreshStates())
}

func TestServeCommandFlags(t *testing.T) {
	require.NotNil(t, serveCmd.Flags().Lookup("port"))
	require.NotNil(t, serveCmd.Flags().Lookup("no-refresh"))
}

func TestGenerateCommandFlags(t *testing.T) {
	f := generateCmd.Flags().Lookup("state")
	require.NotNil(t, f)
	assert.Equal(t, "IN", f.DefValue)
}
