package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"chat", "persona", "predictions", "verify", "health"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	show, _, err := root.Find([]string{"persona", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", show.Name())
}

func TestPinnedSeed(t *testing.T) {
	opts := &rootOptions{seed: -1}
	assert.Nil(t, opts.pinnedSeed())

	opts.seed = 0
	require.NotNil(t, opts.pinnedSeed())
	assert.InDelta(t, 0, *opts.pinnedSeed(), 0)
}
