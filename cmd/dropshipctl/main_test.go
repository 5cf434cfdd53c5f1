package main

import (
	"bytes"
	"testing"

	"github.com/dropship/backend/internal/bootstrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Tree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"sync"},
		{"reprice"},
		{"stock"},
		{"poll"},
		{"reviews"},
		{"jobs", "list"},
		{"jobs", "run"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"migrate", "force"},
		{"migrate", "list"},
		{"migrate", "create"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestSyncCommand_Flags(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"sync"})
	require.NoError(t, err)

	require.NoError(t, cmd.ParseFlags([]string{"--category", "c-1", "--max-pages", "3", "--resync"}))
	assert.Equal(t, "c-1", cmd.Flags().Lookup("category").Value.String())
	assert.Equal(t, "3", cmd.Flags().Lookup("max-pages").Value.String())
	assert.Equal(t, "true", cmd.Flags().Lookup("resync").Value.String())
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, bootstrap.Version+"\n", out.String())
}

func TestJobsRun_RequiresName(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"jobs", "run"})
	require.NoError(t, err)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{bootstrap.JobTracking}))
}
