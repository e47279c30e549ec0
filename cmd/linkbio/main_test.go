package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "linkbio dev")
}

func TestMigrateCommand_SQLite(t *testing.T) {
	t.Setenv("LINKBIO_DB_PATH", filepath.Join(t.TempDir(), "nested", "linkbio.db"))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "none.toml")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "schema is up to date")
}

func TestMigrateCommand_InvalidConfig(t *testing.T) {
	t.Setenv("LINKBIO_DB_DRIVER", "mongo")

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "none.toml")})
	assert.Error(t, cmd.Execute())
}
