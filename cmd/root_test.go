package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardentracker/gardentracker/internal/buildinfo"
	"github.com/gardentracker/gardentracker/internal/conf"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := RootCommand(conf.DefaultSettings(), buildinfo.NewContext("1.0.0", ""))

	for _, name := range []string{"serve", "migrate", "ocr-batch", "config"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommandRejectsInvalidLogLevel(t *testing.T) {
	settings := conf.DefaultSettings()
	root := RootCommand(settings, nil)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "loud", "migrate"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
