package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		c, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
name = "testbot"

[log]
level = "debug"

[services]
start_timeout = "3s"

[heartbeat]
interval = "250ms"
`)
		c, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "testbot", c.Name)
		assert.Equal(t, "debug", c.Log.Level)
		assert.Equal(t, 3*time.Second, c.Services.StartTimeout.Duration)
		// unset keys keep their defaults
		assert.Equal(t, 10*time.Second, c.Services.StopTimeout.Duration)
		assert.Equal(t, 250*time.Millisecond, c.Heartbeat.Interval.Duration)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, `name = "from-file"`)
		t.Setenv("LUM_NAME", "from-env")
		t.Setenv("LUM_LOG_LEVEL", "warn")

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", c.Name)
		assert.Equal(t, "warn", c.Log.Level)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		path := writeConfig(t, `surprise = true`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("invalid duration is rejected", func(t *testing.T) {
		path := writeConfig(t, `
[services]
start_timeout = "soon"
`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		path := writeConfig(t, `
[services]
status_buffer = -1
`)
		_, err := Load(path)
		require.Error(t, err)
	})
}
