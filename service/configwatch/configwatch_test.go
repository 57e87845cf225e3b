package configwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitt3120/lum/config"
	"github.com/Kitt3120/lum/service"
)

func TestConfigWatch(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "before"`), 0o644))

	s := New(path, service.Optional)
	m := service.NewBuilder().With(s).Build()

	reloads := make(chan *config.Config, 4)
	s.OnReload.Subscribe("test", func(cfg *config.Config) error {
		select {
		case reloads <- cfg:
		default:
		}
		return nil
	}, false)

	require.NoError(t, m.StartService(ctx, s))

	require.NoError(t, os.WriteFile(path, []byte(`name = "after"`), 0o644))

	select {
	case cfg := <-reloads:
		assert.Equal(t, "after", cfg.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload was not observed")
	}

	require.NoError(t, m.StopService(ctx, s))
	assert.Equal(t, service.Stopped, s.Info().Status.Get())
}
