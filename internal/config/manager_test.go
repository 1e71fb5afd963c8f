package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestManagerLoadAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_file": "/tmp/x.log"}`), 0600))

	m := NewManager()
	var seen []*Config
	m.AddWatcher(func(c *Config) { seen = append(seen, c) })
	require.NoError(t, m.LoadFromFile(path))
	assert.Equal(t, "/tmp/x.log", m.GetConfig().LogFile)
	require.Len(t, seen, 1)

	// returned configs are copies
	m.GetConfig().Policy.AllowedSchemes[0] = "ftp"
	assert.Equal(t, "http", m.GetConfig().Policy.AllowedSchemes[0])

	bad := DefaultConfig()
	bad.Layout.CharWidth = -1
	assert.Error(t, m.UpdateConfig(bad))
	bad = DefaultConfig()
	bad.Images.Timeout = "later"
	assert.Error(t, m.UpdateConfig(bad))
	assert.Error(t, m.UpdateConfig(nil))

	out := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, m.SaveToFile(out))
	assert.FileExists(t, out)
}

func TestManagerApplyDefaults(t *testing.T) {
	m := NewManager()
	cfg := &Config{}
	require.NoError(t, m.UpdateConfig(cfg))
	got := m.GetConfig()
	assert.Equal(t, DefaultConfig().Layout, got.Layout)
	assert.Equal(t, DefaultConfig().Policy.AllowedSchemes, got.Policy.AllowedSchemes)
	assert.NotNil(t, got.Colors)
}

func TestManagerWatchReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_file": "a"}`), 0600))

	m := NewManager()
	m.interval = 10 * time.Millisecond
	assert.Error(t, m.Watch(context.Background()), "no path yet")
	require.NoError(t, m.LoadFromFile(path))

	reloaded := make(chan string, 4)
	m.AddWatcher(func(c *Config) { reloaded <- c.LogFile })
	require.NoError(t, m.Watch(context.Background()))
	assert.Error(t, m.Watch(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte(`{"log_file": "b"}`), 0600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case got := <-reloaded:
		assert.Equal(t, "b", got)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	m.StopWatching()
}
