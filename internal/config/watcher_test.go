package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsAfterWriteBurst(t *testing.T) {
	path := writeConfigFile(t, "name: before\n")

	reloaded := make(chan *Config, 4)

	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	}, WatcherConfig{DebounceDuration: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	// Several quick writes must settle into one reload with the final
	// content.
	require.NoError(t, os.WriteFile(path, []byte("name: middle\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("name: after\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "after", cfg.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered")
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected second reload: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: vito\n"), 0644))

	reloaded := make(chan *Config, 1)

	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	}, WatcherConfig{DebounceDuration: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("name: nope\n"), 0644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("reload triggered by a sibling file: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherKeepsRunningOnBrokenEdit(t *testing.T) {
	path := writeConfigFile(t, "name: before\n")

	reloaded := make(chan *Config, 4)

	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	}, WatcherConfig{DebounceDuration: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml at all ["), 0644))

	select {
	case err := <-w.Errors():
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("broken edit reported no error")
	}

	require.NoError(t, os.WriteFile(path, []byte("name: recovered\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "recovered", cfg.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not recover after a broken edit")
	}
}

func TestWatcherInvalidDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "config.yaml"), func(*Config) {}, WatcherConfig{})
	assert.Error(t, err)
}
