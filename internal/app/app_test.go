package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
)

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "wirechat.db")
	cfg.Blob.InMemory = true
	cfg.Blob.PruneInterval = 10 * time.Millisecond

	logger := zerolog.New(nil)
	application, err := New(cfg, &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestNewFailsOnBadDatabasePath(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "wirechat.db")
	cfg.Blob.InMemory = true

	logger := zerolog.New(nil)
	_, err := New(cfg, &logger)
	require.Error(t, err)
}
