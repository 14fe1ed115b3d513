package sessionstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/gov-console/sessionstore"
	"github.com/stretchr/testify/require"
)

func TestWatchFileReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.json")
	slots, err := sessionstore.NewFileSlots(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- sessionstore.WatchFile(ctx, path, func() { changed <- struct{}{} })
	}()

	// give the watcher time to register
	require.Eventually(t, func() bool {
		_ = slots.Put("gov_auth_token", "abc")
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
