package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCallsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "query.aql")
	require.NoError(t, os.WriteFile(file, []byte("select p from Patient p"), 0o644))

	w, err := New(file, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() error {
			calls.Add(1)
			return errors.New("callback errors are logged")
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond, "initial run")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.aql"), []byte("ignored"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "other files are ignored")

	require.NoError(t, os.WriteFile(file, []byte("select v from Visit v"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewDefaults(t *testing.T) {
	w, err := New("q.aql", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.True(t, filepath.IsAbs(w.path))
}

func TestRunMissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "gone", "q.aql"), time.Millisecond)
	require.NoError(t, err)
	err = w.Run(context.Background(), func() error { return nil })
	assert.Error(t, err)
}
