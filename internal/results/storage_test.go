package results

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "artifacts")
	s, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, dir, s.BaseDir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRejectsBlankAndFilePaths(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = New(file)
	require.Error(t, err)
}

func TestPutThenOpenRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	payload := []byte(`{"title":"hello"}`)
	full, err := s.Put(context.Background(), "job-1/result.json", payload)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(full))

	f, info, err := s.Open(full)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only handle

	require.Equal(t, int64(len(payload)), info.Size())
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestOpenMissingFileIsNotExist(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Open("job-9/result.json")
	require.True(t, os.IsNotExist(err), "expected IsNotExist, got %v", err)
}

func TestResolveBlocksTraversal(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Resolve("../outside.txt")
	require.Error(t, err)

	_, err = s.Resolve("/etc/passwd")
	require.Error(t, err)
}

func TestConcurrentReadsOfSameFile(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	payload := []byte("shared artifact body")
	full, err := s.Put(context.Background(), "job-2/result.json", payload)
	require.NoError(t, err)

	done := make(chan []byte, 4)
	for i := 0; i < 4; i++ {
		go func() {
			f, _, err := s.Open(full)
			if err != nil {
				done <- nil
				return
			}
			defer f.Close() //nolint:errcheck // read-only handle
			b, _ := io.ReadAll(f)
			done <- b
		}()
	}
	for i := 0; i < 4; i++ {
		require.Equal(t, payload, <-done, "each concurrent reader must see an uncorrupted stream")
	}
}
