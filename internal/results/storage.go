// Package results manages the shared filesystem area for completed crawl
// artifacts.
package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage roots artifact access at a base directory. Workers write each
// file exactly once before the job is marked completed and the download
// handler only ever reads, so plain file semantics are race-free here.
type Storage struct {
	baseDir string
}

// New validates the base directory, creating it if absent.
func New(baseDir string) (*Storage, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("results directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create results directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat results directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("results path is not a directory")
	}

	testFile := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("results directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Storage{baseDir: baseDir}, nil
}

// BaseDir returns the storage root.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Resolve maps a job's filePath to an absolute path under the base
// directory, rejecting traversal outside it. Absolute paths are accepted
// as-is when already inside the base directory, since workers record
// absolute artifact locations.
func (s *Storage) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(s.baseDir, path)
	}
	cleanBase := filepath.Clean(s.baseDir)
	cleanFull := filepath.Clean(full)
	if cleanFull != cleanBase && !strings.HasPrefix(cleanFull, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes results directory")
	}
	return cleanFull, nil
}

// Open opens an artifact for streaming. The caller owns the returned file.
// A missing file is reported via os.IsNotExist so the handler can answer
// 410 when an artifact was evicted after completion.
func (s *Storage) Open(path string) (*os.File, os.FileInfo, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return nil, nil, fmt.Errorf("stat artifact: %w (close: %v)", err, closeErr)
		}
		return nil, nil, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		closeErr := f.Close()
		if closeErr != nil {
			return nil, nil, fmt.Errorf("artifact path is a directory (close: %v)", closeErr)
		}
		return nil, nil, fmt.Errorf("artifact path is a directory")
	}
	return f, info, nil
}

// Put writes an artifact under the base directory and returns its absolute
// path, suitable for a job's filePath field. Used by the worker side of
// the contract and by tests.
func (s *Storage) Put(_ context.Context, path string, data []byte) (string, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return full, nil
}
