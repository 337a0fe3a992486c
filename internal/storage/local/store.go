// Package local keeps day checkpoints and the failure log on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// FailureLogName is the failure log file name under the base directory.
const FailureLogName = "failed.txt"

// Config captures the parameters for the local store.
type Config struct {
	// Dir is the root directory; checkpoints live at <Dir>/<YYYY>/<MM>/<YYYYMMDD>-filing.json.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Store implements filing.CheckpointStore and filing.FailureLog on disk.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New validates that dir exists (creating it if needed) and is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat checkpoint directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("checkpoint path %s is not a directory", cfg.Dir)
	}

	probe, err := os.CreateTemp(cfg.Dir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("checkpoint directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("remove write probe: %w", err)
	}
	return &Store{dir: cfg.Dir}, nil
}

// Path returns the checkpoint file path for day.
func (s *Store) Path(day filing.Date) string {
	return filepath.Join(s.dir, filepath.FromSlash(filing.CheckpointKey(day)))
}

// Load reads and decodes the checkpoint for day.
func (s *Store) Load(_ context.Context, day filing.Date) ([]filing.Transaction, error) {
	raw, err := os.ReadFile(s.Path(day))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, filing.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return filing.DecodeCheckpoint(raw)
}

// Save writes the checkpoint through a temp file and rename, so a crash never
// leaves a truncated checkpoint behind.
func (s *Store) Save(_ context.Context, day filing.Date, txs []filing.Transaction) error {
	raw, err := filing.EncodeCheckpoint(txs)
	if err != nil {
		return err
	}
	target := s.Path(day)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Append adds path as one line of the failure log.
func (s *Store) Append(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(s.dir, FailureLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	if _, err := f.WriteString(path + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append failure log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close failure log: %w", err)
	}
	return nil
}
