package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// CheckpointStore keeps encoded checkpoints keyed by day.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[filing.Date][]byte
}

// NewCheckpointStore constructs an empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{data: make(map[filing.Date][]byte)}
}

// Load decodes the checkpoint for day.
func (s *CheckpointStore) Load(_ context.Context, day filing.Date) ([]filing.Transaction, error) {
	s.mu.RLock()
	raw, ok := s.data[day]
	s.mu.RUnlock()
	if !ok {
		return nil, filing.ErrCheckpointNotFound
	}
	return filing.DecodeCheckpoint(raw)
}

// Save encodes and stores the checkpoint for day.
func (s *CheckpointStore) Save(_ context.Context, day filing.Date, txs []filing.Transaction) error {
	raw, err := filing.EncodeCheckpoint(txs)
	if err != nil {
		return err
	}
	s.Put(day, raw)
	return nil
}

// Put stores raw bytes for day without validation.
func (s *CheckpointStore) Put(day filing.Date, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[day] = append([]byte(nil), raw...)
}

// Has reports whether a checkpoint exists for day.
func (s *CheckpointStore) Has(day filing.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[day]
	return ok
}

// FailureLog collects failed document paths.
type FailureLog struct {
	mu    sync.Mutex
	paths []string
}

// Append records path.
func (l *FailureLog) Append(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
	return nil
}

// Paths returns the recorded paths in append order.
func (l *FailureLog) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}
