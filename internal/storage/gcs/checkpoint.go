// Package gcs stores day checkpoints in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// Config captures the bucket location.
type Config struct {
	Bucket string
	// Prefix is prepended to every object key (default "filings").
	Prefix string
}

// CheckpointStore implements filing.CheckpointStore on a GCS bucket using the
// same key layout as the local store.
type CheckpointStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed checkpoint store.
func New(client *storage.Client, cfg Config) (*CheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &CheckpointStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectName returns the object key of day's checkpoint.
func (s *CheckpointStore) ObjectName(day filing.Date) string {
	return path.Join(s.prefix, filing.CheckpointKey(day))
}

// Load downloads and decodes the checkpoint for day.
func (s *CheckpointStore) Load(ctx context.Context, day filing.Date) ([]filing.Transaction, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.ObjectName(day)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, filing.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint object: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint object: %w", err)
	}
	return filing.DecodeCheckpoint(raw)
}

// Save uploads the encoded checkpoint for day.
func (s *CheckpointStore) Save(ctx context.Context, day filing.Date, txs []filing.Transaction) error {
	raw, err := filing.EncodeCheckpoint(txs)
	if err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(s.ObjectName(day)).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(raw); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write checkpoint object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write checkpoint object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close checkpoint writer: %w", err)
	}
	return nil
}
