package local_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "filings")
		_, err := local.New(local.Config{Dir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
	t.Run("MissingDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})
	t.Run("NotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{Dir: file})
		assert.Error(t, err)
	})
}

func TestCheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)
	day := filing.NewDate(2023, time.January, 4)

	_, err = store.Load(ctx, day)
	require.ErrorIs(t, err, filing.ErrCheckpointNotFound)

	txs := []filing.Transaction{{
		FormDate:      day,
		TransDate:     day,
		Company:       "APPLE INC",
		Relationships: []filing.Relationship{filing.RelationshipOfficer},
		SharesTraded:  100,
		AvgPrice:      12.5,
		Amount:        1250,
	}}
	require.NoError(t, store.Save(ctx, day, txs))
	assert.FileExists(t, filepath.Join(dir, "2023", "01", "20230104-filing.json"))

	got, err := store.Load(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, txs, got)

	entries, err := os.ReadDir(filepath.Join(dir, "2023", "01"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckpointCorrupt(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	day := filing.NewDate(2023, time.January, 5)
	path := store.Path(day)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(`[{"form_date":`), 0o600))

	_, err = store.Load(context.Background(), day)
	require.ErrorIs(t, err, filing.ErrCheckpointCorrupt)
}

func TestFailureLogAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append("edgar/data/1/0001.txt"))
		}()
	}
	wg.Wait()

	raw, err := os.ReadFile(filepath.Join(dir, local.FailureLogName))
	require.NoError(t, err)
	lines := 0
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 10, lines)
}
