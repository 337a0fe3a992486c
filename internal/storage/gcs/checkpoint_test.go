package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

const testBucket = "test-bucket"

// fakeGCS serves just enough of the JSON upload and object read endpoints.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads []string
	fail    bool
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/upload/storage/v1/b/"+testBucket+"/o") {
		name := r.URL.Query().Get("name")
		body, _ := io.ReadAll(r.Body)
		f.uploads = append(f.uploads, name)
		f.objects[name] = body
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":%q,"bucket":%q}`, name, testBucket)
		return
	}
	if r.Method == http.MethodGet {
		for name, body := range f.objects {
			if strings.HasSuffix(r.URL.Path, name) {
				_, _ = w.Write(extractPayload(body))
				return
			}
		}
	}
	http.NotFound(w, r)
}

// extractPayload returns the media part of a multipart upload body, or the body itself.
func extractPayload(body []byte) []byte {
	s := string(body)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return body
	}
	return []byte(s[start : end+1])
}

func newTestStore(t *testing.T, fake *fakeGCS) *CheckpointStore {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	store, err := New(client, Config{Bucket: testBucket, Prefix: "/filings/"})
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &fakeGCS{objects: map[string][]byte{}})
	assert.Equal(t, "filings/2023/01/20230104-filing.json", store.ObjectName(filing.NewDate(2023, time.January, 4)))
}

func TestSaveUploadsCheckpoint(t *testing.T) {
	t.Parallel()

	fake := &fakeGCS{objects: map[string][]byte{}}
	store := newTestStore(t, fake)
	day := filing.NewDate(2023, time.January, 4)

	require.NoError(t, store.Save(context.Background(), day, []filing.Transaction{{Company: "APPLE INC"}}))
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []string{"filings/2023/01/20230104-filing.json"}, fake.uploads)
	assert.Contains(t, string(fake.objects["filings/2023/01/20230104-filing.json"]), `"company":"APPLE INC"`)
}

func TestLoadMissingCheckpoint(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &fakeGCS{objects: map[string][]byte{}})
	_, err := store.Load(context.Background(), filing.NewDate(2023, time.January, 4))
	require.ErrorIs(t, err, filing.ErrCheckpointNotFound)
}

func TestLoadReadsCheckpoint(t *testing.T) {
	t.Parallel()

	fake := &fakeGCS{objects: map[string][]byte{
		"filings/2023/01/20230104-filing.json": []byte(`[{"company":"APPLE INC","form_date":"2023-01-03","trans_date":"2023-01-03"}]`),
	}}
	store := newTestStore(t, fake)
	txs, err := store.Load(context.Background(), filing.NewDate(2023, time.January, 4))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "APPLE INC", txs[0].Company)
}

func TestSaveSurfacesServerErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &fakeGCS{objects: map[string][]byte{}, fail: true})
	err := store.Save(context.Background(), filing.NewDate(2023, time.January, 4), nil)
	require.Error(t, err)
}
