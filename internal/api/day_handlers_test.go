package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/storage/memory"
)

type listDaysBody struct {
	Days []struct {
		Day          string `json:"day"`
		Status       string `json:"status"`
		Transactions int    `json:"transactions"`
		RunID        string `json:"run_id"`
	} `json:"days"`
}

func TestListDaysNewestFirst(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{Days: seededRuns(t)}, nil)
	rec := serve(t, srv, "/v1/days?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body listDaysBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Days, 2)
	assert.Equal(t, "2023-01-05", body.Days[0].Day)
	assert.Equal(t, "2023-01-04", body.Days[1].Day)
	assert.Equal(t, "done", body.Days[0].Status)
	assert.Equal(t, 5, body.Days[0].Transactions)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", body.Days[0].RunID)
}

func TestListDaysOffset(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{Days: seededRuns(t)}, nil)
	rec := serve(t, srv, "/v1/days?offset=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body listDaysBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Days, 1)
	assert.Equal(t, "2023-01-03", body.Days[0].Day)
}

func TestListDaysErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   Options
		target string
		want   int
	}{
		{"bad limit", Options{Days: memory.NewRunStore()}, "/v1/days?limit=zero", http.StatusBadRequest},
		{"negative offset", Options{Days: memory.NewRunStore()}, "/v1/days?offset=-1", http.StatusBadRequest},
		{"no repository", Options{}, "/v1/days", http.StatusServiceUnavailable},
		{"repository failure", Options{Days: failingRepo{memory.NewRunStore()}}, "/v1/days", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, NewServer(tt.opts, nil), tt.target)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetDay(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{Days: seededRuns(t)}, nil)
	rec := serve(t, srv, "/v1/days/2023-01-04")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Day struct {
			Day        string  `json:"day"`
			Inserted   int     `json:"inserted"`
			FinishedAt *string `json:"finished_at"`
		} `json:"day"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2023-01-04", body.Day.Day)
	assert.Equal(t, 4, body.Day.Inserted)
	assert.NotNil(t, body.Day.FinishedAt)
}

func TestGetDayErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   Options
		target string
		want   int
	}{
		{"missing", Options{Days: memory.NewRunStore()}, "/v1/days/2023-01-04", http.StatusNotFound},
		{"malformed", Options{Days: memory.NewRunStore()}, "/v1/days/20230104", http.StatusBadRequest},
		{"repository failure", Options{Days: failingRepo{memory.NewRunStore()}}, "/v1/days/2023-01-04", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, NewServer(tt.opts, nil), tt.target)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
