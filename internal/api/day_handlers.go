package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

const (
	defaultDayLimit = 50
	maxDayLimit     = 500
	dayTimeout      = 3 * time.Second
)

// DayHandler exposes read-only crawl day outcomes.
type DayHandler struct {
	repo    store.RunRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewDayHandler wires the repository and logger.
func NewDayHandler(repo store.RunRepository, logger *zap.Logger) *DayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayHandler{
		repo:    repo,
		timeout: dayTimeout,
		logger:  logger.Named("days"),
	}
}

// ListDays handles GET /v1/days?limit=&offset=. It returns {"days": [...]}
// newest first, 400 for bad paging, 503 without a repository and 500 when
// the repository fails.
func (h *DayHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultDayLimit, maxDayLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	days, err := h.repo.ListDays(ctx, limit, offset)
	if err != nil {
		h.logger.Error("list days failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list days")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": toDayDTOs(days)})
}

// GetDay handles GET /v1/days/{day} where day is YYYY-MM-DD.
func (h *DayHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	day, err := filing.ParseDate(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid day")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetDay(ctx, day)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "day not found")
			return
		}
		h.logger.Error("get day failed", zap.Stringer("day", day), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load day")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": toDayDTO(run)})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

type dayDTO struct {
	Day           filing.Date `json:"day"`
	RunID         string      `json:"run_id"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    *time.Time  `json:"finished_at,omitempty"`
	Status        string      `json:"status"`
	Transactions  int         `json:"transactions"`
	Inserted      int         `json:"inserted"`
	Duplicates    int         `json:"duplicates"`
	Failed        int         `json:"failed"`
	FetchFailures int         `json:"fetch_failures"`
	Error         *string     `json:"error,omitempty"`
}

func toDayDTOs(in []store.DayRun) []dayDTO {
	out := make([]dayDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toDayDTO(run))
	}
	return out
}

func toDayDTO(run store.DayRun) dayDTO {
	return dayDTO{
		Day:           run.Day,
		RunID:         run.RunID.String(),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		Status:        string(run.Status),
		Transactions:  run.Transactions,
		Inserted:      run.Inserted,
		Duplicates:    run.Duplicates,
		Failed:        run.Failed,
		FetchFailures: run.FetchFailures,
		Error:         run.ErrorMessage,
	}
}
