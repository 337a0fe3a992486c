package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Crawl stages.
const (
	StageDayStart    Stage = "DAY_START"
	StageDayDeferred Stage = "DAY_DEFERRED"
	StageDaySkipped  Stage = "DAY_SKIPPED"
	StageDayResumed  Stage = "DAY_RESUMED"
	StageFetchBatch  Stage = "FETCH_BATCH"
	StageFetchFailed Stage = "FETCH_FAILED"
	StageIngestDone  Stage = "INGEST_DONE"
	StageDayDone     Stage = "DAY_DONE"
	StageDayError    Stage = "DAY_ERROR"
)

// Event captures one crawl milestone.
type Event struct {
	// RunID identifies the process run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Day is the crawl date the event belongs to.
	Day filing.Date
	// URL is set on FETCH_FAILED.
	URL string
	// Batch is the zero-based batch index on FETCH_BATCH and Total the
	// number of batches in the day.
	Batch int
	Total int
	// Count is the number of documents (FETCH_BATCH) or transactions (other stages).
	Count      int
	Inserted   int
	Duplicates int
	Failed     int
	Dur        time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Day.IsZero() {
		return errors.New("day is required")
	}
	switch e.Stage {
	case StageDayStart, StageDayDeferred, StageDaySkipped, StageDayResumed,
		StageFetchBatch, StageIngestDone, StageDayDone, StageDayError:
	case StageFetchFailed:
		if e.URL == "" {
			return errors.New("fetch failure requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
