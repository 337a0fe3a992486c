package filing

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns its body. Non-2xx answers are reported
// as *StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a fixed duration.
type Sleeper interface {
	Sleep(d time.Duration)
}

// CheckpointStore persists the transactions fetched for a day.
type CheckpointStore interface {
	// Load returns ErrCheckpointNotFound when no checkpoint exists and
	// ErrCheckpointCorrupt when one exists but cannot be decoded.
	Load(ctx context.Context, day Date) ([]Transaction, error)
	Save(ctx context.Context, day Date, txs []Transaction) error
}

// FailureLog records the relative path of every document that failed.
type FailureLog interface {
	Append(path string) error
}

// Store hands out storage sessions, one per logical unit of work.
type Store interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is a storage unit of work. Find methods return ErrNotFound on a miss.
type Session interface {
	FindIssuer(ctx context.Context, cik string) (int64, error)
	CreateIssuer(ctx context.Context, issuer Issuer) (int64, error)
	FindIndividual(ctx context.Context, cik string) (int64, error)
	CreateIndividual(ctx context.Context, individual Individual) (int64, error)
	FindForm(ctx context.Context, accessNo string) (int64, error)
	CreateForm(ctx context.Context, form Form) (int64, error)
	FindTransaction(ctx context.Context, key TransactionKey) (int64, error)
	CreateTransaction(ctx context.Context, row TransactionRow) (int64, error)
	Release()
}

// Publisher pushes day-completion notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}
