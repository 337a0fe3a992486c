// Package memory keeps crawl state in process memory for dry runs and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/report"
)

// Store is an in-memory filing.Store with auto-increment ids.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	issuers     map[string]filing.Issuer
	individuals map[string]filing.Individual
	forms       map[string]filing.Form
	txs         map[filing.TransactionKey]filing.TransactionRow

	// AcquireErr, when set, is returned by Acquire.
	AcquireErr error

	open    atomic.Int64
	creates sync.Map
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		issuers:     make(map[string]filing.Issuer),
		individuals: make(map[string]filing.Individual),
		forms:       make(map[string]filing.Form),
		txs:         make(map[filing.TransactionKey]filing.TransactionRow),
	}
}

// Acquire hands out a session over the shared tables.
func (s *Store) Acquire(context.Context) (filing.Session, error) {
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	s.open.Add(1)
	return &session{store: s}, nil
}

// OpenSessions reports sessions acquired and not yet released.
func (s *Store) OpenSessions() int {
	return int(s.open.Load())
}

// Creates reports how many inserts hit the named table.
func (s *Store) Creates(table string) int {
	v, ok := s.creates.Load(table)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int64).Load())
}

// Transactions returns the stored transaction rows ordered by id.
func (s *Store) Transactions() []filing.TransactionRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filing.TransactionRow, 0, len(s.txs))
	for _, row := range s.txs {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Records implements report.Source by joining the in-memory tables.
func (s *Store) Records(_ context.Context, since filing.Date) ([]report.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	formsByID := make(map[int64]filing.Form, len(s.forms))
	for _, f := range s.forms {
		formsByID[f.ID] = f
	}
	issuersByID := make(map[int64]filing.Issuer, len(s.issuers))
	for _, i := range s.issuers {
		issuersByID[i.ID] = i
	}
	ownersByID := make(map[int64]filing.Individual, len(s.individuals))
	for _, i := range s.individuals {
		ownersByID[i.ID] = i
	}

	var out []report.Record
	for _, row := range s.txs {
		form, ok := formsByID[row.FormID]
		if !ok || !form.DateReported.After(since) {
			continue
		}
		out = append(out, report.Record{
			FormDate:   form.DateReported,
			Name:       ownersByID[row.IndividualID].FullName,
			Symbol:     issuersByID[form.IssuerID].Symbol,
			ActionCode: row.ActionCode,
			Amount:     decimal.NewFromFloat(row.Amount),
			AvgPrice:   decimal.NewFromFloat(row.AvgPrice),
		})
	}
	return out, nil
}

func (s *Store) countCreate(table string) {
	v, _ := s.creates.LoadOrStore(table, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

type session struct {
	store    *Store
	released atomic.Bool
}

var errReleased = errors.New("session released")

func (x *session) check() error {
	if x.released.Load() {
		return errReleased
	}
	return nil
}

func (x *session) FindIssuer(_ context.Context, cik string) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.RLock()
	defer x.store.mu.RUnlock()
	if row, ok := x.store.issuers[cik]; ok {
		return row.ID, nil
	}
	return 0, filing.ErrNotFound
}

func (x *session) CreateIssuer(_ context.Context, issuer filing.Issuer) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.Lock()
	defer x.store.mu.Unlock()
	x.store.nextID++
	issuer.ID = x.store.nextID
	x.store.issuers[issuer.CIK] = issuer
	x.store.countCreate("issuer")
	return issuer.ID, nil
}

func (x *session) FindIndividual(_ context.Context, cik string) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.RLock()
	defer x.store.mu.RUnlock()
	if row, ok := x.store.individuals[cik]; ok {
		return row.ID, nil
	}
	return 0, filing.ErrNotFound
}

func (x *session) CreateIndividual(_ context.Context, individual filing.Individual) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.Lock()
	defer x.store.mu.Unlock()
	x.store.nextID++
	individual.ID = x.store.nextID
	x.store.individuals[individual.CIK] = individual
	x.store.countCreate("individual")
	return individual.ID, nil
}

func (x *session) FindForm(_ context.Context, accessNo string) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.RLock()
	defer x.store.mu.RUnlock()
	if row, ok := x.store.forms[accessNo]; ok {
		return row.ID, nil
	}
	return 0, filing.ErrNotFound
}

func (x *session) CreateForm(_ context.Context, form filing.Form) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.Lock()
	defer x.store.mu.Unlock()
	x.store.nextID++
	form.ID = x.store.nextID
	x.store.forms[form.AccessNo] = form
	x.store.countCreate("form")
	return form.ID, nil
}

func (x *session) FindTransaction(_ context.Context, key filing.TransactionKey) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.RLock()
	defer x.store.mu.RUnlock()
	if row, ok := x.store.txs[key]; ok {
		return row.ID, nil
	}
	return 0, filing.ErrNotFound
}

func (x *session) CreateTransaction(_ context.Context, row filing.TransactionRow) (int64, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	x.store.mu.Lock()
	defer x.store.mu.Unlock()
	x.store.nextID++
	row.ID = x.store.nextID
	row.Relationships = append([]int32(nil), row.Relationships...)
	x.store.txs[row.Key()] = row
	x.store.countCreate("non_deriv_transaction")
	return row.ID, nil
}

func (x *session) Release() {
	if x.released.CompareAndSwap(false, true) {
		x.store.open.Add(-1)
	}
}
