// Package ingest loads parsed transactions into the relational store,
// resolving issuers, owners and forms to surrogate ids and skipping
// transactions that are already present.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// DefaultConcurrency is the number of records ingested at once.
const DefaultConcurrency = 10

// Summary tallies one Ingest call.
type Summary struct {
	Total      int
	Inserted   int
	Duplicates int
	Failed     int
	Dur        time.Duration
}

// Ingestor writes transactions through a filing.Store. Its caches live as
// long as the Ingestor, which is one per process.
type Ingestor struct {
	store       filing.Store
	concurrency int
	logger      *zap.Logger

	issuers     *Resolver[filing.Issuer]
	individuals *Resolver[filing.Individual]
	forms       *Resolver[filing.Form]

	// txMu serialises the find-then-insert of the transaction step.
	txMu sync.Mutex
}

// New builds an Ingestor. concurrency <= 0 selects DefaultConcurrency.
func New(store filing.Store, concurrency int, logger *zap.Logger) *Ingestor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:       store,
		concurrency: concurrency,
		logger:      logger.Named("ingest"),
		issuers: NewResolver("issuer",
			func(ctx context.Context, s filing.Session, cik string) (int64, error) { return s.FindIssuer(ctx, cik) },
			func(ctx context.Context, s filing.Session, v filing.Issuer) (int64, error) {
				return s.CreateIssuer(ctx, v)
			}),
		individuals: NewResolver("individual",
			func(ctx context.Context, s filing.Session, cik string) (int64, error) {
				return s.FindIndividual(ctx, cik)
			},
			func(ctx context.Context, s filing.Session, v filing.Individual) (int64, error) {
				return s.CreateIndividual(ctx, v)
			}),
		forms: NewResolver("form",
			func(ctx context.Context, s filing.Session, accessNo string) (int64, error) {
				return s.FindForm(ctx, accessNo)
			},
			func(ctx context.Context, s filing.Session, v filing.Form) (int64, error) { return s.CreateForm(ctx, v) }),
	}
}

type result int

const (
	resultInserted result = iota
	resultDuplicate
	resultFailed
)

// Ingest stores every record. A record that fails is logged and counted; it
// never stops the others.
func (in *Ingestor) Ingest(ctx context.Context, txs []filing.Transaction) Summary {
	start := time.Now()
	total := len(txs)
	var inserted, duplicates, failed, done atomic.Int64

	var g errgroup.Group
	g.SetLimit(in.concurrency)
	for _, tx := range txs {
		g.Go(func() error {
			res, err := in.ingestOne(ctx, tx)
			n := done.Add(1)
			switch res {
			case resultInserted:
				inserted.Add(1)
				in.logger.Info("insert",
					zap.String("progress", fmt.Sprintf("%d/%d", n, total)),
					zap.String("access_no", tx.AccessNo))
			case resultDuplicate:
				duplicates.Add(1)
			case resultFailed:
				failed.Add(1)
				in.logger.Warn("ingest record failed",
					zap.String("access_no", tx.AccessNo),
					zap.String("owner_cik", tx.OwnerCIK),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{
		Total:      total,
		Inserted:   int(inserted.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(failed.Load()),
		Dur:        time.Since(start),
	}
	in.logger.Info("ingest finished",
		zap.Int("total", s.Total),
		zap.Int("inserted", s.Inserted),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("failed", s.Failed),
		zap.Duration("dur", s.Dur))
	return s
}

func (in *Ingestor) ingestOne(ctx context.Context, tx filing.Transaction) (result, error) {
	session, err := in.store.Acquire(ctx)
	if err != nil {
		return resultFailed, fmt.Errorf("acquire session: %w", err)
	}
	defer session.Release()

	issuerID, err := in.issuers.Resolve(ctx, session, tx.CompanyCIK, filing.Issuer{
		CIK:    tx.CompanyCIK,
		Name:   tx.Company,
		Symbol: tx.Symbol,
	})
	if err != nil {
		return resultFailed, err
	}
	first, last := SplitName(tx.Owner)
	individualID, err := in.individuals.Resolve(ctx, session, tx.OwnerCIK, filing.Individual{
		CIK:       tx.OwnerCIK,
		FullName:  tx.Owner,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return resultFailed, err
	}
	formID, err := in.forms.Resolve(ctx, session, tx.AccessNo, filing.Form{
		IssuerID:     issuerID,
		DateReported: tx.FormDate,
		FormType:     tx.FormType,
		URL:          tx.FormURL,
		AccessNo:     tx.AccessNo,
	})
	if err != nil {
		return resultFailed, err
	}

	row := filing.TransactionRow{
		FormID:        formID,
		IssuerID:      issuerID,
		IndividualID:  individualID,
		DateReported:  tx.TransDate,
		ActionCode:    tx.ActionCode,
		OwnershipCode: tx.OwnershipCode,
		TransCode:     tx.TransCode,
		SharesBalance: tx.SharesOwned,
		SharesTraded:  tx.SharesTraded,
		AvgPrice:      tx.AvgPrice,
		Amount:        tx.Amount,
		Relationships: tx.RelationshipCodes(),
	}
	return in.storeTransaction(ctx, session, row)
}

func (in *Ingestor) storeTransaction(ctx context.Context, s filing.Session, row filing.TransactionRow) (result, error) {
	in.txMu.Lock()
	defer in.txMu.Unlock()

	_, err := s.FindTransaction(ctx, row.Key())
	switch {
	case err == nil:
		return resultDuplicate, nil
	case !errors.Is(err, filing.ErrNotFound):
		return resultFailed, fmt.Errorf("find transaction: %w", err)
	}
	if _, err := s.CreateTransaction(ctx, row); err != nil {
		return resultFailed, fmt.Errorf("create transaction: %w", err)
	}
	return resultInserted, nil
}

// SplitName splits an owner name into first and last name: the last token is
// the last name and the tokens before it the first name. Names with fewer than
// two tokens yield nil for both.
func SplitName(full string) (first, last *string) {
	tokens := strings.Fields(full)
	if len(tokens) < 2 {
		return nil, nil
	}
	f := strings.Join(tokens[:len(tokens)-1], " ")
	l := tokens[len(tokens)-1]
	return &f, &l
}
