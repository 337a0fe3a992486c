// Package postgres implements the relational store on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querierCloser interface {
	querier
	Close()
}

// Store implements filing.Store; each session holds one pooled connection.
type Store struct {
	acquire func(ctx context.Context) (querier, func(), error)
	shared  querier
	close   func()
}

// Open connects a pool using cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		acquire: func(ctx context.Context) (querier, func(), error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, nil, err
			}
			return conn, conn.Release, nil
		},
		shared: pool,
		close:  pool.Close,
	}, nil
}

// NewWithPool builds a Store whose sessions all share q (primarily for testing).
func NewWithPool(q querierCloser) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{
		acquire: func(context.Context) (querier, func(), error) { return q, func() {}, nil },
		shared:  q,
		close:   q.Close,
	}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
}

// Ping verifies the database answers a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.shared.Exec(ctx, pingSQL); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Acquire checks a connection out of the pool for one unit of work.
func (s *Store) Acquire(ctx context.Context) (filing.Session, error) {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &session{q: q, release: release}, nil
}

type session struct {
	q       querier
	release func()
}

const (
	pingSQL             = `SELECT 1`
	findIssuerSQL       = `SELECT "IssuerId" FROM issuer WHERE cik = $1`
	createIssuerSQL     = `INSERT INTO issuer ("Name", "Symbol", cik) VALUES ($1, $2, $3) RETURNING "IssuerId"`
	findIndividualSQL   = `SELECT "IndividualId" FROM individual WHERE cik = $1`
	createIndividualSQL = `INSERT INTO individual (cik, "FullName", "FirstName", "LastName") ` +
		`VALUES ($1, $2, $3, $4) RETURNING "IndividualId"`
	findFormSQL   = `SELECT "FormId" FROM form WHERE "AccessNo" = $1`
	createFormSQL = `INSERT INTO form ("IssuerId", "DateReported", "FormType", url, "AccessNo") ` +
		`VALUES ($1, $2, $3, $4, $5) RETURNING "FormId"`
	findTransactionSQL = `SELECT "TransactionId" FROM non_deriv_transaction ` +
		`WHERE "FormId" = $1 AND "DateReported" = $2 AND "SharesBalance" = $3`
	createTransactionSQL = `
INSERT INTO non_deriv_transaction (
	"DateReported",
	"FormId",
	"IssuerId",
	"IndividualId",
	"ActionCode",
	"OwnershipCode",
	"TransactionCode",
	"SharesBalance",
	"SharesTraded",
	"AvgPrice",
	"Amount",
	"Relationships"
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) RETURNING "TransactionId"`
)

func (x *session) FindIssuer(ctx context.Context, cik string) (int64, error) {
	return x.scanID(ctx, "find issuer", findIssuerSQL, cik)
}

func (x *session) CreateIssuer(ctx context.Context, issuer filing.Issuer) (int64, error) {
	return x.scanID(ctx, "insert issuer", createIssuerSQL, issuer.Name, issuer.Symbol, issuer.CIK)
}

func (x *session) FindIndividual(ctx context.Context, cik string) (int64, error) {
	return x.scanID(ctx, "find individual", findIndividualSQL, cik)
}

func (x *session) CreateIndividual(ctx context.Context, individual filing.Individual) (int64, error) {
	return x.scanID(ctx, "insert individual", createIndividualSQL,
		individual.CIK, individual.FullName, individual.FirstName, individual.LastName)
}

func (x *session) FindForm(ctx context.Context, accessNo string) (int64, error) {
	return x.scanID(ctx, "find form", findFormSQL, accessNo)
}

func (x *session) CreateForm(ctx context.Context, form filing.Form) (int64, error) {
	return x.scanID(ctx, "insert form", createFormSQL,
		form.IssuerID, form.DateReported.Time(), form.FormType, form.URL, form.AccessNo)
}

func (x *session) FindTransaction(ctx context.Context, key filing.TransactionKey) (int64, error) {
	return x.scanID(ctx, "find transaction", findTransactionSQL,
		key.FormID, key.DateReported.Time(), decimal.NewFromFloat(key.SharesBalance))
}

func (x *session) CreateTransaction(ctx context.Context, row filing.TransactionRow) (int64, error) {
	relationships := row.Relationships
	if relationships == nil {
		relationships = []int32{}
	}
	return x.scanID(ctx, "insert transaction", createTransactionSQL,
		row.DateReported.Time(),
		row.FormID,
		row.IssuerID,
		row.IndividualID,
		row.ActionCode,
		row.OwnershipCode,
		row.TransCode,
		decimal.NewFromFloat(row.SharesBalance),
		decimal.NewFromFloat(row.SharesTraded),
		decimal.NewFromFloat(row.AvgPrice),
		decimal.NewFromFloat(row.Amount),
		relationships,
	)
}

func (x *session) Release() {
	if x.release != nil {
		x.release()
		x.release = nil
	}
}

func (x *session) scanID(ctx context.Context, op string, sql string, args ...any) (int64, error) {
	var id int64
	err := x.q.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, filing.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}
