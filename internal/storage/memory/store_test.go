package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

func TestSessionFindCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	sess, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	_, err = sess.FindIssuer(ctx, "0000320193")
	require.ErrorIs(t, err, filing.ErrNotFound)

	id, err := sess.CreateIssuer(ctx, filing.Issuer{CIK: "0000320193", Name: "APPLE INC", Symbol: "AAPL"})
	require.NoError(t, err)
	found, err := sess.FindIssuer(ctx, "0000320193")
	require.NoError(t, err)
	assert.Equal(t, id, found)
	assert.Equal(t, 1, s.Creates("issuer"))

	row := filing.TransactionRow{FormID: 7, DateReported: filing.NewDate(2023, time.January, 3), SharesBalance: 3000}
	txID, err := sess.CreateTransaction(ctx, row)
	require.NoError(t, err)
	found, err = sess.FindTransaction(ctx, row.Key())
	require.NoError(t, err)
	assert.Equal(t, txID, found)

	other := row.Key()
	other.SharesBalance = 2900
	_, err = sess.FindTransaction(ctx, other)
	require.ErrorIs(t, err, filing.ErrNotFound)
}

func TestSessionRelease(t *testing.T) {
	t.Parallel()

	s := NewStore()
	sess, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.OpenSessions())
	sess.Release()
	sess.Release()
	assert.Equal(t, 0, s.OpenSessions())

	_, err = sess.FindForm(context.Background(), "x")
	require.Error(t, err)
}

func TestRecordsJoinsTables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	sess, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	issuerID, _ := sess.CreateIssuer(ctx, filing.Issuer{CIK: "1", Name: "APPLE INC", Symbol: "AAPL"})
	ownerID, _ := sess.CreateIndividual(ctx, filing.Individual{CIK: "2", FullName: "COOK TIMOTHY D"})
	oldForm, _ := sess.CreateForm(ctx, filing.Form{IssuerID: issuerID, DateReported: filing.NewDate(2022, time.December, 1), AccessNo: "a"})
	newForm, _ := sess.CreateForm(ctx, filing.Form{IssuerID: issuerID, DateReported: filing.NewDate(2023, time.January, 3), AccessNo: "b"})
	_, _ = sess.CreateTransaction(ctx, filing.TransactionRow{FormID: oldForm, IndividualID: ownerID, ActionCode: "D", Amount: 5, AvgPrice: 1})
	_, _ = sess.CreateTransaction(ctx, filing.TransactionRow{FormID: newForm, IndividualID: ownerID, ActionCode: "D", Amount: 1250, AvgPrice: 12.5})

	records, err := s.Records(ctx, filing.NewDate(2022, time.December, 31))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AAPL", records[0].Symbol)
	assert.Equal(t, "COOK TIMOTHY D", records[0].Name)
	assert.Equal(t, "1250", records[0].Amount.String())
}

func TestCheckpointStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cs := NewCheckpointStore()
	day := filing.NewDate(2023, time.January, 4)

	_, err := cs.Load(ctx, day)
	require.ErrorIs(t, err, filing.ErrCheckpointNotFound)

	require.NoError(t, cs.Save(ctx, day, []filing.Transaction{{Company: "APPLE INC"}}))
	txs, err := cs.Load(ctx, day)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, cs.Has(day))

	cs.Put(day, []byte("{not json"))
	_, err = cs.Load(ctx, day)
	require.ErrorIs(t, err, filing.ErrCheckpointCorrupt)
}

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rs := NewRunStore()
	runID := uuid.New()
	jan3 := filing.NewDate(2023, time.January, 3)
	jan4 := jan3.AddDays(1)
	now := time.Now()

	_, err := rs.GetDay(ctx, jan3)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, rs.StartDay(ctx, runID, jan3, now))
	require.NoError(t, rs.AddFetchFailures(ctx, jan3, 2))
	require.NoError(t, rs.CompleteDay(ctx, jan3, now, store.DayOutcome{Status: store.DayDone, Transactions: 5, Inserted: 4, Duplicates: 1}))
	require.NoError(t, rs.StartDay(ctx, runID, jan4, now))

	got, err := rs.GetDay(ctx, jan3)
	require.NoError(t, err)
	assert.Equal(t, store.DayDone, got.Status)
	assert.Equal(t, 2, got.FetchFailures)
	assert.Equal(t, 4, got.Inserted)
	require.NotNil(t, got.FinishedAt)

	days, err := rs.ListDays(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, jan4, days[0].Day)

	days, err = rs.ListDays(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, jan3, days[0].Day)
}
