package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

const docURL = "https://www.sec.gov/Archives/edgar/data/320193/0001127602-23-001234.txt"

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", "form4.txt"))
	require.NoError(t, err)
	return raw
}

func source() Source {
	return Source{URL: docURL, Filed: filing.NewDate(2023, time.January, 4)}
}

func TestParseReadsEveryTransaction(t *testing.T) {
	t.Parallel()

	txs, err := Parse(loadFixture(t), source())
	require.NoError(t, err)
	require.Len(t, txs, 2)

	first := txs[0]
	assert.Equal(t, filing.NewDate(2023, time.January, 3), first.FormDate)
	assert.Equal(t, filing.NewDate(2022, time.December, 30), first.TransDate)
	assert.Equal(t, "APPLE INC.", first.Company)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, "0000320193", first.CompanyCIK)
	assert.Equal(t, "COOK TIMOTHY D", first.Owner)
	assert.Equal(t, "0001214156", first.OwnerCIK)
	assert.Equal(t, []filing.Relationship{filing.RelationshipDirector, filing.RelationshipOfficer}, first.Relationships)
	assert.InDelta(t, 100.0, first.SharesTraded, 1e-9)
	assert.InDelta(t, 12.5, first.AvgPrice, 1e-9)
	assert.Equal(t, 1250.0, first.Amount)
	assert.InDelta(t, 3000.0, first.SharesOwned, 1e-9)
	assert.Equal(t, "S", first.TransCode)
	assert.Equal(t, "D", first.OwnershipCode)
	assert.Equal(t, "D", first.ActionCode)
	assert.Equal(t, filing.ActionDisposed, first.Action())
	assert.Equal(t, "4", first.FormType)
	assert.Equal(t, docURL, first.FormURL)
	assert.Equal(t, "0001127602-23-001234", first.AccessNo)
}

func TestParseDefaultsMalformedNumbersToZero(t *testing.T) {
	t.Parallel()

	txs, err := Parse(loadFixture(t), source())
	require.NoError(t, err)
	second := txs[1]
	assert.Equal(t, filing.NewDate(2023, time.January, 3), second.TransDate)
	assert.InDelta(t, 1500.0, second.SharesTraded, 1e-9)
	assert.Zero(t, second.AvgPrice)
	assert.Zero(t, second.Amount)
	assert.Zero(t, second.SharesOwned)
	assert.Equal(t, "I", second.OwnershipCode)
	assert.Equal(t, filing.ActionAcquired, second.Action())
}

func TestParseDefaultsNonFiniteNumbersToZero(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"NaN", "Inf", "-Inf", "infinity"} {
		t.Run(value, func(t *testing.T) {
			t.Parallel()

			raw := strings.Replace(string(loadFixture(t)), "<value>12.5</value>", "<value>"+value+"</value>", 1)
			txs, err := Parse([]byte(raw), source())
			require.NoError(t, err)
			first := txs[0]
			assert.Zero(t, first.AvgPrice)
			assert.Zero(t, first.Amount)
			assert.InDelta(t, 100.0, first.SharesTraded, 1e-9)

			_, err = filing.EncodeCheckpoint(txs)
			require.NoError(t, err)
		})
	}
}

func TestParseAmountIsAlwaysDerived(t *testing.T) {
	t.Parallel()

	txs, err := Parse(loadFixture(t), source())
	require.NoError(t, err)
	for _, tx := range txs {
		assert.Equal(t, tx.SharesTraded*tx.AvgPrice, tx.Amount)
	}
}

func TestParseAccessionFallsBackToURL(t *testing.T) {
	t.Parallel()

	raw := strings.Replace(string(loadFixture(t)), "ACCESSION NUMBER:", "ACCESSION-ID:", 1)
	txs, err := Parse([]byte(raw), source())
	require.NoError(t, err)
	assert.Equal(t, "0001127602-23-001234", txs[0].AccessNo)
}

func TestParseFallsBackToIndexDate(t *testing.T) {
	t.Parallel()

	raw := strings.Replace(string(loadFixture(t)), "<periodOfReport>2023-01-03</periodOfReport>", "", 1)
	txs, err := Parse([]byte(raw), source())
	require.NoError(t, err)
	assert.Equal(t, filing.NewDate(2023, time.January, 4), txs[0].FormDate)
}

func TestParseStructuralFailures(t *testing.T) {
	t.Parallel()

	fixture := string(loadFixture(t))
	cut := func(from, to string) string {
		start := strings.Index(fixture, from)
		end := strings.Index(fixture, to) + len(to)
		return fixture[:start] + fixture[end:]
	}

	cases := map[string]string{
		"no xml":             "<SEC-DOCUMENT>plain text</SEC-DOCUMENT>",
		"no issuer":          cut("<issuer>", "</issuer>"),
		"no owner":           cut("<reportingOwner>", "</reportingOwner>"),
		"no table":           cut("<nonDerivativeTable>", "</nonDerivativeTable>"),
		"bad date":           strings.Replace(fixture, "2022-12-30", "30/12/2022", 1),
		"truncated fragment": strings.Replace(fixture, "</issuer>", "", 1),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			txs, err := Parse([]byte(raw), source())
			require.Error(t, err)
			assert.Nil(t, txs)
		})
	}
}

func TestParseEmptyTableIsStructural(t *testing.T) {
	t.Parallel()

	fixture := string(loadFixture(t))
	start := strings.Index(fixture, "<nonDerivativeTable>") + len("<nonDerivativeTable>")
	end := strings.Index(fixture, "</nonDerivativeTable>")
	raw := fixture[:start] + fixture[end:]

	_, err := Parse([]byte(raw), source())
	require.ErrorIs(t, err, ErrStructure)
}

func TestParseMissingFragment(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("nothing here"), source())
	require.ErrorIs(t, err, ErrNoDocument)
}

func TestParsedTransactionsRoundTripThroughJSON(t *testing.T) {
	t.Parallel()

	txs, err := Parse(loadFixture(t), source())
	require.NoError(t, err)
	raw, err := json.Marshal(txs)
	require.NoError(t, err)

	var back []filing.Transaction
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, txs, back)
}
