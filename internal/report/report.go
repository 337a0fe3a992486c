// Package report builds the insider activity summary: transactions with a
// positive price grouped per form date, owner, symbol and action code.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// DefaultLookbackDays is the summary window.
const DefaultLookbackDays = 14

// Header is the CSV header row.
var Header = []string{"Date", "Name", "Symbol", "ActionCode", "Amount", "AvgPrice"}

// Record is one stored transaction joined with its form, issuer and owner.
type Record struct {
	FormDate   filing.Date
	Name       string
	Symbol     string
	ActionCode string
	Amount     decimal.Decimal
	AvgPrice   decimal.Decimal
}

// Row is one aggregated summary line.
type Row struct {
	Date       filing.Date
	Name       string
	Symbol     string
	ActionCode string
	// Amount is the summed dollar amount of the group.
	Amount decimal.Decimal
	// AvgPrice is the mean price of the group.
	AvgPrice decimal.Decimal
}

// Source returns the records whose form date is strictly after since.
type Source interface {
	Records(ctx context.Context, since filing.Date) ([]Record, error)
}

// Build loads records newer than since and aggregates them.
func Build(ctx context.Context, src Source, since filing.Date) ([]Row, error) {
	records, err := src.Records(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load report records: %w", err)
	}
	return Aggregate(records), nil
}

type groupKey struct {
	date   filing.Date
	name   string
	symbol string
	action string
}

type group struct {
	amount decimal.Decimal
	prices decimal.Decimal
	count  int64
}

// Aggregate drops records without a positive price, groups the rest and
// orders the rows by symbol, then date descending, then amount descending.
func Aggregate(records []Record) []Row {
	groups := make(map[groupKey]*group)
	for _, r := range records {
		if !r.AvgPrice.IsPositive() {
			continue
		}
		key := groupKey{date: r.FormDate, name: r.Name, symbol: r.Symbol, action: r.ActionCode}
		g := groups[key]
		if g == nil {
			g = &group{}
			groups[key] = g
		}
		g.amount = g.amount.Add(r.Amount)
		g.prices = g.prices.Add(r.AvgPrice)
		g.count++
	}

	rows := make([]Row, 0, len(groups))
	for key, g := range groups {
		rows = append(rows, Row{
			Date:       key.date,
			Name:       key.name,
			Symbol:     key.symbol,
			ActionCode: key.action,
			Amount:     g.amount.Round(2),
			AvgPrice:   g.prices.Div(decimal.NewFromInt(g.count)).Round(2),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ActionCode < b.ActionCode
	})
	return rows
}

// WriteCSV writes the header and one quoted-as-needed line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date.String(),
			r.Name,
			r.Symbol,
			r.ActionCode,
			r.Amount.StringFixed(2),
			r.AvgPrice.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
