package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/report"
)

const reportRecordsSQL = `
SELECT f."DateReported", i2."FullName", i."Symbol", t."ActionCode", t."Amount", t."AvgPrice"
FROM non_deriv_transaction t
INNER JOIN form f ON f."FormId" = t."FormId"
INNER JOIN issuer i ON i."IssuerId" = f."IssuerId"
INNER JOIN individual i2 ON i2."IndividualId" = t."IndividualId"
WHERE f."DateReported" > $1`

// Records implements report.Source.
func (s *Store) Records(ctx context.Context, since filing.Date) ([]report.Record, error) {
	rows, err := s.shared.Query(ctx, reportRecordsSQL, since.Time())
	if err != nil {
		return nil, fmt.Errorf("query report records: %w", err)
	}
	defer rows.Close()

	var out []report.Record
	for rows.Next() {
		var (
			reported time.Time
			rec      report.Record
			amount   decimal.Decimal
			price    decimal.Decimal
		)
		if err := rows.Scan(&reported, &rec.Name, &rec.Symbol, &rec.ActionCode, &amount, &price); err != nil {
			return nil, fmt.Errorf("scan report record: %w", err)
		}
		rec.FormDate = filing.DateOf(reported, time.UTC)
		rec.Amount = amount
		rec.AvgPrice = price
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report records: %w", err)
	}
	return out, nil
}
