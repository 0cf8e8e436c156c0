package importer

import (
	"context"
	"strings"
)

// Record is one validated attendee candidate.
type Record struct {
	Email string
	Name  string
	Row   int
}

type normalizeStats struct {
	blank      int
	duplicates int
}

// Normalize validates and canonicalises the email of every row, pairs it with
// the row's name and drops repeated emails, keeping the first occurrence.
// The first invalid email fails the whole batch.
func Normalize(ctx context.Context, table *Table, mapping ColumnMapping, emails EmailValidator) ([]Record, error) {
	records, _, err := normalizeRecords(ctx, table, mapping, emails)
	return records, err
}

func normalizeRecords(ctx context.Context, table *Table, mapping ColumnMapping, emails EmailValidator) ([]Record, normalizeStats, error) {
	var (
		stats   normalizeStats
		records []Record
		seen    = make(map[string]struct{}, len(table.Rows))
	)
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, stats, contextError(err)
		}

		raw := strings.TrimSpace(row.Get(mapping.Email))
		if raw == "" {
			stats.blank++
			continue
		}
		email, err := emails.Canonicalize(ctx, raw)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, contextError(ctxErr)
			}
			e := newError(KindValidation, ErrInvalidEmail, err)
			e.Value = raw
			e.Row = row.Number
			return nil, stats, e
		}
		if _, dup := seen[email]; dup {
			stats.duplicates++
			continue
		}
		seen[email] = struct{}{}

		var name string
		if mapping.Name != "" {
			name = strings.TrimSpace(row.Get(mapping.Name))
		}
		records = append(records, Record{Email: email, Name: name, Row: row.Number})
	}
	return records, stats, nil
}
