package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"SentiTrade/internal/domain/models"
)

const defaultJournalTable = "decision_journal"

// JournalSchema returns the idempotent DDL for the decision journal.
func JournalSchema(database, table string) []string {
	if table == "" {
		table = defaultJournalTable
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    decided_at DateTime64(3, 'UTC'),
    cycle_id String,
    symbol LowCardinality(String),
    score Nullable(Float64),
    sources UInt8,
    threshold Float64,
    action LowCardinality(String),
    quantity Decimal(20, 6),
    price Decimal(20, 6),
    reason String,
    outcome LowCardinality(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(decided_at)
ORDER BY (symbol, decided_at)
TTL toDateTime(decided_at) + INTERVAL 180 DAY`, database, table),
	}
}

// ClickHouseJournal appends decision rows for offline analysis.
type ClickHouseJournal struct {
	db    *sql.DB
	table string
}

func NewClickHouseJournal(db *sql.DB, table string) *ClickHouseJournal {
	if table == "" {
		table = defaultJournalTable
	}
	return &ClickHouseJournal{db: db, table: table}
}

func (j *ClickHouseJournal) Record(ctx context.Context, recs []models.DecisionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	const chunkSize = 1000
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*11)
		for _, r := range recs[start:end] {
			if r.Instrument == "" {
				continue
			}
			var score interface{}
			if r.Score != nil {
				score = *r.Score
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.DecidedAt.UTC(),
				r.CycleID,
				r.Instrument,
				score,
				uint8(r.Sources),
				r.Threshold,
				string(r.Action),
				r.Quantity.String(),
				r.Price.String(),
				r.Reason,
				r.Outcome,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (decided_at, cycle_id, symbol, score, sources, threshold, action, quantity, price, reason, outcome) VALUES %s",
			j.table, strings.Join(values, ","))
		if _, err := j.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}
	return nil
}
