// Package sqlite provides the SQLite-backed alert cooldown ledger.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"rsi-tracker/internal/alert"
	"rsi-tracker/internal/signal"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger persists cooldown state in SQLite so a restart does not re-alert
// inside the cooldown window.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (creating if needed) the ledger database with WAL mode.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single connection keeps WAL contention away
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened alert ledger at %s", dbPath)
	return &Ledger{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_ledger (
			symbol      TEXT    NOT NULL,
			signal_type TEXT    NOT NULL,
			sent_at     INTEGER NOT NULL,
			PRIMARY KEY (symbol, signal_type)
		);
	`)
	return err
}

func (l *Ledger) Last(ctx context.Context, symbol string, typ signal.Type) (time.Time, bool, error) {
	var ts int64
	err := l.db.QueryRowContext(ctx,
		`SELECT sent_at FROM alert_ledger WHERE symbol = ? AND signal_type = ?`,
		symbol, string(typ),
	).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

func (l *Ledger) Record(ctx context.Context, symbol string, typ signal.Type, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO alert_ledger (symbol, signal_type, sent_at) VALUES (?, ?, ?)`,
		symbol, string(typ), at.Unix(),
	)
	if err != nil {
		return err
	}

	cutoff := at.Add(-alert.RetentionWindow).Unix()
	if _, err := l.db.ExecContext(ctx, `DELETE FROM alert_ledger WHERE sent_at < ?`, cutoff); err != nil {
		log.Printf("[sqlite] ledger prune warning: %v", err)
	}
	return nil
}

func (l *Ledger) Entries(ctx context.Context) ([]alert.Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT symbol, signal_type, sent_at FROM alert_ledger ORDER BY sent_at ASC, symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.Entry
	for rows.Next() {
		var (
			symbol string
			typ    string
			ts     int64
		)
		if err := rows.Scan(&symbol, &typ, &ts); err != nil {
			return nil, err
		}
		out = append(out, alert.Entry{
			Symbol: symbol,
			Type:   signal.Type(typ),
			At:     time.Unix(ts, 0).UTC(),
		})
	}
	return out, rows.Err()
}

// DB returns the underlying sql.DB for health checks.
func (l *Ledger) DB() *sql.DB { return l.db }

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }
