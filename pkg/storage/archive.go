package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"filecabinet/pkg/common"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Archive keeps exported snapshots in a SQLite database. Each Save replaces
// the whole archived set.
type Archive struct {
	db *sql.DB
	mu sync.Mutex
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS records (
	id             INTEGER PRIMARY KEY,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	date_of_birth  TEXT NOT NULL,
	job_experience INTEGER NOT NULL,
	monthly_pay    TEXT NOT NULL,
	gender         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Save replaces the archived records with records in one transaction.
func (a *Archive) Save(ctx context.Context, records []common.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(id, first_name, last_name, date_of_birth, job_experience, monthly_pay, gender)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			int64(r.ID), r.FirstName, r.LastName, r.DateOfBirth.Format(common.DateLayout),
			int64(r.JobExperience), r.MonthlyPay.String(), string(r.Gender))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("archive record #%d: %w", r.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO meta (key, value) VALUES ('saved_at', ?)",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Load returns the archived records ordered by id.
func (a *Archive) Load(ctx context.Context) ([]common.Record, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT
		id, first_name, last_name, date_of_birth, job_experience, monthly_pay, gender
		FROM records ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []common.Record
	for rows.Next() {
		var (
			id, exp          int64
			first, last      string
			dob, pay, gender string
		)
		if err := rows.Scan(&id, &first, &last, &dob, &exp, &pay, &gender); err != nil {
			return nil, err
		}
		r := common.Record{ID: int32(id), FirstName: first, LastName: last, JobExperience: int16(exp)}
		if r.DateOfBirth, err = time.Parse(common.DateLayout, dob); err != nil {
			return nil, fmt.Errorf("archive record #%d: %w", id, err)
		}
		if r.MonthlyPay, err = decimal.NewFromString(pay); err != nil {
			return nil, fmt.Errorf("archive record #%d: %w", id, err)
		}
		for _, g := range gender {
			r.Gender = g
			break
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SavedAt reports when Save last committed. ok is false for a fresh archive.
func (a *Archive) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var v string
	err = a.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'saved_at'").Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, v)
	return t, err == nil, err
}

func (a *Archive) Close() error {
	return a.db.Close()
}
