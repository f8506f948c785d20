package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	company                TEXT    NOT NULL,
	source                 TEXT    NOT NULL,
	title                  TEXT    NOT NULL DEFAULT '',
	description            TEXT    NOT NULL DEFAULT '',
	review_date            TEXT    NOT NULL,
	reviewer_name          TEXT    NOT NULL DEFAULT '',
	rating                 REAL,
	country                TEXT,
	reviewer_total_reviews TEXT,
	experience_date        TEXT,
	is_unprompted          INTEGER
);

CREATE INDEX IF NOT EXISTS idx_reviews_company_source ON reviews(company, source);
CREATE INDEX IF NOT EXISTS idx_reviews_date           ON reviews(review_date);
`

// SQLiteWriter appends records to an embedded SQLite database
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database at path and applies the schema
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// Write inserts the batch in one transaction
func (s *SQLiteWriter) Write(batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO reviews (company, source, title, description, review_date, reviewer_name, rating,
			country, reviewer_total_reviews, experience_date, is_unprompted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch.Records {
		row := rowOf(batch, r)
		if _, err := stmt.Exec(row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteWriter) Close() error {
	return s.db.Close()
}

// DB exposes the handle for queries over stored reviews
func (s *SQLiteWriter) DB() *sql.DB {
	return s.db
}
