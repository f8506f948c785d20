package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"review-extractor/internal/types"
)

// PostgresWriter persists review records to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id                     SERIAL PRIMARY KEY,
			company                TEXT         NOT NULL,
			source                 VARCHAR(20)  NOT NULL,
			title                  TEXT         NOT NULL DEFAULT '',
			description            TEXT         NOT NULL DEFAULT '',
			review_date            DATE         NOT NULL,
			reviewer_name          TEXT         NOT NULL DEFAULT '',
			rating                 NUMERIC(3,1),
			country                TEXT,
			reviewer_total_reviews TEXT,
			experience_date        TEXT,
			is_unprompted          BOOLEAN,
			created_at             TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_reviews_company_source ON reviews(company, source);
		CREATE INDEX IF NOT EXISTS idx_reviews_date           ON reviews(review_date);
	`)
	return err
}

// Write batch-inserts the records
func (pw *PostgresWriter) Write(batch Batch) error {
	const batchSize = 50
	for i := 0; i < len(batch.Records); i += batchSize {
		end := i + batchSize
		if end > len(batch.Records) {
			end = len(batch.Records)
		}
		if err := pw.insertBatch(batch, batch.Records[i:end]); err != nil {
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch Batch, records []types.ReviewRecord) error {
	query, args := postgresInsert(batch, records)
	_, err := pw.db.Exec(query, args...)
	return err
}

func postgresInsert(batch Batch, records []types.ReviewRecord) (string, []interface{}) {
	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]interface{}, 0, len(records)*reviewColumns)

	for idx, r := range records {
		placeholders := make([]string, reviewColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*reviewColumns+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, rowOf(batch, r)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO reviews (company, source, title, description, review_date, reviewer_name, rating,
			country, reviewer_total_reviews, experience_date, is_unprompted)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

const reviewColumns = 11

// rowOf flattens a record into column order; Trustpilot-only columns are NULL elsewhere
func rowOf(batch Batch, r types.ReviewRecord) []interface{} {
	var rating interface{}
	if r.Rating != nil {
		rating = *r.Rating
	}
	var country, total, experience, unprompted interface{}
	if d := r.TrustpilotDetails; d != nil {
		country, total, experience, unprompted = d.Country, d.ReviewerTotalReviews, d.ExperienceDate, d.IsUnprompted
	}
	return []interface{}{
		batch.Company,
		batch.Source.DisplayName(),
		r.Title,
		r.Description,
		r.Date.String(),
		r.ReviewerName,
		rating,
		country,
		total,
		experience,
		unprompted,
	}
}
