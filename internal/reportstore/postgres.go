package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// PostgresStore implements domain.ReportStore using PostgreSQL. Reports are
// stored as JSONB documents; the reports table is created via migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL report store over an existing
// connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL report store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// SaveReport upserts a finished report keyed by report ID.
func (s *PostgresStore) SaveReport(ctx context.Context, report *domain.ComprehensiveReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	query := `
		INSERT INTO reports (report_id, patient_id, generated_at, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (report_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			generated_at = EXCLUDED.generated_at,
			body = EXCLUDED.body
	`

	_, err = s.db.ExecContext(ctx, query,
		report.ReportID,
		report.PatientSummary.PatientID,
		report.GeneratedAt,
		body,
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by its ID.
func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*domain.ComprehensiveReport, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM reports WHERE report_id = $1", reportID,
	).Scan(&body)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	var report domain.ComprehensiveReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}

	return &report, nil
}

// ListReportsByPatient returns a patient's reports, newest first.
func (s *PostgresStore) ListReportsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.ComprehensiveReport, error) {
	query := `
		SELECT body FROM reports
		WHERE patient_id = $1
		ORDER BY generated_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.ComprehensiveReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}

		var report domain.ComprehensiveReport
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, fmt.Errorf("unmarshaling report: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// Count returns the total number of stored reports.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return count, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
