// Package reportstore provides persistence backends for evaluation reports.
// The Postgres store backs the long-lived service; the SQLite store backs
// the standalone batch scanner, which archives into a local file.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// SQLiteStore implements domain.ReportStore over a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the archive database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers during batch writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		report_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reports_patient ON reports(patient_id, generated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveReport archives a finished report. Saving the same report ID twice
// replaces the stored body.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *domain.ComprehensiveReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (report_id, patient_id, generated_at, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_id) DO UPDATE SET
			patient_id = excluded.patient_id,
			generated_at = excluded.generated_at,
			body = excluded.body
	`,
		report.ReportID,
		report.PatientSummary.PatientID,
		report.GeneratedAt,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by its ID.
func (s *SQLiteStore) GetReport(ctx context.Context, reportID string) (*domain.ComprehensiveReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM reports WHERE report_id = ?", reportID,
	).Scan(&body)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	var report domain.ComprehensiveReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}

	return &report, nil
}

// ListReportsByPatient returns a patient's reports, newest first.
func (s *SQLiteStore) ListReportsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.ComprehensiveReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM reports
		WHERE patient_id = ?
		ORDER BY generated_at DESC
		LIMIT ? OFFSET ?
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.ComprehensiveReport
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}

		var report domain.ComprehensiveReport
		if err := json.Unmarshal([]byte(body), &report); err != nil {
			return nil, fmt.Errorf("unmarshaling report: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// Count returns the total number of archived reports.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// PurgeOlderThan removes reports generated before the cutoff and returns the
// number removed.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM reports WHERE generated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging reports: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
