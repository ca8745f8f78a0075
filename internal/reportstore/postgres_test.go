package reportstore

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// getTestDB returns a database connection for testing. Tests are skipped
// when TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			report_id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			generated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			body JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM reports")
	require.NoError(t, err)

	return db
}

func TestPostgresStore_SaveAndGet(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	generatedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	report := sampleReport("rpt-pg-1", "pt-100", generatedAt)

	require.NoError(t, store.SaveReport(ctx, report))

	got, err := store.GetReport(ctx, "rpt-pg-1")
	require.NoError(t, err)
	assert.Equal(t, "pt-100", got.PatientSummary.PatientID)
	assert.Equal(t, domain.RiskHigh, got.PatientSummary.RiskCategory)
}

func TestPostgresStore_SaveUpserts(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	report := sampleReport("rpt-pg-1", "pt-100", time.Now().UTC())
	require.NoError(t, store.SaveReport(ctx, report))

	report.PatientSummary.CKDStage = 4
	require.NoError(t, store.SaveReport(ctx, report))

	got, err := store.GetReport(ctx, "rpt-pg-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.PatientSummary.CKDStage)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	_, err = store.GetReport(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ListReportsByPatient(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-1", "pt-100", base)))
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-2", "pt-100", base.AddDate(0, 1, 0))))
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-3", "pt-200", base)))

	reports, err := store.ListReportsByPatient(ctx, "pt-100", 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "rpt-2", reports[0].ReportID)
}
