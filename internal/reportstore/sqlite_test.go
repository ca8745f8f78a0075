package reportstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "reportstore-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func sampleReport(reportID, patientID string, generatedAt time.Time) *domain.ComprehensiveReport {
	return &domain.ComprehensiveReport{
		ReportID:    reportID,
		GeneratedAt: generatedAt,
		PatientSummary: domain.PatientSummary{
			PatientID:    patientID,
			Age:          72,
			Sex:          domain.Female,
			EGFR:         48.3,
			CKDStage:     3,
			HasCKD:       true,
			RiskColor:    domain.ColorOrange,
			RiskCategory: domain.RiskHigh,
		},
		CriticalAlerts: []domain.Alert{
			{
				ID:       "a-1",
				Severity: domain.SeverityHigh,
				Code:     "SCREENING_NEVER_DONE",
				Message:  "uACR has never been measured",
				Action:   "Order urine albumin-creatinine ratio",
			},
		},
		ActionPlan: []domain.ActionItem{
			{Priority: 10, Action: "Start SGLT2 inhibitor"},
		},
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "reportstore-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "archive.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	generatedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	report := sampleReport("rpt-1", "pt-100", generatedAt)

	require.NoError(t, store.SaveReport(ctx, report))

	got, err := store.GetReport(ctx, "rpt-1")
	require.NoError(t, err)

	assert.Equal(t, "rpt-1", got.ReportID)
	assert.Equal(t, "pt-100", got.PatientSummary.PatientID)
	assert.Equal(t, domain.ColorOrange, got.PatientSummary.RiskColor)
	require.Len(t, got.CriticalAlerts, 1)
	assert.Equal(t, "SCREENING_NEVER_DONE", got.CriticalAlerts[0].Code)
	assert.True(t, got.GeneratedAt.Equal(generatedAt))
}

func TestSQLiteStore_SaveReplacesExisting(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	report := sampleReport("rpt-1", "pt-100", time.Now().UTC())
	require.NoError(t, store.SaveReport(ctx, report))

	report.PatientSummary.RiskColor = domain.ColorRed
	require.NoError(t, store.SaveReport(ctx, report))

	got, err := store.GetReport(ctx, "rpt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ColorRed, got.PatientSummary.RiskColor)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.GetReport(context.Background(), "no-such-report")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ListReportsByPatient(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-1", "pt-100", base)))
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-2", "pt-100", base.AddDate(0, 1, 0))))
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-3", "pt-200", base)))

	reports, err := store.ListReportsByPatient(ctx, "pt-100", 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// Newest first
	assert.Equal(t, "rpt-2", reports[0].ReportID)
	assert.Equal(t, "rpt-1", reports[1].ReportID)

	page, err := store.ListReportsByPatient(ctx, "pt-100", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "rpt-1", page[0].ReportID)
}

func TestSQLiteStore_PurgeOlderThan(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-old", "pt-100", cutoff.AddDate(-1, 0, 0))))
	require.NoError(t, store.SaveReport(ctx, sampleReport("rpt-new", "pt-100", cutoff.AddDate(0, 1, 0))))

	removed, err := store.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetReport(ctx, "rpt-old")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetReport(ctx, "rpt-new")
	assert.NoError(t, err)
}
