package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/database"
	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// setupTestRepo connects to the database named by TEST_DATABASE_URL, runs
// migrations, and returns a repository over a clean schema. Tests that need
// it are skipped when the variable is unset.
func setupTestRepo(t *testing.T) (*SnapshotRepository, *pgxpool.Pool) {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping repository integration test")
	}

	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	pool, err := pgxpool.New(ctx, databaseURL)
	require.NoError(t, err, "connecting to test database")
	t.Cleanup(pool.Close)

	runner, err := database.NewMigrationRunner(databaseURL, "../../migrations", logger)
	require.NoError(t, err, "creating migration runner")
	t.Cleanup(func() { runner.Close() })

	require.NoError(t, runner.Up(ctx), "running migrations")

	for _, table := range []string{"screenings", "refills", "medications", "lab_results", "patients"} {
		_, err := pool.Exec(ctx, "DELETE FROM "+table)
		require.NoError(t, err, "clearing table %s", table)
	}

	return NewSnapshotRepository(pool, logger), pool
}

func seedPatient(t *testing.T, pool *pgxpool.Pool, patientID string, dob time.Time) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		INSERT INTO patients (
			patient_id, mrn, name, date_of_birth, sex, smoking_status,
			diabetes, hypertension, cardiovascular_disease, heart_failure,
			atrial_fibrillation, peripheral_vascular_disease,
			nephrology_referral, on_nephrotoxic_meds,
			on_ras_inhibitor, on_sglt2i, reported_barriers
		) VALUES (
			$1, 'MRN-001', 'Test Patient', $2, 'male', 'former',
			true, true, false, false,
			false, false,
			false, false,
			true, false, '{}'
		)`, patientID, dob)
	require.NoError(t, err, "seeding patient")
}

func seedLab(t *testing.T, pool *pgxpool.Pool, patientID, analyte string, value float64, measuredAt time.Time) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		INSERT INTO lab_results (patient_id, analyte, value, measured_at)
		VALUES ($1, $2, $3, $4)`, patientID, analyte, value, measuredAt)
	require.NoError(t, err, "seeding lab result")
}

func TestSnapshotRepository_GetSnapshot(t *testing.T) {
	repo, pool := setupTestRepo(t)
	ctx := context.Background()

	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo = repo.WithClock(func() time.Time { return ref })

	seedPatient(t, pool, "pt-100", time.Date(1957, 3, 15, 0, 0, 0, 0, time.UTC))

	seedLab(t, pool, "pt-100", AnalyteEGFR, 62, ref.AddDate(-1, 0, 0))
	seedLab(t, pool, "pt-100", AnalyteEGFR, 55, ref.AddDate(0, -1, 0))
	seedLab(t, pool, "pt-100", AnalyteUACR, 85, ref.AddDate(0, -8, 0))
	seedLab(t, pool, "pt-100", AnalyteUACR, 140, ref.AddDate(0, -1, 0))
	seedLab(t, pool, "pt-100", AnalyteHbA1c, 7.9, ref.AddDate(0, -2, 0))

	_, err := pool.Exec(ctx, `
		INSERT INTO medications (patient_id, name, active)
		VALUES ('pt-100', 'lisinopril', true), ('pt-100', 'metformin', true), ('pt-100', 'ibuprofen', false)`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO refills (patient_id, fill_date, days_supply)
		VALUES ('pt-100', $1, 90), ('pt-100', $2, 90)`,
		ref.AddDate(0, -6, 0), ref.AddDate(0, -3, 0))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO screenings (patient_id, test_code, performed_at)
		VALUES ('pt-100', 'uacr', $1), ('pt-100', 'uacr', $2)`,
		ref.AddDate(0, -8, 0), ref.AddDate(0, -1, 0))
	require.NoError(t, err)

	s, err := repo.GetSnapshot(ctx, "pt-100")
	require.NoError(t, err)

	assert.Equal(t, 68, s.Age)
	assert.Equal(t, domain.Male, s.Sex)
	assert.True(t, s.Diabetes)
	assert.True(t, s.OnRASInhibitor)

	require.NotNil(t, s.EGFR)
	assert.InDelta(t, 55, *s.EGFR, 0.001)
	require.NotNil(t, s.EGFRBaseline)
	assert.InDelta(t, 62, *s.EGFRBaseline, 0.001)
	require.NotNil(t, s.EGFRChangePct)
	assert.InDelta(t, -11.29, *s.EGFRChangePct, 0.01)

	require.NotNil(t, s.UACR)
	assert.InDelta(t, 140, *s.UACR, 0.001)
	require.Len(t, s.UACRHistory, 2)
	assert.InDelta(t, 85, s.UACRHistory[0].Value, 0.001)

	assert.Equal(t, []string{"lisinopril", "metformin"}, s.ActiveMedications)
	require.Len(t, s.Refills, 2)
	assert.Equal(t, 90, s.Refills[0].DaysSupply)

	require.Contains(t, s.LastScreenings, "uacr")
	assert.WithinDuration(t, ref.AddDate(0, -1, 0), s.LastScreenings["uacr"], time.Second)
}

func TestSnapshotRepository_GetSnapshotNotFound(t *testing.T) {
	repo, _ := setupTestRepo(t)

	_, err := repo.GetSnapshot(context.Background(), "no-such-patient")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotRepository_ListPatientIDs(t *testing.T) {
	repo, pool := setupTestRepo(t)

	seedPatient(t, pool, "pt-b", time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC))
	seedPatient(t, pool, "pt-a", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC))

	ids, err := repo.ListPatientIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pt-a", "pt-b"}, ids)
}

func TestAgeAt(t *testing.T) {
	tests := []struct {
		name string
		dob  time.Time
		ref  time.Time
		want int
	}{
		{
			name: "birthday already passed this year",
			dob:  time.Date(1957, 3, 15, 0, 0, 0, 0, time.UTC),
			ref:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			want: 68,
		},
		{
			name: "birthday not yet reached",
			dob:  time.Date(1957, 9, 15, 0, 0, 0, 0, time.UTC),
			ref:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			want: 67,
		},
		{
			name: "birthday today",
			dob:  time.Date(1960, 6, 1, 0, 0, 0, 0, time.UTC),
			ref:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			want: 65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ageAt(tt.dob, tt.ref))
		})
	}
}
