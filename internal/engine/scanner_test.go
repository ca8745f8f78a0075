package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func alertCodes(alerts []domain.ScanAlert) []string {
	codes := make([]string, len(alerts))
	for i, a := range alerts {
		codes[i] = a.Code
	}
	return codes
}

func TestScanner_AssessPatient_CriticalRules(t *testing.T) {
	sc := NewScanner(testLogger())

	t.Run("Rapid decline", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(45)
		s.EGFRChangePct = domain.Float(-12)
		got, err := sc.AssessPatient(s)
		require.NoError(t, err)
		assert.Contains(t, alertCodes(got.Alerts), "RAPID_EGFR_DECLINE")
	})

	t.Run("Advanced CKD without nephrology", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(22)
		got, err := sc.AssessPatient(s)
		require.NoError(t, err)
		assert.Contains(t, alertCodes(got.Alerts), "ADVANCED_CKD_NO_NEPHROLOGY")

		s.NephrologyReferral = true
		got, err = sc.AssessPatient(s)
		require.NoError(t, err)
		assert.NotContains(t, alertCodes(got.Alerts), "ADVANCED_CKD_NO_NEPHROLOGY")
	})

	t.Run("Potassium bands are exclusive", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(45)
		s.Potassium = domain.Float(6.3)
		got, err := sc.AssessPatient(s)
		require.NoError(t, err)
		codes := alertCodes(got.Alerts)
		assert.Contains(t, codes, "SEVERE_HYPERKALEMIA")
		assert.NotContains(t, codes, "MODERATE_HYPERKALEMIA")

		s.Potassium = domain.Float(5.7)
		got, err = sc.AssessPatient(s)
		require.NoError(t, err)
		codes = alertCodes(got.Alerts)
		assert.Contains(t, codes, "MODERATE_HYPERKALEMIA")
		assert.NotContains(t, codes, "SEVERE_HYPERKALEMIA")

		s.Potassium = domain.Float(5.5)
		got, err = sc.AssessPatient(s)
		require.NoError(t, err)
		codes = alertCodes(got.Alerts)
		assert.NotContains(t, codes, "MODERATE_HYPERKALEMIA")
	})

	t.Run("Progressive decline needs stage 3 and stacks with rapid", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(75)
		s.EGFRChangePct = domain.Float(-7)
		got, err := sc.AssessPatient(s)
		require.NoError(t, err)
		assert.NotContains(t, alertCodes(got.Alerts), "PROGRESSIVE_DECLINE")

		s.EGFR = domain.Float(45)
		got, err = sc.AssessPatient(s)
		require.NoError(t, err)
		assert.Contains(t, alertCodes(got.Alerts), "PROGRESSIVE_DECLINE")

		s.EGFRChangePct = domain.Float(-12)
		got, err = sc.AssessPatient(s)
		require.NoError(t, err)
		codes := alertCodes(got.Alerts)
		assert.Contains(t, codes, "RAPID_EGFR_DECLINE")
		assert.Contains(t, codes, "PROGRESSIVE_DECLINE")
	})

	t.Run("Proteinuria splits on decline", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(45)
		s.UACR = domain.Float(500)
		s.OnRASInhibitor = true
		got, err := sc.AssessPatient(s)
		require.NoError(t, err)
		assert.Contains(t, alertCodes(got.Alerts), "HEAVY_PROTEINURIA")

		s.EGFRChangePct = domain.Float(-3)
		got, err = sc.AssessPatient(s)
		require.NoError(t, err)
		codes := alertCodes(got.Alerts)
		assert.Contains(t, codes, "NEPHROTIC_PROTEINURIA_DECLINING")
		assert.NotContains(t, codes, "HEAVY_PROTEINURIA")
	})
}

func TestScanner_PriorityThresholds(t *testing.T) {
	tests := []struct {
		score int
		want  domain.AlertSeverity
	}{
		{25, domain.SeverityCritical},
		{20, domain.SeverityCritical},
		{12, domain.SeverityHigh},
		{10, domain.SeverityHigh},
		{7, domain.SeverityModerate},
		{5, domain.SeverityModerate},
		{4, domain.SeverityLow},
		{0, domain.SeverityLow},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, priorityForScore(tt.score), "score %d", tt.score)
	}
}

func TestScanner_SeverityScoreAccumulates(t *testing.T) {
	sc := NewScanner(testLogger())

	s := healthySnapshot(70, domain.Male)
	s.EGFR = domain.Float(22)             // stage 4, no nephrology: 10
	s.EGFRChangePct = domain.Float(-12)   // rapid decline: 10
	s.Hemoglobin = domain.Float(8.5)      // severe anemia at stage 3+: 10
	s.Diabetes = true
	s.HbA1c = domain.Float(8.2)           // poor control: 5

	got, err := sc.AssessPatient(s)
	require.NoError(t, err)
	// plus DIABETIC_CKD_NO_SGLT2I (2) and PROGRESSIVE_DECLINE (2)
	assert.Equal(t, 39, got.SeverityScore)
	assert.Equal(t, domain.SeverityCritical, got.Priority)
	assert.True(t, got.RequiresMonitoring)
}

func TestScanner_ScanPopulation(t *testing.T) {
	sc := NewScanner(testLogger())
	scanDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	critical := healthySnapshot(70, domain.Male)
	critical.PatientID = "p-critical"
	critical.EGFR = domain.Float(22)
	critical.EGFRChangePct = domain.Float(-12)

	moderate := healthySnapshot(65, domain.Female)
	moderate.PatientID = "p-moderate"
	moderate.EGFR = domain.Float(48)
	moderate.UACR = domain.Float(80) // proteinuria without RAS: 2
	moderate.BMI = domain.Float(33)  // obesity at stage 2+: 2
	moderate.Smoking = domain.SmokerCurrent

	healthy := healthySnapshot(40, domain.Male)
	healthy.PatientID = "p-healthy"
	healthy.EGFR = domain.Float(100)

	unscoreable := &domain.PatientSnapshot{PatientID: "p-no-labs", Age: 50, Sex: domain.Male}

	summary := sc.ScanPopulation(context.Background(), []*domain.PatientSnapshot{
		moderate, critical, healthy, unscoreable,
	}, scanDate)

	assert.Equal(t, 4, summary.TotalPatients)
	require.Len(t, summary.Patients, 2)
	// Sorted by severity score descending.
	assert.Equal(t, "p-critical", summary.Patients[0].PatientID)
	assert.Equal(t, "p-moderate", summary.Patients[1].PatientID)
	assert.Equal(t, 1, summary.HighRiskPatients)
	assert.Equal(t, 25.0, summary.HighRiskPercentage)
	assert.Equal(t, 1, summary.PriorityDistribution[domain.SeverityCritical])
	assert.Equal(t, 1, summary.AlertFrequency["RAPID_EGFR_DECLINE"])
	assert.Equal(t, 1, summary.AlertFrequency["PROTEINURIA_NO_RAS"])
}
