package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

var adherenceRef = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

// refillsWithMPR builds two refills whose possession ratio over a 100-day
// window equals totalSupply/100.
func refillsWithMPR(totalSupply int) []domain.RefillRecord {
	return []domain.RefillRecord{
		{FillDate: adherenceRef.AddDate(0, 0, -100), DaysSupply: totalSupply / 2},
		{FillDate: adherenceRef.AddDate(0, 0, -60), DaysSupply: totalSupply - totalSupply/2},
	}
}

func TestScoreAdherence_MPROnlyRenormalizes(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	s.Refills = refillsWithMPR(60) // MPR 0.60

	got, err := ScoreAdherence(s, adherenceRef)
	require.NoError(t, err)

	// The single available signal carries the full renormalized weight.
	assert.Equal(t, 0.60, got.CompositeScore)
	assert.Equal(t, domain.AdherencePoor, got.Category)
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)

	var mpr domain.AdherenceComponent
	for _, c := range got.Components {
		if c.Signal == domain.SignalMPR {
			mpr = c
		}
	}
	assert.True(t, mpr.Available)
	assert.Equal(t, 0.60, mpr.Score)
}

func TestScoreAdherence_TwoSignalRenormalization(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	s.Refills = refillsWithMPR(60)          // MPR 0.60, weight 0.5
	s.SelfReportScore = domain.Float(0.95) // weight 0.2

	got, err := ScoreAdherence(s, adherenceRef)
	require.NoError(t, err)

	// 0.60×(5/7) + 0.95×(2/7) = 0.70
	assert.Equal(t, 0.70, got.CompositeScore)
	assert.Equal(t, domain.AdherencePoor, got.Category)
	assert.Equal(t, domain.ConfidenceMedium, got.Confidence)
}

func TestScoreAdherence_LabTrendInference(t *testing.T) {
	t.Run("Response at expectation scores high", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.OnSGLT2i = true
		s.EGFRBaseline = domain.Float(48)
		s.EGFR = domain.Float(52) // +4, matches expected SGLT2i benefit
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		assert.Equal(t, 0.95, got.CompositeScore)
		assert.Equal(t, domain.AdherenceGood, got.Category)
	})

	t.Run("Absent response scores low", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.OnSGLT2i = true
		s.EGFRBaseline = domain.Float(48)
		s.EGFR = domain.Float(40) // −8 against expected +4
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		assert.Equal(t, 0.40, got.CompositeScore)
		assert.Equal(t, domain.AdherencePoor, got.Category)
	})
}

func TestScoreAdherence_NoSignals(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	_, err := ScoreAdherence(s, adherenceRef)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}

func TestScoreAdherence_Escalation(t *testing.T) {
	t.Run("Poor adherence with worsening labs is critical", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.Refills = refillsWithMPR(50) // MPR 0.50
		s.EGFRChangePct = domain.Float(-8)
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		assert.True(t, got.LabsWorsening)
		assert.Equal(t, domain.SeverityCritical, got.AlertSeverity)
	})

	t.Run("Good adherence with worsening labs flags treatment inadequacy", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.SelfReportScore = domain.Float(1.0)
		s.EGFRChangePct = domain.Float(-8)
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		assert.True(t, got.LabsWorsening)
		assert.Equal(t, domain.SeverityHigh, got.AlertSeverity)
		assert.Contains(t, got.Interpretation, "inadequate")
	})

	t.Run("Stable labs stay low severity", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.SelfReportScore = domain.Float(1.0)
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		assert.Equal(t, domain.SeverityLow, got.AlertSeverity)
	})
}

func TestScoreAdherence_Barriers(t *testing.T) {
	t.Run("Reported barriers are surfaced with severity", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.SelfReportScore = domain.Float(0.5)
		s.ReportedBarriers = []string{"cost", "forgetfulness"}
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		require.Len(t, got.Barriers, 2)
		assert.Equal(t, domain.SeverityHigh, got.Barriers[0].Severity)
		assert.Equal(t, domain.SeverityModerate, got.Barriers[1].Severity)
	})

	t.Run("Low score without reported cause infers access barrier", func(t *testing.T) {
		s := healthySnapshot(68, domain.Male)
		s.Refills = refillsWithMPR(40) // MPR 0.40
		got, err := ScoreAdherence(s, adherenceRef)
		require.NoError(t, err)
		require.Len(t, got.Barriers, 1)
		assert.Equal(t, "access", got.Barriers[0].Barrier)
		assert.Equal(t, "inferred", got.Barriers[0].Source)
	})
}

func TestComputeMPR(t *testing.T) {
	t.Run("Single refill is unavailable", func(t *testing.T) {
		_, ok := computeMPR([]domain.RefillRecord{{FillDate: adherenceRef.AddDate(0, 0, -30), DaysSupply: 30}}, adherenceRef)
		assert.False(t, ok)
	})

	t.Run("Oversupply clamps to 1", func(t *testing.T) {
		mpr, ok := computeMPR([]domain.RefillRecord{
			{FillDate: adherenceRef.AddDate(0, 0, -50), DaysSupply: 90},
			{FillDate: adherenceRef.AddDate(0, 0, -20), DaysSupply: 90},
		}, adherenceRef)
		require.True(t, ok)
		assert.Equal(t, 1.0, mpr)
	})
}
