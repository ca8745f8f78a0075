package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

var screeningRef = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestCheckScreeningGaps_MissingTests(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	s.Diabetes = true

	gaps := CheckScreeningGaps(s, domain.ColorOrange, screeningRef)
	// renal panel, uACR, HbA1c, lipid panel all never performed
	require.Len(t, gaps, 4)
	for _, gap := range gaps {
		assert.True(t, gap.Missing)
		assert.Equal(t, 90, gap.IntervalDays)
	}
}

func TestCheckScreeningGaps_OverdueTest(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	s.LastScreenings = map[string]time.Time{
		ScreenRenalPanel: screeningRef.AddDate(0, 0, -400),
		ScreenUACR:       screeningRef.AddDate(0, 0, -30),
	}

	gaps := CheckScreeningGaps(s, domain.ColorGreen, screeningRef)
	require.Len(t, gaps, 1)
	assert.Equal(t, ScreenRenalPanel, gaps[0].Test)
	assert.False(t, gaps[0].Missing)
	assert.Equal(t, 35, gaps[0].OverdueDays)
	assert.Equal(t, 365, gaps[0].IntervalDays)
}

func TestCheckScreeningGaps_IntervalTracksRiskColor(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	s.LastScreenings = map[string]time.Time{
		ScreenRenalPanel: screeningRef.AddDate(0, 0, -120),
		ScreenUACR:       screeningRef.AddDate(0, 0, -120),
	}

	// 120 days ago is fine annually but overdue on a 90-day interval.
	assert.Empty(t, CheckScreeningGaps(s, domain.ColorGreen, screeningRef))
	assert.Len(t, CheckScreeningGaps(s, domain.ColorRed, screeningRef), 2)
}

func TestCheckScreeningGaps_MissingSortsFirst(t *testing.T) {
	s := healthySnapshot(68, domain.Male)
	s.OnRASInhibitor = true
	s.LastScreenings = map[string]time.Time{
		ScreenRenalPanel: screeningRef.AddDate(0, 0, -400),
		ScreenUACR:       screeningRef.AddDate(0, 0, -400),
	}

	gaps := CheckScreeningGaps(s, domain.ColorYellow, screeningRef)
	require.Len(t, gaps, 3)
	assert.True(t, gaps[0].Missing) // potassium never performed
	assert.Equal(t, ScreenPotassium, gaps[0].Test)
	assert.False(t, gaps[1].Missing)
	assert.False(t, gaps[2].Missing)
}

func TestRequiredScreenings_Conditional(t *testing.T) {
	plain := healthySnapshot(68, domain.Male)
	assert.Equal(t, []string{ScreenRenalPanel, ScreenUACR}, requiredScreenings(plain))

	diabetic := healthySnapshot(68, domain.Male)
	diabetic.Diabetes = true
	assert.Contains(t, requiredScreenings(diabetic), ScreenHbA1c)
	assert.Contains(t, requiredScreenings(diabetic), ScreenLipids)

	onRAS := healthySnapshot(68, domain.Male)
	onRAS.OnRASInhibitor = true
	assert.Contains(t, requiredScreenings(onRAS), ScreenPotassium)
}
