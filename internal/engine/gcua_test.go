package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

func TestAssignPhenotype_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		renal     float64
		cvd       float64
		mortality float64
		want      domain.PhenotypeType
	}{
		{"Mortality rule overrides high renal", 60, 5, 55, domain.PhenotypeSenescent},
		{"Mortality rule overrides high CVD", 2, 40, 50, domain.PhenotypeSenescent},
		{"High renal and high CVD", 20, 25, 10, domain.PhenotypeAcceleratedAger},
		{"High renal intermediate CVD", 20, 10, 10, domain.PhenotypeCardiorenalHigh},
		{"High renal low CVD", 20, 3, 10, domain.PhenotypeSilentRenal},
		{"Moderate renal with CVD signal", 8, 10, 10, domain.PhenotypeCardiorenalModerate},
		{"Moderate renal low CVD", 8, 3, 10, domain.PhenotypeRenalWatch},
		{"Low renal high CVD", 2, 25, 10, domain.PhenotypeVascularDominant},
		{"Low renal intermediate CVD", 2, 10, 10, domain.PhenotypeCVIntermediate},
		{"All low", 2, 3, 10, domain.PhenotypeLowRisk},
		{"Renal boundary at 15", 15, 3, 10, domain.PhenotypeSilentRenal},
		{"CVD boundary at 7.5", 2, 7.5, 10, domain.PhenotypeCVIntermediate},
		{"Mortality boundary at 50", 2, 3, 50, domain.PhenotypeSenescent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignPhenotypeFromRisks(tt.renal, tt.cvd, tt.mortality)
			assert.Equal(t, tt.want, got.Type)
			assert.NotEmpty(t, got.DisplayName)
			assert.NotEmpty(t, got.Strategy)
		})
	}
}

func TestAssignPhenotype_SenescentHomeMonitoring(t *testing.T) {
	// High organ risk still flags home monitoring under the mortality rule.
	withRenal := AssignPhenotypeFromRisks(60, 5, 55)
	assert.True(t, withRenal.Treatment.HomeMonitoring)

	withCVD := AssignPhenotypeFromRisks(2, 30, 55)
	assert.True(t, withCVD.Treatment.HomeMonitoring)

	without := AssignPhenotypeFromRisks(2, 3, 55)
	assert.False(t, without.Treatment.HomeMonitoring)
}

// Every grid point must land on a valid phenotype: the tree is total.
func TestAssignPhenotype_Totality(t *testing.T) {
	for renal := 0.0; renal <= 80; renal += 2.3 {
		for cvd := 0.0; cvd <= 80; cvd += 3.1 {
			for mortality := 0.0; mortality <= 80; mortality += 7.7 {
				got := AssignPhenotypeFromRisks(renal, cvd, mortality)
				assert.True(t, got.Type.IsValid())
			}
		}
	}
}

func TestGCUA_EligibilityGate(t *testing.T) {
	t.Run("Under 60 not eligible", func(t *testing.T) {
		s := healthySnapshot(55, domain.Male)
		s.EGFR = domain.Float(80)
		got, err := GCUA(s)
		require.NoError(t, err)
		assert.False(t, got.Eligible)
		assert.Nil(t, got.Phenotype)
		assert.NotEmpty(t, got.Reason)
	})

	t.Run("Established CKD not eligible", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(45)
		got, err := GCUA(s)
		require.NoError(t, err)
		assert.False(t, got.Eligible)
		assert.Contains(t, got.Reason, "CKD pathway")
	})

	t.Run("Boundary eGFR 60 not eligible", func(t *testing.T) {
		s := healthySnapshot(70, domain.Male)
		s.EGFR = domain.Float(60)
		got, err := GCUA(s)
		require.NoError(t, err)
		assert.False(t, got.Eligible)
	})
}

// Scenario: a healthy 65-year-old with preserved kidney function lands on
// the Low Risk phenotype.
func TestGCUA_HealthyElderlyIsLowRisk(t *testing.T) {
	s := healthySnapshot(65, domain.Male)
	s.EGFR = domain.Float(95)
	s.UACR = domain.Float(10)

	got, err := GCUA(s)
	require.NoError(t, err)
	require.True(t, got.Eligible)
	require.NotNil(t, got.Phenotype)

	assert.Less(t, got.RenalRiskPct, 5.0)
	assert.Less(t, got.CVDRiskPct, 7.5)
	assert.Less(t, got.MortalityRiskPct, 15.0)
	assert.Equal(t, domain.PhenotypeLowRisk, got.Phenotype.Type)
	assert.NotEmpty(t, got.BenefitBand)
}

func TestBenefitRatio(t *testing.T) {
	t.Run("Floor on the mortality denominator", func(t *testing.T) {
		ratio, band := benefitRatio(20, 10, 2)
		// preventable = 20, competing floored at 5 → ratio 4
		assert.Equal(t, 4.0, ratio)
		assert.Contains(t, band, "Strong")
	})

	t.Run("High mortality depresses the ratio", func(t *testing.T) {
		ratio, _ := benefitRatio(10, 10, 60)
		assert.Less(t, ratio, 0.75)
	})

	t.Run("CVD counts at half weight", func(t *testing.T) {
		ratio, _ := benefitRatio(0, 40, 10)
		// preventable = 20, competing = 10 − 10 = 5 (floored) → 4
		assert.Equal(t, 4.0, ratio)
	})
}
