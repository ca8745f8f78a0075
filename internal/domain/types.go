// Package domain contains core business entities and types for chronic kidney
// disease (CKD) risk stratification following the KDIGO 2024 clinical practice
// guideline for the evaluation and management of CKD.
//
// Reference: KDIGO 2024 Clinical Practice Guideline, Kidney Int. 105(4S):S117-S314.
package domain

// RiskCategory represents the discrete risk category produced by a scoring
// model. Values are ordered from lowest to highest clinical concern. The
// exact numeric thresholds that map a risk value to a category are owned by
// each model.
type RiskCategory string

const (
	RiskVeryLow  RiskCategory = "very_low"
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
	RiskVeryHigh RiskCategory = "very_high"
)

// RiskColor represents the KDIGO heat-map color derived from the combined
// GFR and albuminuria categories. The green/yellow/orange/red matrix is the
// single source of truth for monitoring intensity.
type RiskColor string

const (
	ColorGreen  RiskColor = "green"
	ColorYellow RiskColor = "yellow"
	ColorOrange RiskColor = "orange"
	ColorRed    RiskColor = "red"
)

// GFRCategory represents the KDIGO GFR category (G1 through G5, with G3
// split into G3a and G3b).
type GFRCategory string

const (
	G1  GFRCategory = "G1"
	G2  GFRCategory = "G2"
	G3a GFRCategory = "G3a"
	G3b GFRCategory = "G3b"
	G4  GFRCategory = "G4"
	G5  GFRCategory = "G5"
)

// AlbuminuriaCategory represents the KDIGO albuminuria category derived from
// the urinary albumin-to-creatinine ratio (uACR, mg/g). AMissing marks a
// patient whose uACR has never been measured; it is deliberately distinct
// from A1 so a missing measurement is never mistaken for a normal one.
type AlbuminuriaCategory string

const (
	A1       AlbuminuriaCategory = "A1"
	A2       AlbuminuriaCategory = "A2"
	A3       AlbuminuriaCategory = "A3"
	AMissing AlbuminuriaCategory = "Ax (missing)"
)

// Sex represents biological sex as used by the estimating equations.
type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

// SmokingStatus represents the patient's smoking history.
type SmokingStatus string

const (
	SmokerNever   SmokingStatus = "never"
	SmokerFormer  SmokingStatus = "former"
	SmokerCurrent SmokingStatus = "current"
)

// AlertSeverity represents the urgency of a clinical alert. Ordering matters:
// reports list CRITICAL alerts before HIGH, HIGH before MODERATE, and so on.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityModerate AlertSeverity = "MODERATE"
	SeverityLow      AlertSeverity = "LOW"
)

// AdherenceCategory represents the composite medication-adherence band.
type AdherenceCategory string

const (
	AdherenceGood       AdherenceCategory = "Good"
	AdherenceSuboptimal AdherenceCategory = "Suboptimal"
	AdherencePoor       AdherenceCategory = "Poor"
)

// ConfidenceLevel represents confidence in a computed result, used alongside
// adherence categorization where signal availability varies per patient.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// MedicationGuidance represents the dose guidance for a drug at the
// patient's kidney function level.
type MedicationGuidance string

const (
	GuidanceSafe            MedicationGuidance = "safe"
	GuidanceCaution         MedicationGuidance = "caution"
	GuidanceDoseReduce      MedicationGuidance = "dose_reduce"
	GuidanceContraindicated MedicationGuidance = "contraindicated"
)

// IsValid reports whether the risk category is one of the defined bands.
// Only valid categories may enter clinical decision-making.
func (rc RiskCategory) IsValid() bool {
	switch rc {
	case RiskVeryLow, RiskLow, RiskModerate, RiskHigh, RiskVeryHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk category.
func (rc RiskCategory) String() string {
	return string(rc)
}

// Rank returns the ordinal position of the category, lowest risk first.
// Used when sorting alerts and comparing classifications across models.
func (rc RiskCategory) Rank() int {
	switch rc {
	case RiskVeryLow:
		return 0
	case RiskLow:
		return 1
	case RiskModerate:
		return 2
	case RiskHigh:
		return 3
	case RiskVeryHigh:
		return 4
	default:
		return -1
	}
}

// IsValid reports whether the risk color is one of the four KDIGO heat-map
// colors.
func (c RiskColor) IsValid() bool {
	switch c {
	case ColorGreen, ColorYellow, ColorOrange, ColorRed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk color.
func (c RiskColor) String() string {
	return string(c)
}

// MonitoringIntervalDays returns the maximum number of days between required
// kidney-panel screenings for a given risk color. Screening-gap checks flag
// any test older than this interval.
func (c RiskColor) MonitoringIntervalDays() int {
	switch c {
	case ColorRed, ColorOrange:
		return 90
	case ColorYellow:
		return 180
	default:
		return 365
	}
}

// LogFields returns structured logging fields for audit trails. Risk-color
// transitions drive monitoring decisions, so every classification is logged
// with its derived interval.
func (c RiskColor) LogFields() map[string]any {
	return map[string]any{
		"risk_color":               string(c),
		"is_valid":                 c.IsValid(),
		"monitoring_interval_days": c.MonitoringIntervalDays(),
	}
}

// IsValid reports whether the GFR category is defined by KDIGO.
func (g GFRCategory) IsValid() bool {
	switch g {
	case G1, G2, G3a, G3b, G4, G5:
		return true
	default:
		return false
	}
}

// String returns the string representation of the GFR category.
func (g GFRCategory) String() string {
	return string(g)
}

// IsValid reports whether the albuminuria category is defined. AMissing is a
// valid category: it encodes an unmeasured uACR, which is itself clinically
// actionable.
func (a AlbuminuriaCategory) IsValid() bool {
	switch a {
	case A1, A2, A3, AMissing:
		return true
	default:
		return false
	}
}

// String returns the string representation of the albuminuria category.
func (a AlbuminuriaCategory) String() string {
	return string(a)
}

// IsValid reports whether the sex value is one the estimating equations
// accept.
func (s Sex) IsValid() bool {
	return s == Male || s == Female
}

// String returns the string representation of the sex value.
func (s Sex) String() string {
	return string(s)
}

// IsValid reports whether the smoking status is defined.
func (s SmokingStatus) IsValid() bool {
	switch s {
	case SmokerNever, SmokerFormer, SmokerCurrent:
		return true
	default:
		return false
	}
}

// IsValid reports whether the alert severity is defined.
func (s AlertSeverity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the alert severity.
func (s AlertSeverity) String() string {
	return string(s)
}

// Rank returns the ordinal urgency of the severity, most urgent first.
// Report assembly sorts alerts by ascending rank.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityModerate:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// IsValid reports whether the adherence category is defined.
func (a AdherenceCategory) IsValid() bool {
	switch a {
	case AdherenceGood, AdherenceSuboptimal, AdherencePoor:
		return true
	default:
		return false
	}
}

// IsValid reports whether the confidence level is defined.
func (cl ConfidenceLevel) IsValid() bool {
	switch cl {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// IsValid reports whether the medication guidance is defined.
func (g MedicationGuidance) IsValid() bool {
	switch g {
	case GuidanceSafe, GuidanceCaution, GuidanceDoseReduce, GuidanceContraindicated:
		return true
	default:
		return false
	}
}

// String returns the string representation of the medication guidance.
func (g MedicationGuidance) String() string {
	return string(g)
}
