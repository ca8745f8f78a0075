package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// GFR category cut points (mL/min/1.73m²), highest first. The boundaries
// {90, 60, 45, 30, 15} follow KDIGO; values on a boundary belong to the
// higher-function category (eGFR 60 is G2, eGFR 15 is G4).
var gfrCutPoints = []struct {
	min      float64
	category domain.GFRCategory
}{
	{90, domain.G1},
	{60, domain.G2},
	{45, domain.G3a},
	{30, domain.G3b},
	{15, domain.G4},
	{0, domain.G5},
}

// riskColorMatrix is the KDIGO 4×3 heat map, the single source of truth for
// risk-color assignment. Rows collapse G1/G2 and G4/G5 exactly as the
// guideline table does.
//
//	GFR\Alb   A1      A2      A3
//	G1/G2     green   yellow  orange
//	G3a       yellow  orange  red
//	G3b       orange  red     red
//	G4/G5     red     red     red
var riskColorMatrix = map[domain.GFRCategory]map[domain.AlbuminuriaCategory]domain.RiskColor{
	domain.G1:  {domain.A1: domain.ColorGreen, domain.A2: domain.ColorYellow, domain.A3: domain.ColorOrange},
	domain.G2:  {domain.A1: domain.ColorGreen, domain.A2: domain.ColorYellow, domain.A3: domain.ColorOrange},
	domain.G3a: {domain.A1: domain.ColorYellow, domain.A2: domain.ColorOrange, domain.A3: domain.ColorRed},
	domain.G3b: {domain.A1: domain.ColorOrange, domain.A2: domain.ColorRed, domain.A3: domain.ColorRed},
	domain.G4:  {domain.A1: domain.ColorRed, domain.A2: domain.ColorRed, domain.A3: domain.ColorRed},
	domain.G5:  {domain.A1: domain.ColorRed, domain.A2: domain.ColorRed, domain.A3: domain.ColorRed},
}

var monitoringByColor = map[domain.RiskColor]string{
	domain.ColorGreen:  "Annually",
	domain.ColorYellow: "Every 6 months",
	domain.ColorOrange: "Every 3 months",
	domain.ColorRed:    "Every 1-3 months",
}

var bpTargetByColor = map[domain.RiskColor]string{
	domain.ColorGreen:  "<140/90 mmHg",
	domain.ColorYellow: "<130/80 mmHg",
	domain.ColorOrange: "<130/80 mmHg",
	domain.ColorRed:    "<130/80 mmHg",
}

// ClassifyGFR maps an eGFR value to its KDIGO GFR category.
func ClassifyGFR(egfr float64) domain.GFRCategory {
	for _, cp := range gfrCutPoints {
		if egfr >= cp.min {
			return cp.category
		}
	}
	return domain.G5
}

// ClassifyAlbuminuria maps a uACR value (mg/g) to its KDIGO category:
// A1 <30, A2 30–300 inclusive, A3 >300.
func ClassifyAlbuminuria(uacr float64) domain.AlbuminuriaCategory {
	switch {
	case uacr < 30:
		return domain.A1
	case uacr <= 300:
		return domain.A2
	default:
		return domain.A3
	}
}

// ClassifyKDIGO combines eGFR and uACR into the full KDIGO staging result:
// GFR category, albuminuria category, heat-map risk color, derived CKD stage,
// and the monitoring-frequency and BP-target guidance keyed by color.
//
// A nil uACR degrades the albuminuria category to "Ax (missing)" and flags
// UACRMissing; the risk color is then computed from the A1 column of the
// matrix but the missing measurement is surfaced, never hidden. A nil eGFR
// with a nil uACR is InsufficientData.
func ClassifyKDIGO(egfr *float64, uacr *float64) (*domain.KDIGOResult, error) {
	if egfr == nil && uacr == nil {
		return nil, &domain.InsufficientDataError{Marker: "eGFR and uACR", Model: "KDIGO"}
	}
	if egfr == nil {
		return nil, &domain.InsufficientDataError{Marker: "eGFR", Model: "KDIGO"}
	}

	gfrCat := ClassifyGFR(*egfr)

	albCat := domain.AMissing
	matrixCol := domain.A1 // explicit policy: matrix lookup falls back to A1 while the gap is flagged
	uacrMissing := true
	if uacr != nil {
		albCat = ClassifyAlbuminuria(*uacr)
		matrixCol = albCat
		uacrMissing = false
	}

	color := riskColorMatrix[gfrCat][matrixCol]

	stage, hasCKD := deriveCKDStage(*egfr, uacr)

	return &domain.KDIGOResult{
		GFRCategory:         gfrCat,
		AlbuminuriaCategory: albCat,
		RiskColor:           color,
		HealthState:         fmt.Sprintf("%s/%s", gfrCat, albCat),
		CKDStage:            stage,
		HasCKD:              hasCKD,
		UACRMissing:         uacrMissing,
		MonitoringFrequency: monitoringByColor[color],
		BPTarget:            bpTargetByColor[color],
	}, nil
}

// deriveCKDStage applies the CKD definition: eGFR <60 is CKD regardless of
// albuminuria; eGFR ≥60 qualifies as CKD stage 1 or 2 only with uACR ≥30.
// Patients with preserved GFR and no albuminuria are "at risk, no CKD"
// (stage 0).
func deriveCKDStage(egfr float64, uacr *float64) (stage int, hasCKD bool) {
	albuminuric := uacr != nil && *uacr >= 30

	switch {
	case egfr < 15:
		return 5, true
	case egfr < 30:
		return 4, true
	case egfr < 60:
		return 3, true
	case egfr < 90:
		if albuminuric {
			return 2, true
		}
		return 0, false
	default:
		if albuminuric {
			return 1, true
		}
		return 0, false
	}
}

// RiskCategoryForColor maps the heat-map color onto the shared ordered risk
// categories used in report summaries.
func RiskCategoryForColor(color domain.RiskColor) domain.RiskCategory {
	switch color {
	case domain.ColorGreen:
		return domain.RiskLow
	case domain.ColorYellow:
		return domain.RiskModerate
	case domain.ColorOrange:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}
