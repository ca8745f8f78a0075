package domain

// AdherenceSignal identifies one of the three adherence measurement sources.
type AdherenceSignal string

const (
	SignalMPR        AdherenceSignal = "pharmacy_mpr"
	SignalLabTrend   AdherenceSignal = "lab_trend"
	SignalSelfReport AdherenceSignal = "self_report"
)

// AdherenceComponent is one measured adherence signal: a 0–1 score, an
// availability flag, and its weight. Components with Available=false
// contribute zero weight and the remaining weights are renormalized before
// combination; an unavailable signal is never treated as zero adherence.
type AdherenceComponent struct {
	Signal    AdherenceSignal `json:"signal"`
	Score     float64         `json:"score"`
	Available bool            `json:"available"`
	Weight    float64         `json:"weight"`
	Detail    string          `json:"detail,omitempty"`
}

// AdherenceBarrier is one identified obstacle to adherence with its
// severity.
type AdherenceBarrier struct {
	Barrier  string        `json:"barrier"`
	Severity AlertSeverity `json:"severity"`
	Source   string        `json:"source"` // "self_report" or "inferred"
}

// AdherenceResult is the composite adherence assessment: the weighted score,
// its category and confidence, the per-signal breakdown, detected barriers,
// and the escalation produced when adherence and lab trends disagree.
type AdherenceResult struct {
	CompositeScore float64              `json:"composite_score"`
	Category       AdherenceCategory    `json:"category"`
	Confidence     ConfidenceLevel      `json:"confidence"`
	Components     []AdherenceComponent `json:"components"`
	Barriers       []AdherenceBarrier   `json:"barriers,omitempty"`
	LabsWorsening  bool                 `json:"labs_worsening"`

	// AlertSeverity escalates to CRITICAL when poor adherence coincides with
	// worsening labs, and to HIGH when good adherence coincides with
	// worsening labs (treatment inadequacy, a distinct failure mode).
	AlertSeverity AlertSeverity `json:"alert_severity"`
	Interpretation string       `json:"interpretation"`
}
