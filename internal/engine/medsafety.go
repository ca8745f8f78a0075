package engine

import (
	"strings"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Medication safety at reduced eGFR. This is deliberately a per-drug lookup
// rather than a generic rules engine: renal dosing guidance differs in kind
// between drugs (hard contraindication vs titration vs monitoring), so each
// drug carries its own ordered threshold list. Thresholds follow KDIGO 2024
// and the manufacturer renal-dosing labels.

// medThreshold is one eGFR band for a drug, checked in order; the first
// matching band wins. MinEGFR is inclusive.
type medThreshold struct {
	minEGFR  float64
	guidance domain.MedicationGuidance
	detail   string
}

// medEntry describes one drug or drug class: the names that identify it in a
// medication list and its ordered eGFR bands from most to least impaired.
type medEntry struct {
	class string
	names []string
	bands []medThreshold
}

var medSafetyTable = []medEntry{
	{
		class: "Metformin",
		names: []string{"metformin", "glucophage"},
		bands: []medThreshold{
			{minEGFR: 60, guidance: domain.GuidanceSafe, detail: "No renal dose adjustment required."},
			{minEGFR: 45, guidance: domain.GuidanceCaution, detail: "Continue; recheck eGFR every 3-6 months."},
			{minEGFR: 30, guidance: domain.GuidanceDoseReduce, detail: "Maximum 1000 mg/day; do not initiate in this range."},
			{minEGFR: 0, guidance: domain.GuidanceContraindicated, detail: "Stop: lactic acidosis risk at eGFR <30."},
		},
	},
	{
		class: "NSAIDs",
		names: []string{"ibuprofen", "naproxen", "diclofenac", "celecoxib", "meloxicam", "indomethacin", "ketorolac", "nsaid"},
		bands: []medThreshold{
			{minEGFR: 60, guidance: domain.GuidanceCaution, detail: "Short courses only; avoid with RAS inhibitor plus diuretic."},
			{minEGFR: 30, guidance: domain.GuidanceCaution, detail: "Avoid regular use; prefer non-NSAID analgesia."},
			{minEGFR: 0, guidance: domain.GuidanceContraindicated, detail: "Avoid entirely: high risk of acute kidney injury."},
		},
	},
	{
		class: "Gabapentin",
		names: []string{"gabapentin", "neurontin"},
		bands: []medThreshold{
			{minEGFR: 60, guidance: domain.GuidanceSafe, detail: "No renal dose adjustment required."},
			{minEGFR: 30, guidance: domain.GuidanceDoseReduce, detail: "Maximum 700 mg/day."},
			{minEGFR: 15, guidance: domain.GuidanceDoseReduce, detail: "Maximum 300 mg/day."},
			{minEGFR: 0, guidance: domain.GuidanceDoseReduce, detail: "Maximum 300 mg every other day; monitor for toxicity."},
		},
	},
	{
		class: "Allopurinol",
		names: []string{"allopurinol", "zyloprim"},
		bands: []medThreshold{
			{minEGFR: 60, guidance: domain.GuidanceSafe, detail: "No renal dose adjustment required."},
			{minEGFR: 30, guidance: domain.GuidanceCaution, detail: "Titrate slowly; watch for hypersensitivity."},
			{minEGFR: 0, guidance: domain.GuidanceDoseReduce, detail: "Start 50 mg/day, titrate to urate target."},
		},
	},
	{
		class: "Digoxin",
		names: []string{"digoxin", "lanoxin"},
		bands: []medThreshold{
			{minEGFR: 60, guidance: domain.GuidanceSafe, detail: "Standard dosing with routine level checks."},
			{minEGFR: 30, guidance: domain.GuidanceCaution, detail: "Check levels; renally cleared, narrow therapeutic window."},
			{minEGFR: 0, guidance: domain.GuidanceDoseReduce, detail: "Reduce dose 50% and monitor levels closely."},
		},
	},
	{
		class: "RAS inhibitors",
		names: []string{"lisinopril", "enalapril", "ramipril", "perindopril", "losartan", "valsartan", "irbesartan", "candesartan", "olmesartan", "telmisartan"},
		bands: []medThreshold{
			{minEGFR: 30, guidance: domain.GuidanceSafe, detail: "Renoprotective; continue with periodic potassium checks."},
			{minEGFR: 15, guidance: domain.GuidanceCaution, detail: "Continue if tolerated; monitor potassium and creatinine within 2 weeks of any dose change."},
			{minEGFR: 0, guidance: domain.GuidanceCaution, detail: "Nephrology decision; do not stop reflexively."},
		},
	},
	{
		class: "SGLT2 inhibitors",
		names: []string{"empagliflozin", "dapagliflozin", "canagliflozin", "ertugliflozin"},
		bands: []medThreshold{
			{minEGFR: 45, guidance: domain.GuidanceSafe, detail: "Full renal and cardiovascular benefit."},
			{minEGFR: 20, guidance: domain.GuidanceCaution, detail: "Reduced glycemic effect but renal benefit persists; continue."},
			{minEGFR: 0, guidance: domain.GuidanceContraindicated, detail: "Do not initiate below eGFR 20; may continue until dialysis if already on."},
		},
	},
	{
		class: "Iodinated contrast",
		names: []string{"contrast", "contrast dye", "iodinated contrast"},
		bands: []medThreshold{
			{minEGFR: 60, guidance: domain.GuidanceSafe, detail: "Standard protocol."},
			{minEGFR: 30, guidance: domain.GuidanceCaution, detail: "Pre-hydrate; minimize volume; recheck creatinine at 48-72h."},
			{minEGFR: 0, guidance: domain.GuidanceContraindicated, detail: "Only if imaging is essential; nephrology consult and prophylaxis."},
		},
	},
	{
		class: "Statins",
		names: []string{"atorvastatin", "rosuvastatin", "simvastatin", "pravastatin", "pitavastatin"},
		bands: []medThreshold{
			{minEGFR: 30, guidance: domain.GuidanceSafe, detail: "No renal dose adjustment required."},
			{minEGFR: 0, guidance: domain.GuidanceDoseReduce, detail: "Cap rosuvastatin at 10 mg/day; other statins standard dosing."},
		},
	},
}

// guidanceForEGFR picks the first band whose floor the eGFR meets.
func guidanceForEGFR(entry medEntry, egfr float64) medThreshold {
	for _, band := range entry.bands {
		if egfr >= band.minEGFR {
			return band
		}
	}
	return entry.bands[len(entry.bands)-1]
}

// matchesEntry reports whether a medication list item names this entry.
func matchesEntry(entry medEntry, med string) bool {
	m := strings.ToLower(strings.TrimSpace(med))
	for _, name := range entry.names {
		if strings.Contains(m, name) {
			return true
		}
	}
	return false
}

// CheckMedicationSafety walks the patient's active medication list against
// the renal dosing table at the given eGFR. The RAS inhibitor entry is
// additionally overridden to a hold recommendation when potassium is above
// 5.5 mEq/L, whatever the eGFR says.
func CheckMedicationSafety(s *domain.PatientSnapshot, egfr float64) []domain.MedicationFinding {
	findings := make([]domain.MedicationFinding, 0, len(s.ActiveMedications))

	seen := make(map[string]bool, len(medSafetyTable))
	for _, med := range s.ActiveMedications {
		for _, entry := range medSafetyTable {
			if !matchesEntry(entry, med) || seen[entry.class] {
				continue
			}
			seen[entry.class] = true

			band := guidanceForEGFR(entry, egfr)
			guidance, detail := band.guidance, band.detail
			if entry.class == "RAS inhibitors" && s.Potassium != nil && *s.Potassium > 5.5 {
				guidance = domain.GuidanceContraindicated
				detail = "Hold: potassium above 5.5 mEq/L; recheck after correction before resuming."
			}

			findings = append(findings, domain.MedicationFinding{
				Drug:     entry.class,
				Guidance: guidance,
				Detail:   detail,
			})
		}
	}

	return findings
}
