package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Analyte codes used in the lab_results table. Values are stored in the
// units the engine expects (eGFR mL/min/1.73m², creatinine mg/dL, uACR mg/g).
const (
	AnalyteEGFR       = "egfr"
	AnalyteCreatinine = "creatinine"
	AnalyteUACR       = "uacr"
	AnalyteHbA1c      = "hba1c"
	AnalyteSystolic   = "systolic_bp"
	AnalyteDiastolic  = "diastolic_bp"
	AnalytePotassium  = "potassium"
	AnalyteHemoglobin = "hemoglobin"
	AnalytePhosphorus = "phosphorus"
	AnalyteBMI        = "bmi"
	AnalyteNTProBNP   = "nt_probnp"
	AnalyteTroponin   = "troponin"
	AnalyteFrailty    = "frailty_score"
	AnalyteGaitSpeed  = "gait_speed"
	AnalyteSelfReport = "adherence_self_report"
)

// SnapshotRepository assembles point-in-time patient snapshots from the
// relational store. It implements domain.SnapshotProvider.
type SnapshotRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
	now func() time.Time
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *pgxpool.Pool, logger *logrus.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: logger,
		now: time.Now,
	}
}

// WithClock overrides the repository clock. Age and trend derivations use
// the clock so tests can pin a reference date.
func (r *SnapshotRepository) WithClock(now func() time.Time) *SnapshotRepository {
	r.now = now
	return r
}

// GetSnapshot loads the patient row and folds the patient's lab history,
// refills, and screening dates into a PatientSnapshot. Labs appear as
// pointers; an analyte never measured stays nil.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, patientID string) (*domain.PatientSnapshot, error) {
	s, err := r.loadPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if err := r.loadLabs(ctx, s); err != nil {
		return nil, err
	}
	if err := r.loadMedications(ctx, s); err != nil {
		return nil, err
	}
	if err := r.loadRefills(ctx, s); err != nil {
		return nil, err
	}
	if err := r.loadScreenings(ctx, s); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": patientID,
		"age":        s.Age,
		"has_egfr":   s.EGFR != nil,
		"has_uacr":   s.UACR != nil,
	}).Debug("Snapshot assembled")

	return s, nil
}

func (r *SnapshotRepository) loadPatient(ctx context.Context, patientID string) (*domain.PatientSnapshot, error) {
	query := `
		SELECT patient_id, mrn, name, date_of_birth, sex, smoking_status,
			   diabetes, hypertension, cardiovascular_disease, heart_failure,
			   atrial_fibrillation, peripheral_vascular_disease,
			   nephrology_referral, on_nephrotoxic_meds,
			   on_ras_inhibitor, on_sglt2i, reported_barriers
		FROM patients
		WHERE patient_id = $1`

	var s domain.PatientSnapshot
	var dob time.Time
	var smoking string

	err := r.db.QueryRow(ctx, query, patientID).Scan(
		&s.PatientID,
		&s.MRN,
		&s.Name,
		&dob,
		&s.Sex,
		&smoking,
		&s.Diabetes,
		&s.Hypertension,
		&s.CardiovascularDz,
		&s.HeartFailure,
		&s.AtrialFibrillation,
		&s.PeripheralVascular,
		&s.NephrologyReferral,
		&s.OnNephrotoxicMeds,
		&s.OnRASInhibitor,
		&s.OnSGLT2i,
		&s.ReportedBarriers,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("patient %s: %w", patientID, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to load patient")
		return nil, fmt.Errorf("loading patient: %w", err)
	}

	s.Smoking = domain.SmokingStatus(smoking)
	s.Age = ageAt(dob, r.now())

	return &s, nil
}

// loadLabs walks the patient's lab history in chronological order, keeping
// the latest value per analyte and deriving the longitudinal markers the
// trend checks need: full uACR history, baseline eGFR (first measurement),
// and percent change between the two most recent eGFR values.
func (r *SnapshotRepository) loadLabs(ctx context.Context, s *domain.PatientSnapshot) error {
	query := `
		SELECT analyte, value, measured_at
		FROM lab_results
		WHERE patient_id = $1
		ORDER BY measured_at ASC`

	rows, err := r.db.Query(ctx, query, s.PatientID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": s.PatientID,
			"error":      err,
		}).Error("Failed to load lab results")
		return fmt.Errorf("loading lab results: %w", err)
	}
	defer rows.Close()

	latest := map[string]**float64{
		AnalyteEGFR:       &s.EGFR,
		AnalyteCreatinine: &s.CreatinineMgDL,
		AnalyteUACR:       &s.UACR,
		AnalyteHbA1c:      &s.HbA1c,
		AnalyteSystolic:   &s.SystolicBP,
		AnalyteDiastolic:  &s.DiastolicBP,
		AnalytePotassium:  &s.Potassium,
		AnalyteHemoglobin: &s.Hemoglobin,
		AnalytePhosphorus: &s.Phosphorus,
		AnalyteBMI:        &s.BMI,
		AnalyteNTProBNP:   &s.NTProBNP,
		AnalyteTroponin:   &s.Troponin,
		AnalyteFrailty:    &s.FrailtyScore,
		AnalyteGaitSpeed:  &s.GaitSpeedMS,
		AnalyteSelfReport: &s.SelfReportScore,
	}

	var egfrValues []float64
	for rows.Next() {
		var analyte string
		var value float64
		var measuredAt time.Time

		if err := rows.Scan(&analyte, &value, &measuredAt); err != nil {
			return fmt.Errorf("scanning lab result row: %w", err)
		}

		if target, ok := latest[analyte]; ok {
			*target = domain.Float(value)
		}

		switch analyte {
		case AnalyteEGFR:
			egfrValues = append(egfrValues, value)
		case AnalyteUACR:
			s.UACRHistory = append(s.UACRHistory, domain.LabResult{Value: value, Date: measuredAt})
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating lab result rows: %w", err)
	}

	if len(egfrValues) > 0 {
		s.EGFRBaseline = domain.Float(egfrValues[0])
	}
	if len(egfrValues) >= 2 {
		prev := egfrValues[len(egfrValues)-2]
		curr := egfrValues[len(egfrValues)-1]
		if prev > 0 {
			s.EGFRChangePct = domain.Float((curr - prev) / prev * 100)
		}
	}

	return nil
}

func (r *SnapshotRepository) loadMedications(ctx context.Context, s *domain.PatientSnapshot) error {
	query := `
		SELECT name
		FROM medications
		WHERE patient_id = $1 AND active
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, s.PatientID)
	if err != nil {
		return fmt.Errorf("loading medications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning medication row: %w", err)
		}
		s.ActiveMedications = append(s.ActiveMedications, name)
	}

	return rows.Err()
}

func (r *SnapshotRepository) loadRefills(ctx context.Context, s *domain.PatientSnapshot) error {
	query := `
		SELECT fill_date, days_supply
		FROM refills
		WHERE patient_id = $1
		ORDER BY fill_date ASC`

	rows, err := r.db.Query(ctx, query, s.PatientID)
	if err != nil {
		return fmt.Errorf("loading refills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.RefillRecord
		if err := rows.Scan(&rec.FillDate, &rec.DaysSupply); err != nil {
			return fmt.Errorf("scanning refill row: %w", err)
		}
		s.Refills = append(s.Refills, rec)
	}

	return rows.Err()
}

func (r *SnapshotRepository) loadScreenings(ctx context.Context, s *domain.PatientSnapshot) error {
	query := `
		SELECT test_code, MAX(performed_at)
		FROM screenings
		WHERE patient_id = $1
		GROUP BY test_code`

	rows, err := r.db.Query(ctx, query, s.PatientID)
	if err != nil {
		return fmt.Errorf("loading screenings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var performedAt time.Time
		if err := rows.Scan(&code, &performedAt); err != nil {
			return fmt.Errorf("scanning screening row: %w", err)
		}
		if s.LastScreenings == nil {
			s.LastScreenings = make(map[string]time.Time)
		}
		s.LastScreenings[code] = performedAt
	}

	return rows.Err()
}

// ListPatientIDs returns all patient IDs in a stable order, for population
// scans that fetch snapshots one at a time.
func (r *SnapshotRepository) ListPatientIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT patient_id FROM patients ORDER BY patient_id`)
	if err != nil {
		r.log.WithError(err).Error("Failed to list patient IDs")
		return nil, fmt.Errorf("listing patient IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning patient ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient IDs: %w", err)
	}

	return ids, nil
}

// ListSnapshots assembles snapshots for a page of patients. Patients whose
// assembly fails are skipped with a warning rather than failing the batch.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, limit, offset int) ([]*domain.PatientSnapshot, error) {
	query := `
		SELECT patient_id
		FROM patients
		ORDER BY patient_id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning patient ID: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}

	snapshots := make([]*domain.PatientSnapshot, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSnapshot(ctx, id)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"patient_id": id,
				"error":      err,
			}).Warn("Skipping patient with unloadable snapshot")
			continue
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, nil
}

func ageAt(dob, ref time.Time) int {
	years := ref.Year() - dob.Year()
	if ref.YearDay() < dob.YearDay() {
		years--
	}
	return years
}
