package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Error(t *testing.T) {
	err := NewEngineError(CodeInvalidInput, "creatinine out of range", "value 25 exceeds 20 mg/dL", "req-1")

	assert.Equal(t, "INVALID_INPUT: creatinine out of range", err.Error())
	assert.False(t, err.Timestamp.IsZero())
	assert.Equal(t, "req-1", err.RequestID)
}

func TestValidationError_UnwrapsToInvalidInput(t *testing.T) {
	var err error = &ValidationError{Field: "creatinine_mgdl", Message: "must be >0", Value: -1.0}

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "creatinine_mgdl")
}

func TestInsufficientDataError_UnwrapsToSentinel(t *testing.T) {
	var err error = &InsufficientDataError{Marker: "uACR", Model: "KFRE"}

	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Equal(t, "KFRE requires uACR but it is absent", err.Error())
}

func TestPatientSnapshot_Validate(t *testing.T) {
	valid := func() *PatientSnapshot {
		return &PatientSnapshot{
			PatientID: "P-001",
			Age:       68,
			Sex:       Female,
			EGFR:      Float(42),
		}
	}

	t.Run("valid snapshot", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("missing patient ID", func(t *testing.T) {
		s := valid()
		s.PatientID = ""
		assert.Error(t, s.Validate())
	})

	t.Run("no kidney marker is insufficient data", func(t *testing.T) {
		s := valid()
		s.EGFR = nil
		s.CreatinineMgDL = nil
		err := s.Validate()
		assert.True(t, errors.Is(err, ErrInsufficientData))
	})

	t.Run("creatinine alone is enough", func(t *testing.T) {
		s := valid()
		s.EGFR = nil
		s.CreatinineMgDL = Float(1.4)
		assert.NoError(t, s.Validate())
	})

	t.Run("out-of-range creatinine", func(t *testing.T) {
		s := valid()
		s.CreatinineMgDL = Float(25)
		err := s.Validate()
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("invalid sex", func(t *testing.T) {
		s := valid()
		s.Sex = "other"
		assert.Error(t, s.Validate())
	})

	t.Run("zero age", func(t *testing.T) {
		s := valid()
		s.Age = 0
		assert.Error(t, s.Validate())
	})
}

func TestPatientSnapshot_Comorbidities_Order(t *testing.T) {
	s := &PatientSnapshot{
		Diabetes:         true,
		HeartFailure:     true,
		CardiovascularDz: true,
	}

	assert.Equal(t, []string{"Diabetes", "Cardiovascular Disease", "Heart Failure"}, s.Comorbidities())
}
