package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/cache"
	"github.com/renalworks/ckd-risk-engine/internal/domain"
	"github.com/renalworks/ckd-risk-engine/internal/engine"
)

// evaluateRequest asks for a full evaluation of either a submitted snapshot
// or a patient fetched through the configured provider.
type evaluateRequest struct {
	PatientID string                  `json:"patient_id,omitempty"`
	Snapshot  *domain.PatientSnapshot `json:"snapshot,omitempty"`
}

// modelRequest carries the snapshot for a single-model run.
type modelRequest struct {
	Snapshot *domain.PatientSnapshot `json:"snapshot"`
}

// scanRequest carries an explicit cohort, or asks for a roster scan when no
// snapshots are given.
type scanRequest struct {
	Snapshots []*domain.PatientSnapshot `json:"snapshots,omitempty"`
	ScanDate  *time.Time                `json:"scan_date,omitempty"`
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "malformed request body", err)
		return
	}

	snapshot := req.Snapshot
	if snapshot == nil {
		if req.PatientID == "" {
			s.respondError(c, http.StatusBadRequest, "patient_id or snapshot is required", nil)
			return
		}

		var err error
		snapshot, err = s.deps.Provider.GetSnapshot(c.Request.Context(), req.PatientID)
		if err != nil {
			s.respondDomainError(c, err)
			return
		}
	}

	var key string
	if s.deps.Cache != nil {
		key = cache.SnapshotKey(snapshot)
		if cached, ok := s.deps.Cache.Get(c.Request.Context(), key); ok {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	report, err := s.deps.Orchestrator.EvaluateSnapshot(c.Request.Context(), snapshot)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(c.Request.Context(), key, report, 0); err != nil {
			s.deps.Logger.WithError(err).Warn("Report cache write failed")
		}
	}

	if s.deps.Reports != nil {
		if err := s.deps.Reports.SaveReport(c.Request.Context(), report); err != nil {
			s.deps.Logger.WithFields(logrus.Fields{
				"report_id": report.ReportID,
				"error":     err,
			}).Error("Report archive write failed")
		}
	}

	s.hub.BroadcastCritical(report)

	c.JSON(http.StatusOK, report)
}

// handleModel runs exactly one model against a submitted snapshot, for
// point-of-care tooling that does not want a full report.
func (s *Server) handleModel(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Snapshot == nil {
		s.respondError(c, http.StatusBadRequest, "snapshot is required", err)
		return
	}

	snapshot := req.Snapshot
	if err := snapshot.Validate(); err != nil {
		s.respondDomainError(c, err)
		return
	}

	var (
		result interface{}
		err    error
	)

	switch c.Param("model") {
	case "egfr":
		var egfr float64
		egfr, err = engine.ResolveEGFR(snapshot)
		if err == nil {
			result = gin.H{"egfr": egfr}
		}
	case "kdigo":
		var egfr float64
		egfr, err = engine.ResolveEGFR(snapshot)
		if err == nil {
			result, err = engine.ClassifyKDIGO(&egfr, snapshot.UACR)
		}
	case "scored":
		result, err = engine.SCORED(snapshot)
	case "framingham":
		result, err = engine.FraminghamCKD(snapshot)
	case "nelson":
		result, err = engine.NelsonCKDPC(snapshot)
	case "prevent":
		result, err = engine.AHAPrevent(snapshot)
	case "bansal":
		result, err = engine.Bansal(snapshot)
	case "kfre":
		result, err = engine.KFRE(snapshot)
	case "gcua":
		result, err = engine.GCUA(snapshot)
	case "adherence":
		result, err = engine.ScoreAdherence(snapshot, s.now())
	case "uacrtrend":
		result, err = engine.MonitorUACR(snapshot, s.now())
	default:
		s.respondError(c, http.StatusNotFound, "unknown model: "+c.Param("model"), nil)
		return
	}

	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "malformed request body", err)
		return
	}

	snapshots := req.Snapshots
	if len(snapshots) == 0 {
		if s.deps.Lister == nil {
			s.respondError(c, http.StatusBadRequest, "snapshots are required when no patient roster is configured", nil)
			return
		}

		var err error
		snapshots, err = s.deps.Lister.ListSnapshots(c.Request.Context(), 10000, 0)
		if err != nil {
			s.respondDomainError(c, err)
			return
		}
	}

	scanDate := s.now()
	if req.ScanDate != nil {
		scanDate = *req.ScanDate
	}

	summary := s.deps.Scanner.ScanPopulation(c.Request.Context(), snapshots, scanDate)
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleGetReport(c *gin.Context) {
	if s.deps.Reports == nil {
		s.respondError(c, http.StatusNotImplemented, "report archive is not configured", nil)
		return
	}

	report, err := s.deps.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// respondDomainError maps engine and storage errors onto HTTP statuses:
// missing entities are 404, bad input is 400, and a snapshot too sparse to
// score is 422.
func (s *Server) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(c, http.StatusNotFound, "not found", err)
	case errors.Is(err, domain.ErrInvalidInput):
		s.respondError(c, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, domain.ErrInsufficientData):
		s.respondError(c, http.StatusUnprocessableEntity, "insufficient data", err)
	default:
		s.deps.Logger.WithError(err).Error("Request failed")
		s.respondError(c, http.StatusInternalServerError, "internal error", err)
	}
}

func (s *Server) respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{
		"error":          message,
		"correlation_id": c.GetString("correlation_id"),
	}
	if err != nil {
		body["detail"] = err.Error()
	}
	c.JSON(status, body)
}
