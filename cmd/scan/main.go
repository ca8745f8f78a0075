// Package main provides the standalone batch scanner. It needs no external
// services: snapshots come from a JSON file and reports are archived to a
// local SQLite file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/config"
	"github.com/renalworks/ckd-risk-engine/internal/domain"
	"github.com/renalworks/ckd-risk-engine/internal/engine"
	"github.com/renalworks/ckd-risk-engine/internal/reportstore"
)

func main() {
	var (
		inputPath       = flag.String("input", "", "path to a JSON file holding an array of patient snapshots (required)")
		evaluateFlagged = flag.Bool("evaluate-flagged", false, "run the full evaluation pipeline on flagged patients and archive the reports")
		export          = flag.Bool("export", false, "also write the scan summary to a timestamped file in the export directory")
		pretty          = flag.Bool("pretty", true, "indent the scan summary output")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: scan -input snapshots.json [-evaluate-flagged]")
		os.Exit(2)
	}

	cfg := config.LoadLiteConfig()
	logger := newLogger(cfg)

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	snapshots, err := loadSnapshots(*inputPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load snapshots")
	}

	logger.WithFields(logrus.Fields{
		"patients": len(snapshots),
		"input":    *inputPath,
	}).Info("Starting population scan")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, aborting scan")
		cancel()
	}()

	scanner := engine.NewScanner(logger)
	summary := scanner.ScanPopulation(ctx, snapshots, time.Now())

	if err := writeSummary(os.Stdout, summary, *pretty); err != nil {
		logger.WithError(err).Fatal("Failed to write scan summary")
	}

	if *export {
		path, err := exportSummary(cfg.ExportDir(), summary)
		if err != nil {
			logger.WithError(err).Fatal("Failed to export scan summary")
		}
		logger.WithField("export", path).Info("Scan summary exported")
	}

	if *evaluateFlagged {
		if err := archiveFlagged(ctx, cfg, logger, snapshots, summary); err != nil {
			logger.WithError(err).Fatal("Failed to archive flagged patient reports")
		}
	}

	logger.WithFields(logrus.Fields{
		"scanned": summary.TotalPatients,
		"flagged": len(summary.Patients),
	}).Info("Scan complete")
}

func loadSnapshots(path string) ([]*domain.PatientSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var snapshots []*domain.PatientSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return snapshots, nil
}

func writeSummary(out *os.File, summary *domain.ScanSummary, pretty bool) error {
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(summary)
}

// exportSummary writes the summary to a timestamped JSON file in the export
// directory and returns the path written.
func exportSummary(dir string, summary *domain.ScanSummary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}

	name := fmt.Sprintf("scan_%s.json", summary.ScanDate.UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// archiveFlagged runs the full pipeline on every patient the scan flagged
// and stores the reports in the local archive.
func archiveFlagged(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger, snapshots []*domain.PatientSnapshot, summary *domain.ScanSummary) error {
	store, err := reportstore.NewSQLiteStore(cfg.ArchiveDBPath())
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	byID := make(map[string]*domain.PatientSnapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.PatientID] = s
	}

	orchestrator := engine.NewOrchestrator(nil, logger)

	for _, assessment := range summary.Patients {
		snapshot, ok := byID[assessment.PatientID]
		if !ok {
			continue
		}

		report, err := orchestrator.EvaluateSnapshot(ctx, snapshot)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"patient_id": assessment.PatientID,
				"error":      err,
			}).Warn("Skipping flagged patient that could not be evaluated")
			continue
		}

		if err := store.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("archiving report for %s: %w", assessment.PatientID, err)
		}
	}

	logger.WithField("archive", cfg.ArchiveDBPath()).Info("Flagged patient reports archived")
	return nil
}

func newLogger(cfg *config.LiteConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
