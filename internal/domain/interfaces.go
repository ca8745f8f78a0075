package domain

import (
	"context"
	"time"
)

// SnapshotProvider resolves a patient identifier into a point-in-time
// clinical snapshot. The engine treats every read as a snapshot; it never
// re-reads mid-pipeline.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, patientID string) (*PatientSnapshot, error)
}

// ReportStore persists generated reports. The engine itself never mutates a
// report after construction; storage is the collaborator's responsibility.
type ReportStore interface {
	SaveReport(ctx context.Context, report *ComprehensiveReport) error
	GetReport(ctx context.Context, reportID string) (*ComprehensiveReport, error)
	ListReportsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*ComprehensiveReport, error)
}

// ReportCache caches finished reports keyed by snapshot content so repeated
// evaluations of an unchanged snapshot are served without recomputation.
type ReportCache interface {
	Get(ctx context.Context, key string) (*ComprehensiveReport, bool)
	Set(ctx context.Context, key string, report *ComprehensiveReport, ttl time.Duration) error
}

// ConfigManager defines the interface for configuration management.
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetCacheConfig() *CacheConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
