package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies how products are read from the source shop
type SourceKind string

const (
	SourceKindAPI SourceKind = "api"
	SourceKindDB  SourceKind = "db"
)

// JobStatus represents the status of a migration job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// JSONB custom type for PostgreSQL JSONB
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(j))
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = JSONB(m)
	return nil
}

// MigrationProgress tracks the progress of a migration job
type MigrationProgress struct {
	TotalItems     int `json:"totalItems"`
	ProcessedItems int `json:"processedItems"`
	MigratedItems  int `json:"migratedItems"`
	FailedItems    int `json:"failedItems"`
	SkippedItems   int `json:"skippedItems"`
}

// MigrationJob represents one batch migration run
type MigrationJob struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SourceKind SourceKind `gorm:"type:varchar(20);not null" json:"sourceKind"`

	// Job Status
	Status JobStatus `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_migration_jobs_status" json:"status"`

	// Run settings
	UpdateExisting bool  `gorm:"default:false" json:"updateExisting"`
	ProductIDs     JSONB `gorm:"type:jsonb" json:"productIds,omitempty"`

	// Progress Tracking
	Progress JSONB `gorm:"type:jsonb;default:'{\"totalItems\":0,\"processedItems\":0,\"migratedItems\":0,\"failedItems\":0,\"skippedItems\":0}'" json:"progress"`

	// Timing
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Error tracking
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Relationships
	Logs []MigrationLog `gorm:"foreignKey:JobID" json:"logs,omitempty"`
}

// TableName specifies the table name for MigrationJob
func (MigrationJob) TableName() string {
	return "migration_jobs"
}

// GetProgress returns the job progress as a structured object
func (j *MigrationJob) GetProgress() *MigrationProgress {
	progress := &MigrationProgress{}
	if j.Progress != nil {
		if v, ok := j.Progress["totalItems"].(float64); ok {
			progress.TotalItems = int(v)
		}
		if v, ok := j.Progress["processedItems"].(float64); ok {
			progress.ProcessedItems = int(v)
		}
		if v, ok := j.Progress["migratedItems"].(float64); ok {
			progress.MigratedItems = int(v)
		}
		if v, ok := j.Progress["failedItems"].(float64); ok {
			progress.FailedItems = int(v)
		}
		if v, ok := j.Progress["skippedItems"].(float64); ok {
			progress.SkippedItems = int(v)
		}
	}
	return progress
}

// SetProgress sets the job progress from a structured object
func (j *MigrationJob) SetProgress(progress *MigrationProgress) {
	j.Progress = JSONB{
		"totalItems":     progress.TotalItems,
		"processedItems": progress.ProcessedItems,
		"migratedItems":  progress.MigratedItems,
		"failedItems":    progress.FailedItems,
		"skippedItems":   progress.SkippedItems,
	}
}

// LogLevel represents the severity level of a migration log
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// MigrationLog represents a log entry for a migration job
type MigrationLog struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index:idx_migration_logs_job" json:"jobId"`

	Level   LogLevel `gorm:"type:varchar(20);not null;default:'info';index:idx_migration_logs_level" json:"level"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Data    JSONB    `gorm:"type:jsonb;default:'{}'" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for MigrationLog
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// ProductMapping links a source product to its migrated catalog product
type ProductMapping struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SourceProductID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_product_mappings_source" json:"sourceProductId"`

	CatalogProductID uint   `gorm:"not null;index:idx_product_mappings_catalog" json:"catalogProductId"`
	SKU              string `gorm:"type:varchar(255);index:idx_product_mappings_sku" json:"sku,omitempty"`

	LastMigratedAt *time.Time `json:"lastMigratedAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for ProductMapping
func (ProductMapping) TableName() string {
	return "product_mappings"
}
