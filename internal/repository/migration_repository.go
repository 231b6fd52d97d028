package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-migration-service/internal/models"
)

// MigrationRepository handles database operations for migration jobs,
// logs and product mappings
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository creates a new migration repository
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// CreateJob creates a new migration job
func (r *MigrationRepository) CreateJob(ctx context.Context, job *models.MigrationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJob retrieves a migration job by ID
func (r *MigrationRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.MigrationJob, error) {
	var job models.MigrationJob
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob persists job status and progress changes
func (r *MigrationRepository) UpdateJob(ctx context.Context, job *models.MigrationJob) error {
	job.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(job).Error
}

// ListJobs retrieves migration jobs ordered newest first
func (r *MigrationRepository) ListJobs(ctx context.Context, limit, offset int) ([]models.MigrationJob, int64, error) {
	var jobs []models.MigrationJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.MigrationJob{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Order("created_at DESC").Find(&jobs).Error
	return jobs, total, err
}

// CreateLog appends a log entry to a migration job
func (r *MigrationRepository) CreateLog(ctx context.Context, log *models.MigrationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// GetJobLogs retrieves log entries for a job, oldest first
func (r *MigrationRepository) GetJobLogs(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.MigrationLog, int64, error) {
	var logs []models.MigrationLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.MigrationLog{}).Where("job_id = ?", jobID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Order("created_at ASC").Find(&logs).Error
	return logs, total, err
}

// UpsertProductMapping creates or refreshes the source-to-catalog link
// for a product
func (r *MigrationRepository) UpsertProductMapping(ctx context.Context, mapping *models.ProductMapping) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"catalog_product_id", "sku", "last_migrated_at", "updated_at"}),
	}).Create(mapping).Error
}

// GetProductMappingBySourceID retrieves a mapping by source product ID.
// Returns (nil, nil) when no mapping exists.
func (r *MigrationRepository) GetProductMappingBySourceID(ctx context.Context, sourceProductID string) (*models.ProductMapping, error) {
	var mapping models.ProductMapping
	err := r.db.WithContext(ctx).
		Where("source_product_id = ?", sourceProductID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}
