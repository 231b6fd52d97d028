package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/media"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/repository"
	"catalog-migration-service/internal/store"
)

// MigrationService runs migration batches with job bookkeeping: every
// batch becomes a MigrationJob row with per-item MigrationLog entries
// and a progress blob, so past runs stay inspectable over the API.
type MigrationService struct {
	source  clients.ProductSource
	store   store.TargetStore
	fetcher media.Fetcher
	repo    *repository.MigrationRepository
	logger  *logrus.Logger
}

// NewMigrationService creates a new migration service
func NewMigrationService(
	source clients.ProductSource,
	st store.TargetStore,
	fetcher media.Fetcher,
	repo *repository.MigrationRepository,
	logger *logrus.Logger,
) *MigrationService {
	return &MigrationService{
		source:  source,
		store:   st,
		fetcher: fetcher,
		repo:    repo,
		logger:  logger,
	}
}

// RunBatchRequest contains the data for one batch invocation
type RunBatchRequest struct {
	ProductIDs     []string `json:"product_ids" binding:"required"`
	UpdateExisting bool     `json:"update_existing"`
}

// RunBatch executes one migration batch synchronously and returns the
// report together with the persisted job.
func (s *MigrationService) RunBatch(ctx context.Context, req *RunBatchRequest) (*models.MigrationJob, *BatchReport, error) {
	ids := make([]interface{}, len(req.ProductIDs))
	for i, id := range req.ProductIDs {
		ids[i] = id
	}

	job := &models.MigrationJob{
		SourceKind:     models.SourceKind(s.source.Kind()),
		Status:         models.JobStatusPending,
		UpdateExisting: req.UpdateExisting,
		ProductIDs:     models.JSONB{"ids": ids},
	}
	job.SetProgress(&models.MigrationProgress{TotalItems: len(req.ProductIDs)})
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	runner := NewBatchRunner(s.source, s.store, s.fetcher, s.repo, s.logger)
	report, err := runner.RunBatch(ctx, req.ProductIDs, req.UpdateExisting)

	completed := time.Now()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = err.Error()
		s.appendLog(ctx, job.ID, models.LogLevelError, err.Error(), nil)
		if updateErr := s.repo.UpdateJob(ctx, job); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to persist failed job")
		}
		return job, nil, err
	}

	job.Status = models.JobStatusCompleted
	job.SetProgress(&models.MigrationProgress{
		TotalItems:     len(req.ProductIDs),
		ProcessedItems: report.TotalProcessed,
		MigratedItems:  len(report.Migrated),
		FailedItems:    len(report.Errors),
		SkippedItems:   report.Skipped,
	})
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		s.logger.WithError(err).Error("Failed to persist completed job")
	}

	s.persistReportLogs(ctx, job.ID, report)
	return job, report, nil
}

// GetJob returns a migration job by ID
func (s *MigrationService) GetJob(ctx context.Context, id uuid.UUID) (*models.MigrationJob, error) {
	return s.repo.GetJob(ctx, id)
}

// GetJobLogs returns the log lines of a migration job
func (s *MigrationService) GetJobLogs(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.MigrationLog, int64, error) {
	return s.repo.GetJobLogs(ctx, jobID, limit, offset)
}

// ListJobs returns past migration jobs, newest first
func (s *MigrationService) ListJobs(ctx context.Context, limit, offset int) ([]models.MigrationJob, int64, error) {
	return s.repo.ListJobs(ctx, limit, offset)
}

func (s *MigrationService) persistReportLogs(ctx context.Context, jobID uuid.UUID, report *BatchReport) {
	for _, line := range report.Log {
		s.appendLog(ctx, jobID, models.LogLevelInfo, line, nil)
	}
	for _, item := range report.Migrated {
		s.appendLog(ctx, jobID, models.LogLevelInfo, "migrated", models.JSONB{
			"sourceId": item.SourceID,
			"targetId": item.TargetID,
		})
	}
	for _, msg := range report.Errors {
		s.appendLog(ctx, jobID, models.LogLevelError, msg, nil)
	}
}

func (s *MigrationService) appendLog(ctx context.Context, jobID uuid.UUID, level models.LogLevel, message string, data models.JSONB) {
	entry := &models.MigrationLog{
		JobID:   jobID,
		Level:   level,
		Message: message,
		Data:    data,
	}
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("Failed to persist migration log entry")
	}
}
