package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/media"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/store"
)

// MappingStore is the persistence surface the runner needs for
// source-to-catalog cross-references. *repository.MigrationRepository
// satisfies it.
type MappingStore interface {
	GetProductMappingBySourceID(ctx context.Context, sourceProductID string) (*models.ProductMapping, error)
	UpsertProductMapping(ctx context.Context, mapping *models.ProductMapping) error
}

// MigratedItem is one successful migration in a batch report
type MigratedItem struct {
	SourceID string `json:"sourceId"`
	TargetID uint   `json:"targetId"`
}

// BatchReport is the sole output of one batch invocation
type BatchReport struct {
	Migrated        []MigratedItem `json:"migrated"`
	TotalProcessed  int            `json:"totalProcessed"`
	Skipped         int            `json:"skipped"`
	SkippedVariants int            `json:"skippedVariants"`
	Errors          []string       `json:"errors"`
	Log             []string       `json:"log"`
}

func (r *BatchReport) logf(format string, args ...interface{}) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

func (r *BatchReport) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Errors = append(r.Errors, msg)
	r.Log = append(r.Log, "ERROR: "+msg)
}

// BatchRunner migrates a list of source products in one synchronous,
// single-threaded pass. Items are isolated: one failing item is recorded
// and the batch moves on. Cancellation is cooperative, checked between
// items, never mid-item.
type BatchRunner struct {
	source   clients.ProductSource
	store    store.TargetStore
	fetcher  media.Fetcher
	mappings MappingStore
	mapper   *ProductMapper
	logger   *logrus.Entry
}

// NewBatchRunner creates a runner scoped to one batch invocation. The
// mapper's resolver caches live exactly as long as the runner.
func NewBatchRunner(
	source clients.ProductSource,
	st store.TargetStore,
	fetcher media.Fetcher,
	mappings MappingStore,
	logger *logrus.Logger,
) *BatchRunner {
	categories := NewCategoryResolver(source, st, logger)
	attributes := NewAttributeBuilder(st, logger)
	brands := NewBrandResolver(st, fetcher, logger)

	return &BatchRunner{
		source:   source,
		store:    st,
		fetcher:  fetcher,
		mappings: mappings,
		mapper:   NewProductMapper(st, categories, attributes, brands, logger),
		logger:   logger.WithField("component", "batch_runner"),
	}
}

// RunBatch migrates the given source product IDs. A target store that is
// not ready aborts the whole batch; everything else is per-item.
func (r *BatchRunner) RunBatch(ctx context.Context, productIDs []string, updateExisting bool) (*BatchReport, error) {
	if err := r.store.Ready(ctx); err != nil {
		return nil, fmt.Errorf("target store not available: %w", err)
	}

	report := &BatchReport{}
	started := time.Now()
	report.logf("batch started: %d item(s), update_existing=%v", len(productIDs), updateExisting)

	for i, sourceID := range productIDs {
		if err := ctx.Err(); err != nil {
			report.logf("batch stopped after %d item(s): %v", report.TotalProcessed, err)
			break
		}

		report.TotalProcessed++
		r.runItem(ctx, sourceID, updateExisting, i == 0, report)
	}

	report.logf("batch finished in %s: %d migrated, %d skipped, %d error(s)",
		time.Since(started).Round(time.Millisecond), len(report.Migrated), report.Skipped, len(report.Errors))
	return report, nil
}

func (r *BatchRunner) runItem(ctx context.Context, sourceID string, updateExisting, firstItem bool, report *BatchReport) {
	productID, err := strconv.Atoi(sourceID)
	if err != nil {
		report.errorf("product %s: invalid source ID", sourceID)
		return
	}

	product, err := r.source.FetchProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			report.errorf("product %s: not found in source", sourceID)
		} else {
			report.errorf("product %s: fetch failed: %v", sourceID, err)
		}
		return
	}

	if firstItem {
		if snapshot, err := json.Marshal(product); err == nil {
			report.logf("first item snapshot: %s", snapshot)
		}
	}

	if err := r.loadVariants(ctx, product, productID); err != nil {
		r.logger.WithError(err).WithField("source_id", sourceID).Warn("Variant load failed, migrating as simple")
		report.logf("product %s: variant load failed, continuing without variants", sourceID)
	}

	existingID, err := r.findExisting(ctx, product)
	if err != nil {
		report.errorf("product %s: dedup lookup failed: %v", sourceID, err)
		return
	}
	if existingID != nil && !updateExisting {
		report.Skipped++
		report.logf("product %s: already migrated (target %d), skipped", sourceID, *existingID)
		return
	}

	r.acquireImages(ctx, product, report)

	result, err := r.mapper.CreateOrUpdate(ctx, product, existingID)
	if err != nil {
		report.errorf("product %s: mapping failed: %v", sourceID, err)
		return
	}
	report.SkippedVariants += result.SkippedVariants

	now := time.Now()
	mapping := &models.ProductMapping{
		SourceProductID:  product.SourceID,
		CatalogProductID: result.TargetID,
		SKU:              product.Reference,
		LastMigratedAt:   &now,
	}
	if err := r.mappings.UpsertProductMapping(ctx, mapping); err != nil {
		r.logger.WithError(err).WithField("source_id", sourceID).Warn("Failed to record product mapping")
	}

	report.Migrated = append(report.Migrated, MigratedItem{SourceID: product.SourceID, TargetID: result.TargetID})
	if result.Created {
		report.logf("product %s: created target %d", sourceID, result.TargetID)
	} else {
		report.logf("product %s: updated target %d", sourceID, result.TargetID)
	}
}

// loadVariants lazily pulls combinations when the fetched payload carried
// none but the source knows about some.
func (r *BatchRunner) loadVariants(ctx context.Context, product *clients.CanonicalProduct, productID int) error {
	if len(product.Variants) > 0 {
		return nil
	}
	has, err := r.source.HasVariants(ctx, productID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	variants, err := r.source.FetchVariantsFor(ctx, productID)
	if err != nil {
		return err
	}
	product.Variants = variants
	return nil
}

// findExisting resolves the dedup target: the mapping table first, then
// the catalog's external-id column, then the SKU fallback.
func (r *BatchRunner) findExisting(ctx context.Context, product *clients.CanonicalProduct) (*uint, error) {
	mapping, err := r.mappings.GetProductMappingBySourceID(ctx, product.SourceID)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		id := mapping.CatalogProductID
		return &id, nil
	}

	existing, err := r.store.FindProductByExternalID(ctx, product.SourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &existing.ID, nil
	}

	if product.Reference != "" {
		existing, err = r.store.FindProductBySKU(ctx, product.Reference)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &existing.ID, nil
		}
	}
	return nil, nil
}

// acquireImages downloads every image ref into the media store and fills
// in MediaID. Bad candidates are skipped without failing the item.
func (r *BatchRunner) acquireImages(ctx context.Context, product *clients.CanonicalProduct, report *BatchReport) {
	productID, _ := strconv.Atoi(product.SourceID)

	for i := range product.Images {
		mediaID, err := r.acquireImage(ctx, productID, &product.Images[i])
		if err != nil {
			report.logf("product %s: image %d skipped: %v", product.SourceID, i, err)
			continue
		}
		product.Images[i].MediaID = mediaID
	}

	for i := range product.Variants {
		ref := product.Variants[i].Image
		if ref == nil {
			continue
		}
		mediaID, err := r.acquireImage(ctx, productID, ref)
		if err != nil {
			report.logf("product %s: variant image skipped: %v", product.SourceID, err)
			continue
		}
		ref.MediaID = mediaID
	}
}

func (r *BatchRunner) acquireImage(ctx context.Context, productID int, ref *clients.ImageRef) (uint, error) {
	sourceKey := imageSourceKey(productID, ref)

	existing, err := r.store.FindMediaBySourceKey(ctx, sourceKey)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	if ref.URL != "" {
		if !r.fetcher.ProbeImage(ctx, ref.URL) {
			return 0, fmt.Errorf("url %s did not resolve to an image", ref.URL)
		}
		img, err := r.fetcher.FetchImage(ctx, ref.URL)
		if err != nil {
			return 0, err
		}
		asset, err := r.store.AttachMedia(ctx, img.Data, img.FileName, img.ContentType, sourceKey)
		if err != nil {
			return 0, err
		}
		return asset.ID, nil
	}

	if ref.SourceImageID > 0 {
		data, err := r.source.FetchImageBinary(ctx, productID, ref.SourceImageID)
		if err != nil {
			return 0, err
		}
		fileName := fmt.Sprintf("%d-%d.jpg", productID, ref.SourceImageID)
		asset, err := r.store.AttachMedia(ctx, data, fileName, "image/jpeg", sourceKey)
		if err != nil {
			return 0, err
		}
		return asset.ID, nil
	}

	return 0, fmt.Errorf("image ref carries no locator")
}

func imageSourceKey(productID int, ref *clients.ImageRef) string {
	if ref.URL != "" {
		return ref.URL
	}
	return fmt.Sprintf("product:%d:image:%d", productID, ref.SourceImageID)
}
