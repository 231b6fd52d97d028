package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/models"
)

func newTestRunner(fs *fakeStore, source *mockSource, mappings *fakeMappings) *BatchRunner {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewBatchRunner(source, fs, newFakeFetcher(), mappings, logger)
}

func TestRunBatchMigratesProducts(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	mappings := newFakeMappings()
	runner := newTestRunner(fs, source, mappings)
	ctx := context.Background()

	source.On("FetchProduct", ctx, 1).Return(simpleProduct(), nil)
	source.On("HasVariants", ctx, 1).Return(false, nil)

	report, err := runner.RunBatch(ctx, []string{"1"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalProcessed)
	require.Len(t, report.Migrated, 1)
	assert.Equal(t, "42", report.Migrated[0].SourceID)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, mappings.upserts)
}

func TestRunBatchItemErrorsAreIsolated(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	mappings := newFakeMappings()
	runner := newTestRunner(fs, source, mappings)
	ctx := context.Background()

	source.On("FetchProduct", ctx, 1).Return(nil, clients.ErrNotFound)
	good := simpleProduct()
	source.On("FetchProduct", ctx, 2).Return(good, nil)
	source.On("HasVariants", ctx, 2).Return(false, nil)

	report, err := runner.RunBatch(ctx, []string{"1", "2"}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalProcessed)
	assert.Len(t, report.Migrated, 1)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "not found")
}

func TestRunBatchSkipsExistingWhenUpdateDisabled(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	mappings := newFakeMappings()
	runner := newTestRunner(fs, source, mappings)
	ctx := context.Background()

	source.On("FetchProduct", ctx, 42).Return(simpleProduct(), nil)
	source.On("HasVariants", ctx, 42).Return(false, nil)

	// First run creates, second run with update_existing=false skips.
	first, err := runner.RunBatch(ctx, []string{"42"}, false)
	require.NoError(t, err)
	require.Len(t, first.Migrated, 1)

	second, err := runner.RunBatch(ctx, []string{"42"}, false)
	require.NoError(t, err)
	assert.Empty(t, second.Migrated)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Errors)
	assert.Equal(t, 1, fs.createdProducts)
}

func TestRunBatchUpdatesExisting(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	mappings := newFakeMappings()
	runner := newTestRunner(fs, source, mappings)
	ctx := context.Background()

	source.On("FetchProduct", ctx, 42).Return(simpleProduct(), nil)
	source.On("HasVariants", ctx, 42).Return(false, nil)

	_, err := runner.RunBatch(ctx, []string{"42"}, false)
	require.NoError(t, err)

	report, err := runner.RunBatch(ctx, []string{"42"}, true)
	require.NoError(t, err)
	require.Len(t, report.Migrated, 1)
	assert.Equal(t, 1, fs.createdProducts)
	assert.Equal(t, 1, fs.updatedProducts)
}

func TestRunBatchDedupBySKUFallback(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	mappings := newFakeMappings()
	runner := newTestRunner(fs, source, mappings)
	ctx := context.Background()

	// Target already holds a product with the same SKU but no
	// external-id cross-reference and no mapping row.
	sku := "SHIRT-42"
	fs.products[50] = &models.CatalogProduct{ID: 50, SKU: &sku}
	fs.nextID = 51

	source.On("FetchProduct", ctx, 42).Return(simpleProduct(), nil)
	source.On("HasVariants", ctx, 42).Return(false, nil)

	report, err := runner.RunBatch(ctx, []string{"42"}, true)
	require.NoError(t, err)
	require.Len(t, report.Migrated, 1)
	assert.Equal(t, uint(50), report.Migrated[0].TargetID)
	assert.Zero(t, fs.createdProducts)
	assert.Equal(t, 1, fs.updatedProducts)
}

func TestRunBatchLazyVariantLoad(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	mappings := newFakeMappings()
	runner := newTestRunner(fs, source, mappings)
	ctx := context.Background()

	product := simpleProduct()
	source.On("FetchProduct", ctx, 42).Return(product, nil)
	source.On("HasVariants", ctx, 42).Return(true, nil)
	source.On("FetchVariantsFor", ctx, 42).Return(variableProduct().Variants, nil)

	report, err := runner.RunBatch(ctx, []string{"42"}, false)
	require.NoError(t, err)
	require.Len(t, report.Migrated, 1)

	created := fs.products[report.Migrated[0].TargetID]
	assert.Equal(t, models.ProductTypeVariable, created.Type)
	assert.Len(t, fs.variations[created.ID], 2)
}

func TestRunBatchStoreNotReadyIsFatal(t *testing.T) {
	fs := newFakeStore()
	fs.readyErr = assert.AnError
	source := &mockSource{}
	runner := newTestRunner(fs, source, newFakeMappings())

	_, err := runner.RunBatch(context.Background(), []string{"1"}, false)
	require.Error(t, err)
	source.AssertNotCalled(t, "FetchProduct")
}

func TestRunBatchInvalidIDIsItemError(t *testing.T) {
	fs := newFakeStore()
	source := &mockSource{}
	runner := newTestRunner(fs, source, newFakeMappings())

	report, err := runner.RunBatch(context.Background(), []string{"abc"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalProcessed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "invalid source ID")
}
