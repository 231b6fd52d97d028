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

func newTestMapper(fs *fakeStore) (*ProductMapper, *mockSource) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	source := &mockSource{}
	categories := NewCategoryResolver(source, fs, logger)
	attributes := NewAttributeBuilder(fs, logger)
	brands := NewBrandResolver(fs, newFakeFetcher(), logger)
	return NewProductMapper(fs, categories, attributes, brands, logger), source
}

func simpleProduct() *clients.CanonicalProduct {
	return &clients.CanonicalProduct{
		SourceID:  "42",
		Name:      "Test Shirt",
		Price:     19.99,
		Quantity:  5,
		Active:    true,
		Reference: "SHIRT-42",
	}
}

func TestCreateSimpleProduct(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	result, err := mapper.CreateOrUpdate(context.Background(), simpleProduct(), nil)
	require.NoError(t, err)
	assert.True(t, result.Created)

	created := fs.products[result.TargetID]
	require.NotNil(t, created)
	assert.Equal(t, models.ProductTypeSimple, created.Type)
	assert.Equal(t, models.ProductStatusPublish, created.Status)
	assert.Equal(t, "Test Shirt", created.Name)
	require.NotNil(t, created.RegularPrice)
	assert.InDelta(t, 19.99, *created.RegularPrice, 0.001)
	require.NotNil(t, created.SKU)
	assert.Equal(t, "SHIRT-42", *created.SKU)
	assert.Equal(t, models.StockStatusInStock, created.StockStatus)
}

func TestInactiveProductIsDraft(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	product := simpleProduct()
	product.Active = false
	product.Quantity = 0

	result, err := mapper.CreateOrUpdate(context.Background(), product, nil)
	require.NoError(t, err)

	created := fs.products[result.TargetID]
	assert.Equal(t, models.ProductStatusDraft, created.Status)
	assert.Equal(t, models.StockStatusOutOfStock, created.StockStatus)
}

func TestEmptyNameFallback(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	product := simpleProduct()
	product.Name = ""

	result, err := mapper.CreateOrUpdate(context.Background(), product, nil)
	require.NoError(t, err)
	assert.Equal(t, "Proizvod #42", fs.products[result.TargetID].Name)
}

func variableProduct() *clients.CanonicalProduct {
	return &clients.CanonicalProduct{
		SourceID: "7",
		Name:     "Cap",
		Price:    10.00,
		Active:   true,
		Variants: []clients.Variant{
			{
				ExternalVariantID: "71",
				SKU:               "CAP-RED",
				PriceDelta:        2.50,
				Quantity:          3,
				Attributes: []clients.VariantAttribute{
					{GroupName: "Color", ValueName: "Red"},
				},
			},
			{
				ExternalVariantID: "72",
				SKU:               "CAP-BLUE",
				PriceDelta:        -1.00,
				Quantity:          0,
				Attributes: []clients.VariantAttribute{
					{GroupName: "Color", ValueName: "Blue"},
				},
			},
		},
	}
}

func TestCreateVariableProduct(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	result, err := mapper.CreateOrUpdate(context.Background(), variableProduct(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.SkippedVariants)

	created := fs.products[result.TargetID]
	assert.Equal(t, models.ProductTypeVariable, created.Type)
	require.Len(t, created.Attributes, 1)
	assert.Equal(t, "Color", created.Attributes[0].Name)
	assert.Equal(t, "pa_color", created.Attributes[0].Slug)
	assert.Len(t, created.Attributes[0].TermIDs, 2)

	vars := fs.variations[result.TargetID]
	require.Len(t, vars, 2)
	assert.InDelta(t, 12.50, vars[0].Price, 0.001)
	assert.InDelta(t, 9.00, vars[1].Price, 0.001)
	assert.Equal(t, models.StockStatusInStock, vars[0].StockStatus)
	assert.Equal(t, models.StockStatusOutOfStock, vars[1].StockStatus)

	// Default selection comes from the first variant with attributes.
	assert.Equal(t, map[string]string{"pa_color": "red"}, created.DefaultAttributes)

	// Parent aggregates recomputed from children.
	assert.Equal(t, 1, fs.syncParentCalls)
	require.NotNil(t, created.RegularPrice)
	assert.InDelta(t, 9.00, *created.RegularPrice, 0.001)
	assert.Equal(t, models.StockStatusInStock, created.StockStatus)
}

func TestDefaultAttributesSkipAttributeLessVariant(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	// First combination carries no attribute rows; the default selection
	// must come from the first variant that has one.
	product := variableProduct()
	product.Variants = append([]clients.Variant{{
		ExternalVariantID: "70",
		SKU:               "CAP-PLAIN",
		Quantity:          1,
	}}, product.Variants...)

	result, err := mapper.CreateOrUpdate(context.Background(), product, nil)
	require.NoError(t, err)

	created := fs.products[result.TargetID]
	assert.Equal(t, map[string]string{"pa_color": "red"}, created.DefaultAttributes)
	assert.Len(t, fs.variations[result.TargetID], 3)
	assert.Empty(t, fs.variations[result.TargetID][0].Attributes)
}

func TestVariantSKUCollisionSkipped(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	// Existing product holding one of the variant SKUs.
	taken := "CAP-RED"
	fs.products[99] = &models.CatalogProduct{ID: 99, SKU: &taken}
	fs.nextID = 100

	result, err := mapper.CreateOrUpdate(context.Background(), variableProduct(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedVariants)
	assert.Len(t, fs.variations[result.TargetID], 1)
}

func TestVariableToSimpleTransition(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	created, err := mapper.CreateOrUpdate(context.Background(), variableProduct(), nil)
	require.NoError(t, err)
	require.Len(t, fs.variations[created.TargetID], 2)

	// Same product, re-fetched without variants this run.
	simple := variableProduct()
	simple.Variants = nil

	updated, err := mapper.CreateOrUpdate(context.Background(), simple, &created.TargetID)
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.Equal(t, created.TargetID, updated.TargetID)
	assert.Equal(t, models.ProductTypeSimple, fs.products[updated.TargetID].Type)
	assert.Empty(t, fs.variations[updated.TargetID])
}

func TestSimpleToVariableTransition(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	created, err := mapper.CreateOrUpdate(context.Background(), simpleProduct(), nil)
	require.NoError(t, err)
	require.NotNil(t, fs.products[created.TargetID].SKU)

	// Same product, re-fetched with two combinations this run.
	variable := variableProduct()
	variable.SourceID = "42"
	variable.Reference = "SHIRT-42"

	updated, err := mapper.CreateOrUpdate(context.Background(), variable, &created.TargetID)
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.Equal(t, created.TargetID, updated.TargetID)

	parent := fs.products[updated.TargetID]
	assert.Equal(t, models.ProductTypeVariable, parent.Type)
	require.Len(t, fs.variations[updated.TargetID], 2)

	// None of the simple-product fields survive on the parent; price and
	// stock status come back from the variations via SyncParent.
	assert.Nil(t, parent.SKU)
	assert.False(t, parent.ManageStock)
	assert.Nil(t, parent.StockQuantity)
	require.NotNil(t, parent.RegularPrice)
	assert.InDelta(t, 9.00, *parent.RegularPrice, 0.001)
	assert.Equal(t, models.StockStatusInStock, parent.StockStatus)
}

func TestUpdateRebuildsVariations(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	created, err := mapper.CreateOrUpdate(context.Background(), variableProduct(), nil)
	require.NoError(t, err)

	again := variableProduct()
	again.Variants = again.Variants[:1]

	_, err = mapper.CreateOrUpdate(context.Background(), again, &created.TargetID)
	require.NoError(t, err)
	assert.Len(t, fs.variations[created.TargetID], 1)
	assert.GreaterOrEqual(t, fs.deletedVarCalls, 1)
}

func TestBrandAssignedAfterCreate(t *testing.T) {
	fs := newFakeStore()
	mapper, _ := newTestMapper(fs)

	product := simpleProduct()
	product.Manufacturer = clients.Manufacturer{ID: 3, Name: "  Acme  Corp "}

	result, err := mapper.CreateOrUpdate(context.Background(), product, nil)
	require.NoError(t, err)

	var brandTerm *models.Term
	for _, term := range fs.terms {
		if term.Name == "Acme Corp" {
			brandTerm = term
		}
	}
	require.NotNil(t, brandTerm)
	assert.True(t, fs.assigned[result.TargetID][brandTerm.ID])
}
