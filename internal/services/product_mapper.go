package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/store"
)

// MapResult is the outcome of mapping one source product
type MapResult struct {
	TargetID        uint
	Created         bool
	SkippedVariants int
}

// ProductMapper writes one canonical product into the target catalog,
// creating or updating depending on whether a target ID was resolved.
// Category, brand and image sub-steps fail soft; only the main entity
// save fails the item.
type ProductMapper struct {
	store      store.TargetStore
	categories *CategoryResolver
	attributes *AttributeBuilder
	brands     *BrandResolver
	logger     *logrus.Entry
}

// NewProductMapper creates a mapper scoped to one migration run
func NewProductMapper(
	st store.TargetStore,
	categories *CategoryResolver,
	attributes *AttributeBuilder,
	brands *BrandResolver,
	logger *logrus.Logger,
) *ProductMapper {
	return &ProductMapper{
		store:      st,
		categories: categories,
		attributes: attributes,
		brands:     brands,
		logger:     logger.WithField("component", "product_mapper"),
	}
}

// CreateOrUpdate maps the product into the catalog. existingID selects the
// update path; the product type (simple vs. variable) is re-derived from
// the current variant list on every call, so products can transition
// between types across runs.
func (m *ProductMapper) CreateOrUpdate(ctx context.Context, product *clients.CanonicalProduct, existingID *uint) (*MapResult, error) {
	variable := len(product.Variants) > 0

	spec := m.buildSpec(product, variable)

	var selections []map[string]string
	if variable {
		attributes, err := m.attributes.BuildAttributes(ctx, product.Variants)
		if err != nil {
			return nil, err
		}
		spec.Attributes = attributes

		selections = make([]map[string]string, len(product.Variants))
		for i, variant := range product.Variants {
			selection, err := m.attributes.ResolveSelection(ctx, variant.Attributes)
			if err != nil {
				return nil, err
			}
			selections[i] = selection
			if spec.DefaultAttributes == nil && len(selection) > 0 {
				spec.DefaultAttributes = selection
			}
		}
	}

	var target *models.CatalogProduct
	var err error
	if existingID != nil {
		// Stale variations are rebuilt on the variable path and must go
		// either way when the product switched back to simple.
		if err := m.store.DeleteVariations(ctx, *existingID); err != nil {
			return nil, err
		}
		target, err = m.store.UpdateProduct(ctx, *existingID, spec)
	} else {
		target, err = m.store.CreateProduct(ctx, spec)
	}
	if err != nil {
		return nil, err
	}

	result := &MapResult{TargetID: target.ID, Created: existingID == nil}

	if variable {
		skipped, err := m.createVariations(ctx, target.ID, product, selections)
		if err != nil {
			return nil, err
		}
		result.SkippedVariants = skipped

		if err := m.store.SyncParent(ctx, target.ID); err != nil {
			m.logger.WithError(err).WithField("target_id", target.ID).Warn("Parent sync failed")
		}
	}

	m.assignCategories(ctx, target.ID, product.CategoryIDs)

	if err := m.brands.Assign(ctx, target.ID, product.Manufacturer); err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"source_id": product.SourceID,
			"target_id": target.ID,
		}).Warn("Brand assignment failed")
	}

	return result, nil
}

func (m *ProductMapper) buildSpec(product *clients.CanonicalProduct, variable bool) *store.ProductSpec {
	name := product.Name
	if name == "" {
		name = fmt.Sprintf("Proizvod #%s", product.SourceID)
	}

	status := models.ProductStatusDraft
	if product.Active {
		status = models.ProductStatusPublish
	}

	spec := &store.ProductSpec{
		ExternalSourceID: product.SourceID,
		Name:             name,
		Slug:             slugOrHash(name),
		Description:      product.Description,
		ShortDescription: product.ShortDescription,
		Status:           status,
		EAN13:            product.EAN13,
		UPC:              product.UPC,
		ISBN:             product.ISBN,
	}

	if product.Weight > 0 {
		spec.Weight = f64Ptr(product.Weight)
	}
	if product.Width > 0 {
		spec.Width = f64Ptr(product.Width)
	}
	if product.Height > 0 {
		spec.Height = f64Ptr(product.Height)
	}
	if product.Depth > 0 {
		spec.Depth = f64Ptr(product.Depth)
	}

	for i, img := range product.Images {
		if img.MediaID == 0 {
			continue
		}
		if i == 0 {
			id := img.MediaID
			spec.FeaturedMediaID = &id
		} else {
			spec.GalleryMediaIDs = append(spec.GalleryMediaIDs, img.MediaID)
		}
	}

	if variable {
		// Parent carries no price or stock of its own, SyncParent
		// recomputes both from the variations.
		spec.Type = models.ProductTypeVariable
		spec.StockStatus = models.StockStatusInStock
	} else {
		spec.Type = models.ProductTypeSimple
		spec.RegularPrice = f64Ptr(product.Price)
		spec.SKU = product.Reference
		spec.ManageStock = true
		spec.StockQuantity = intPtr(product.Quantity)
		if product.Quantity > 0 {
			spec.StockStatus = models.StockStatusInStock
		} else {
			spec.StockStatus = models.StockStatusOutOfStock
		}
	}

	return spec
}

func (m *ProductMapper) createVariations(ctx context.Context, targetID uint, product *clients.CanonicalProduct, selections []map[string]string) (int, error) {
	skipped := 0

	for i, variant := range product.Variants {
		if variant.SKU != "" {
			inUse, err := m.store.SKUInUse(ctx, variant.SKU, targetID)
			if err != nil {
				return skipped, err
			}
			if inUse {
				m.logger.WithFields(logrus.Fields{
					"source_id": product.SourceID,
					"sku":       variant.SKU,
				}).Warn("Variant SKU already in use, skipping variant")
				skipped++
				continue
			}
		}

		vspec := &store.VariationSpec{
			ExternalVariantID: variant.ExternalVariantID,
			SKU:               variant.SKU,
			Price:             product.Price + variant.PriceDelta,
			StockQuantity:     variant.Quantity,
			Attributes:        selections[i],
		}
		if variant.Quantity > 0 {
			vspec.StockStatus = models.StockStatusInStock
		} else {
			vspec.StockStatus = models.StockStatusOutOfStock
		}
		if variant.Image != nil && variant.Image.MediaID != 0 {
			id := variant.Image.MediaID
			vspec.MediaID = &id
		}

		if _, err := m.store.CreateVariation(ctx, targetID, vspec); err != nil {
			return skipped, err
		}
	}

	return skipped, nil
}

func (m *ProductMapper) assignCategories(ctx context.Context, targetID uint, categoryIDs []string) {
	if len(categoryIDs) == 0 {
		return
	}

	var termIDs []uint
	for _, categoryID := range categoryIDs {
		termID, err := m.categories.Resolve(ctx, categoryID)
		if err != nil {
			m.logger.WithError(err).WithField("category_id", categoryID).Warn("Category resolution failed")
			continue
		}
		if termID != nil {
			termIDs = append(termIDs, *termID)
		}
	}
	if len(termIDs) == 0 {
		return
	}

	taxonomyID, err := m.categories.TaxonomyID(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Category taxonomy unavailable")
		return
	}
	if err := m.store.AssignTerms(ctx, targetID, taxonomyID, termIDs); err != nil {
		m.logger.WithError(err).WithField("target_id", targetID).Warn("Category assignment failed")
	}
}
