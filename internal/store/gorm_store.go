package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-migration-service/internal/models"
)

// GormStore implements TargetStore on the catalog database.
type GormStore struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewGormStore creates a new catalog store
func NewGormStore(db *gorm.DB, logger *logrus.Logger) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger.WithField("component", "catalog_store"),
	}
}

// AutoMigrate creates or updates the catalog tables
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.CatalogProduct{},
		&models.CatalogVariation{},
		&models.Taxonomy{},
		&models.Term{},
		&models.ProductTerm{},
		&models.MediaAsset{},
	)
}

// Ready verifies the catalog database is reachable
func (s *GormStore) Ready(ctx context.Context) error {
	sqlDB, err := s.db.WithContext(ctx).DB()
	if err != nil {
		return wrapErr("ready", err)
	}
	return wrapErr("ready", sqlDB.PingContext(ctx))
}

// FindProductByExternalID retrieves a product by its source cross-reference
func (s *GormStore) FindProductByExternalID(ctx context.Context, sourceID string) (*models.CatalogProduct, error) {
	var product models.CatalogProduct
	err := s.db.WithContext(ctx).
		Where("external_source_id = ?", sourceID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find product by external id", err)
	}
	return &product, nil
}

// FindProductBySKU retrieves a product by SKU
func (s *GormStore) FindProductBySKU(ctx context.Context, sku string) (*models.CatalogProduct, error) {
	if sku == "" {
		return nil, nil
	}
	var product models.CatalogProduct
	err := s.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find product by sku", err)
	}
	return &product, nil
}

// SKUInUse reports whether the SKU is taken by another product or by a
// variation outside the excluded product.
func (s *GormStore) SKUInUse(ctx context.Context, sku string, excludeProductID uint) (bool, error) {
	if sku == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.CatalogProduct{}).
		Where("sku = ? AND id <> ?", sku, excludeProductID).
		Count(&count).Error
	if err != nil {
		return false, wrapErr("sku lookup", err)
	}
	if count > 0 {
		return true, nil
	}

	err = s.db.WithContext(ctx).
		Model(&models.CatalogVariation{}).
		Where("sku = ? AND product_id <> ?", sku, excludeProductID).
		Count(&count).Error
	if err != nil {
		return false, wrapErr("variation sku lookup", err)
	}
	return count > 0, nil
}

// CreateProduct inserts a new catalog product from the spec
func (s *GormStore) CreateProduct(ctx context.Context, spec *ProductSpec) (*models.CatalogProduct, error) {
	product := productFromSpec(spec)
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, wrapErr("create product", err)
	}
	s.logger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"type":       product.Type,
	}).Debug("Created catalog product")
	return product, nil
}

// UpdateProduct overwrites an existing catalog product with the spec
func (s *GormStore) UpdateProduct(ctx context.Context, id uint, spec *ProductSpec) (*models.CatalogProduct, error) {
	product := productFromSpec(spec)
	product.ID = id
	product.UpdatedAt = time.Now()

	// Save over Select("*") so cleared optional fields (price, stock)
	// are written back as NULL instead of being skipped.
	err := s.db.WithContext(ctx).
		Model(&models.CatalogProduct{ID: id}).
		Select("*").
		Omit("id", "created_at").
		Updates(product).Error
	if err != nil {
		return nil, wrapErr("update product", err)
	}
	return product, nil
}

// DeleteVariations removes all variations under a product
func (s *GormStore) DeleteVariations(ctx context.Context, productID uint) error {
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.CatalogVariation{}).Error
	return wrapErr("delete variations", err)
}

// CreateVariation inserts a variation under a product
func (s *GormStore) CreateVariation(ctx context.Context, productID uint, spec *VariationSpec) (*models.CatalogVariation, error) {
	variation := &models.CatalogVariation{
		ProductID:         productID,
		ExternalVariantID: spec.ExternalVariantID,
		Price:             spec.Price,
		StockQuantity:     spec.StockQuantity,
		StockStatus:       spec.StockStatus,
		Attributes:        spec.Attributes,
		MediaID:           spec.MediaID,
	}
	if spec.SKU != "" {
		variation.SKU = &spec.SKU
	}
	if err := s.db.WithContext(ctx).Create(variation).Error; err != nil {
		return nil, wrapErr("create variation", err)
	}
	return variation, nil
}

// SyncParent recomputes a variable product's price and stock status from
// its variations: lowest variation price, in stock while any variation is.
func (s *GormStore) SyncParent(ctx context.Context, productID uint) error {
	var variations []models.CatalogVariation
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Find(&variations).Error
	if err != nil {
		return wrapErr("sync parent", err)
	}

	updates := map[string]interface{}{
		"regular_price": nil,
		"stock_status":  models.StockStatusOutOfStock,
		"updated_at":    time.Now(),
	}
	if len(variations) > 0 {
		minPrice := variations[0].Price
		stock := models.StockStatusOutOfStock
		for _, v := range variations {
			if v.Price < minPrice {
				minPrice = v.Price
			}
			if v.StockStatus == models.StockStatusInStock {
				stock = models.StockStatusInStock
			}
		}
		updates["regular_price"] = minPrice
		updates["stock_status"] = stock
	}

	err = s.db.WithContext(ctx).
		Model(&models.CatalogProduct{}).
		Where("id = ?", productID).
		Updates(updates).Error
	return wrapErr("sync parent", err)
}

// EnsureTaxonomy returns the taxonomy with the given slug, creating it if missing
func (s *GormStore) EnsureTaxonomy(ctx context.Context, slug string, kind models.TaxonomyKind, variationEnabled bool) (*models.Taxonomy, error) {
	existing, err := s.FindTaxonomyBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	taxonomy := &models.Taxonomy{
		Name:             slug,
		Slug:             slug,
		Kind:             kind,
		VariationEnabled: variationEnabled,
		Visible:          true,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(taxonomy).Error
	if err != nil {
		return nil, wrapErr("ensure taxonomy", err)
	}
	if taxonomy.ID == 0 {
		// Conflict path: another writer created it first.
		return s.FindTaxonomyBySlug(ctx, slug)
	}
	s.logger.WithFields(logrus.Fields{
		"slug": slug,
		"kind": kind,
	}).Info("Created taxonomy")
	return taxonomy, nil
}

// FindTaxonomyBySlug retrieves a taxonomy by slug
func (s *GormStore) FindTaxonomyBySlug(ctx context.Context, slug string) (*models.Taxonomy, error) {
	var taxonomy models.Taxonomy
	err := s.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&taxonomy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find taxonomy", err)
	}
	return &taxonomy, nil
}

// FindTermBySlug retrieves a term inside a taxonomy by slug
func (s *GormStore) FindTermBySlug(ctx context.Context, taxonomyID uint, slug string) (*models.Term, error) {
	var term models.Term
	err := s.db.WithContext(ctx).
		Where("taxonomy_id = ? AND slug = ?", taxonomyID, slug).
		First(&term).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find term", err)
	}
	return &term, nil
}

// CreateTerm inserts a term
func (s *GormStore) CreateTerm(ctx context.Context, term *models.Term) error {
	return wrapErr("create term", s.db.WithContext(ctx).Create(term).Error)
}

// AssignTerms replaces a product's term assignments within one taxonomy
func (s *GormStore) AssignTerms(ctx context.Context, productID uint, taxonomyID uint, termIDs []uint) error {
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND term_id IN (?)",
			productID,
			s.db.Model(&models.Term{}).Select("id").Where("taxonomy_id = ?", taxonomyID),
		).
		Delete(&models.ProductTerm{}).Error
	if err != nil {
		return wrapErr("assign terms", err)
	}

	for _, termID := range termIDs {
		link := models.ProductTerm{ProductID: productID, TermID: termID}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
		if err != nil {
			return wrapErr("assign terms", err)
		}
	}
	return nil
}

// TermThumbnail returns the term's thumbnail media ID, nil when unset
func (s *GormStore) TermThumbnail(ctx context.Context, termID uint) (*uint, error) {
	var term models.Term
	err := s.db.WithContext(ctx).
		Select("thumbnail_media_id").
		First(&term, termID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("term thumbnail", err)
	}
	return term.ThumbnailMediaID, nil
}

// SetTermThumbnail sets the term's thumbnail media ID
func (s *GormStore) SetTermThumbnail(ctx context.Context, termID uint, mediaID uint) error {
	err := s.db.WithContext(ctx).
		Model(&models.Term{}).
		Where("id = ?", termID).
		Update("thumbnail_media_id", mediaID).Error
	return wrapErr("set term thumbnail", err)
}

// FindMediaBySourceKey retrieves a media asset by its source key
func (s *GormStore) FindMediaBySourceKey(ctx context.Context, sourceKey string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := s.db.WithContext(ctx).
		Where("source_key = ?", sourceKey).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find media", err)
	}
	return &asset, nil
}

// AttachMedia stores image bytes as a media asset. Assets are keyed by
// sourceKey so re-running a migration reuses the stored copy.
func (s *GormStore) AttachMedia(ctx context.Context, data []byte, fileName, contentType, sourceKey string) (*models.MediaAsset, error) {
	if sourceKey != "" {
		existing, err := s.FindMediaBySourceKey(ctx, sourceKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	asset := &models.MediaAsset{
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	}
	if sourceKey != "" {
		asset.SourceKey = &sourceKey
	}
	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, wrapErr("attach media", err)
	}
	s.logger.WithFields(logrus.Fields{
		"media_id":  asset.ID,
		"file_name": fileName,
		"size":      len(data),
	}).Debug("Stored media asset")
	return asset, nil
}

func productFromSpec(spec *ProductSpec) *models.CatalogProduct {
	product := &models.CatalogProduct{
		Name:              spec.Name,
		Slug:              spec.Slug,
		Description:       spec.Description,
		ShortDescription:  spec.ShortDescription,
		Type:              spec.Type,
		Status:            spec.Status,
		RegularPrice:      spec.RegularPrice,
		ManageStock:       spec.ManageStock,
		StockQuantity:     spec.StockQuantity,
		StockStatus:       spec.StockStatus,
		Weight:            spec.Weight,
		Width:             spec.Width,
		Height:            spec.Height,
		Depth:             spec.Depth,
		FeaturedMediaID:   spec.FeaturedMediaID,
		GalleryMediaIDs:   spec.GalleryMediaIDs,
		Attributes:        spec.Attributes,
		DefaultAttributes: spec.DefaultAttributes,
	}
	if spec.ExternalSourceID != "" {
		product.ExternalSourceID = &spec.ExternalSourceID
	}
	if spec.SKU != "" {
		product.SKU = &spec.SKU
	}
	if spec.EAN13 != "" {
		product.EAN13 = &spec.EAN13
	}
	if spec.UPC != "" {
		product.UPC = &spec.UPC
	}
	if spec.ISBN != "" {
		product.ISBN = &spec.ISBN
	}
	return product
}
