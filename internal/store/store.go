package store

import (
	"context"
	"fmt"

	"catalog-migration-service/internal/models"
)

// ProductSpec carries everything needed to create or update a catalog product.
type ProductSpec struct {
	ExternalSourceID string
	Name             string
	Slug             string
	Description      string
	ShortDescription string
	Type             models.ProductType
	Status           models.ProductStatus

	SKU           string
	RegularPrice  *float64
	ManageStock   bool
	StockQuantity *int
	StockStatus   models.StockStatus

	Weight *float64
	Width  *float64
	Height *float64
	Depth  *float64

	EAN13 string
	UPC   string
	ISBN  string

	FeaturedMediaID *uint
	GalleryMediaIDs []uint

	Attributes        []models.ProductAttribute
	DefaultAttributes map[string]string
}

// VariationSpec carries everything needed to create a product variation.
type VariationSpec struct {
	ExternalVariantID string
	SKU               string
	Price             float64
	StockQuantity     int
	StockStatus       models.StockStatus
	Attributes        map[string]string
	MediaID           *uint
}

// TargetStore is the write side of the migration: the catalog the
// products end up in. Lookups return (nil, nil) when nothing matches.
type TargetStore interface {
	Ready(ctx context.Context) error

	FindProductByExternalID(ctx context.Context, sourceID string) (*models.CatalogProduct, error)
	FindProductBySKU(ctx context.Context, sku string) (*models.CatalogProduct, error)
	// SKUInUse reports whether a SKU is taken by any product or
	// variation other than the given product and its variations.
	SKUInUse(ctx context.Context, sku string, excludeProductID uint) (bool, error)

	CreateProduct(ctx context.Context, spec *ProductSpec) (*models.CatalogProduct, error)
	UpdateProduct(ctx context.Context, id uint, spec *ProductSpec) (*models.CatalogProduct, error)

	DeleteVariations(ctx context.Context, productID uint) error
	CreateVariation(ctx context.Context, productID uint, spec *VariationSpec) (*models.CatalogVariation, error)
	// SyncParent recomputes a variable product's price and stock
	// status from its variations.
	SyncParent(ctx context.Context, productID uint) error

	EnsureTaxonomy(ctx context.Context, slug string, kind models.TaxonomyKind, variationEnabled bool) (*models.Taxonomy, error)
	FindTaxonomyBySlug(ctx context.Context, slug string) (*models.Taxonomy, error)
	FindTermBySlug(ctx context.Context, taxonomyID uint, slug string) (*models.Term, error)
	CreateTerm(ctx context.Context, term *models.Term) error
	AssignTerms(ctx context.Context, productID uint, taxonomyID uint, termIDs []uint) error

	TermThumbnail(ctx context.Context, termID uint) (*uint, error)
	SetTermThumbnail(ctx context.Context, termID uint, mediaID uint) error

	FindMediaBySourceKey(ctx context.Context, sourceKey string) (*models.MediaAsset, error)
	AttachMedia(ctx context.Context, data []byte, fileName, contentType, sourceKey string) (*models.MediaAsset, error)
}

// StoreError wraps a failed catalog write with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
