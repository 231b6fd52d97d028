package models

import (
	"time"
)

// ProductType distinguishes simple products from variable (variant-carrying) ones
type ProductType string

const (
	ProductTypeSimple   ProductType = "simple"
	ProductTypeVariable ProductType = "variable"
)

// ProductStatus represents catalog visibility
type ProductStatus string

const (
	ProductStatusPublish ProductStatus = "publish"
	ProductStatusDraft   ProductStatus = "draft"
)

// StockStatus represents stock availability
type StockStatus string

const (
	StockStatusInStock    StockStatus = "instock"
	StockStatusOutOfStock StockStatus = "outofstock"
)

// TaxonomyKind classifies taxonomies in the target catalog
type TaxonomyKind string

const (
	TaxonomyKindCategory  TaxonomyKind = "category"
	TaxonomyKindAttribute TaxonomyKind = "attribute"
	TaxonomyKindBrand     TaxonomyKind = "brand"
)

// CatalogProduct is a product entity in the target catalog. Migrated
// products carry ExternalSourceID, the durable cross-reference used to
// decide create vs. update on repeated runs.
type CatalogProduct struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	ExternalSourceID *string       `gorm:"type:varchar(64);index:idx_catalog_products_external" json:"externalSourceId,omitempty"`
	Name             string        `gorm:"type:varchar(500);not null" json:"name"`
	Slug             string        `gorm:"type:varchar(200);index" json:"slug"`
	Description      string        `gorm:"type:text" json:"description"`
	ShortDescription string        `gorm:"type:text" json:"shortDescription"`
	Type             ProductType   `gorm:"type:varchar(20);default:'simple'" json:"type"`
	Status           ProductStatus `gorm:"type:varchar(20);default:'draft'" json:"status"`

	SKU           *string     `gorm:"type:varchar(255);index:idx_catalog_products_sku" json:"sku,omitempty"`
	RegularPrice  *float64    `gorm:"type:decimal(12,2)" json:"regularPrice,omitempty"`
	ManageStock   bool        `gorm:"default:false" json:"manageStock"`
	StockQuantity *int        `json:"stockQuantity,omitempty"`
	StockStatus   StockStatus `gorm:"type:varchar(20);default:'instock'" json:"stockStatus"`

	Weight *float64 `gorm:"type:decimal(10,3)" json:"weight,omitempty"`
	Width  *float64 `gorm:"type:decimal(10,2)" json:"width,omitempty"`
	Height *float64 `gorm:"type:decimal(10,2)" json:"height,omitempty"`
	Depth  *float64 `gorm:"type:decimal(10,2)" json:"depth,omitempty"`

	EAN13 *string `gorm:"type:varchar(13)" json:"ean13,omitempty"`
	UPC   *string `gorm:"type:varchar(12)" json:"upc,omitempty"`
	ISBN  *string `gorm:"type:varchar(13)" json:"isbn,omitempty"`

	FeaturedMediaID *uint  `json:"featuredMediaId,omitempty"`
	GalleryMediaIDs []uint `gorm:"serializer:json" json:"galleryMediaIds,omitempty"`

	// Attribute definitions for variable products, in first-seen group
	// order; DefaultAttributes maps taxonomy slug to the default term slug
	Attributes        []ProductAttribute `gorm:"serializer:json" json:"attributes,omitempty"`
	DefaultAttributes map[string]string  `gorm:"serializer:json" json:"defaultAttributes,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	Variations []CatalogVariation `gorm:"foreignKey:ProductID" json:"variations,omitempty"`
}

// TableName specifies the table name for CatalogProduct
func (CatalogProduct) TableName() string {
	return "catalog_products"
}

// ProductAttribute is one attribute dimension attached to a variable product
type ProductAttribute struct {
	TaxonomyID uint   `json:"taxonomyId"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	TermIDs    []uint `json:"termIds"`
	Position   int    `json:"position"`
	Visible    bool   `json:"visible"`
	Variation  bool   `json:"variation"`
}

// CatalogVariation is one concrete variant under a variable product
type CatalogVariation struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ProductID         uint              `gorm:"not null;index:idx_catalog_variations_product" json:"productId"`
	ExternalVariantID string            `gorm:"type:varchar(64)" json:"externalVariantId"`
	SKU               *string           `gorm:"type:varchar(255);index:idx_catalog_variations_sku" json:"sku,omitempty"`
	Price             float64           `gorm:"type:decimal(12,2)" json:"price"`
	StockQuantity     int               `gorm:"default:0" json:"stockQuantity"`
	StockStatus       StockStatus       `gorm:"type:varchar(20);default:'instock'" json:"stockStatus"`
	Attributes        map[string]string `gorm:"serializer:json" json:"attributes,omitempty"`
	MediaID           *uint             `json:"mediaId,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for CatalogVariation
func (CatalogVariation) TableName() string {
	return "catalog_variations"
}

// Taxonomy is a named term dimension: the category tree, one per product
// attribute (pa_*), or the brand taxonomy
type Taxonomy struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	Name             string       `gorm:"type:varchar(255);not null" json:"name"`
	Slug             string       `gorm:"type:varchar(200);uniqueIndex" json:"slug"`
	Kind             TaxonomyKind `gorm:"type:varchar(20);not null" json:"kind"`
	VariationEnabled bool         `gorm:"default:false" json:"variationEnabled"`
	Visible          bool         `gorm:"default:true" json:"visible"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for Taxonomy
func (Taxonomy) TableName() string {
	return "catalog_taxonomies"
}

// Term is one value inside a taxonomy (a category, attribute value or brand)
type Term struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	TaxonomyID       uint    `gorm:"not null;uniqueIndex:idx_terms_taxonomy_slug" json:"taxonomyId"`
	Name             string  `gorm:"type:varchar(255);not null" json:"name"`
	Slug             string  `gorm:"type:varchar(200);not null;uniqueIndex:idx_terms_taxonomy_slug" json:"slug"`
	ParentID         *uint   `gorm:"index" json:"parentId,omitempty"`
	Description      string  `gorm:"type:text" json:"description,omitempty"`
	ThumbnailMediaID *uint   `json:"thumbnailMediaId,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for Term
func (Term) TableName() string {
	return "catalog_terms"
}

// ProductTerm links products to taxonomy terms
type ProductTerm struct {
	ProductID uint `gorm:"primaryKey" json:"productId"`
	TermID    uint `gorm:"primaryKey" json:"termId"`
}

// TableName specifies the table name for ProductTerm
func (ProductTerm) TableName() string {
	return "catalog_product_terms"
}

// MediaAsset is an imported image. SourceKey identifies the upstream
// origin (image ID or URL) so repeated runs reuse the asset instead of
// downloading again.
type MediaAsset struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	FileName    string  `gorm:"type:varchar(255);not null" json:"fileName"`
	ContentType string  `gorm:"type:varchar(100)" json:"contentType"`
	SourceKey   *string `gorm:"type:varchar(500);uniqueIndex" json:"sourceKey,omitempty"`
	Data        []byte  `gorm:"type:bytea" json:"-"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for MediaAsset
func (MediaAsset) TableName() string {
	return "catalog_media_assets"
}
