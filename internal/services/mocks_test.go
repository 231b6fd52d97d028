package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/media"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/store"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Kind() clients.SourceKind {
	return clients.SourceKindAPI
}

func (m *mockSource) TestConnection(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSource) ListPage(ctx context.Context, offset, limit int) (*clients.ListResult, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ListResult), args.Error(1)
}

func (m *mockSource) FetchProduct(ctx context.Context, productID int) (*clients.CanonicalProduct, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.CanonicalProduct), args.Error(1)
}

func (m *mockSource) FetchCategory(ctx context.Context, categoryID int) (*clients.CategoryInfo, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.CategoryInfo), args.Error(1)
}

func (m *mockSource) HasVariants(ctx context.Context, productID int) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSource) FetchVariantsFor(ctx context.Context, productID int) ([]clients.Variant, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.Variant), args.Error(1)
}

func (m *mockSource) FetchImageBinary(ctx context.Context, productID, imageID int) ([]byte, error) {
	args := m.Called(ctx, productID, imageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// fakeStore is an in-memory TargetStore. The mapper and resolver tests
// exercise real create-or-update flows against it instead of scripting
// every store call.
type fakeStore struct {
	nextID     uint
	products   map[uint]*models.CatalogProduct
	variations map[uint][]*models.CatalogVariation
	taxonomies map[string]*models.Taxonomy
	terms      map[uint]*models.Term
	assigned   map[uint]map[uint]bool
	media      map[string]*models.MediaAsset

	readyErr error

	createdProducts int
	updatedProducts int
	deletedVarCalls int
	syncParentCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:     1,
		products:   make(map[uint]*models.CatalogProduct),
		variations: make(map[uint][]*models.CatalogVariation),
		taxonomies: make(map[string]*models.Taxonomy),
		terms:      make(map[uint]*models.Term),
		assigned:   make(map[uint]map[uint]bool),
		media:      make(map[string]*models.MediaAsset),
	}
}

func (f *fakeStore) id() uint {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) Ready(ctx context.Context) error {
	return f.readyErr
}

func (f *fakeStore) FindProductByExternalID(ctx context.Context, sourceID string) (*models.CatalogProduct, error) {
	for _, p := range f.products {
		if p.ExternalSourceID != nil && *p.ExternalSourceID == sourceID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindProductBySKU(ctx context.Context, sku string) (*models.CatalogProduct, error) {
	if sku == "" {
		return nil, nil
	}
	for _, p := range f.products {
		if p.SKU != nil && *p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SKUInUse(ctx context.Context, sku string, excludeProductID uint) (bool, error) {
	if sku == "" {
		return false, nil
	}
	for id, p := range f.products {
		if id != excludeProductID && p.SKU != nil && *p.SKU == sku {
			return true, nil
		}
	}
	for pid, vars := range f.variations {
		if pid == excludeProductID {
			continue
		}
		for _, v := range vars {
			if v.SKU != nil && *v.SKU == sku {
				return true, nil
			}
		}
	}
	return false, nil
}

func specToProduct(spec *store.ProductSpec) *models.CatalogProduct {
	p := &models.CatalogProduct{
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
		FeaturedMediaID:   spec.FeaturedMediaID,
		GalleryMediaIDs:   spec.GalleryMediaIDs,
		Attributes:        spec.Attributes,
		DefaultAttributes: spec.DefaultAttributes,
	}
	if spec.ExternalSourceID != "" {
		id := spec.ExternalSourceID
		p.ExternalSourceID = &id
	}
	if spec.SKU != "" {
		sku := spec.SKU
		p.SKU = &sku
	}
	return p
}

func (f *fakeStore) CreateProduct(ctx context.Context, spec *store.ProductSpec) (*models.CatalogProduct, error) {
	p := specToProduct(spec)
	p.ID = f.id()
	f.products[p.ID] = p
	f.createdProducts++
	return p, nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, id uint, spec *store.ProductSpec) (*models.CatalogProduct, error) {
	p := specToProduct(spec)
	p.ID = id
	f.products[id] = p
	f.updatedProducts++
	return p, nil
}

func (f *fakeStore) DeleteVariations(ctx context.Context, productID uint) error {
	delete(f.variations, productID)
	f.deletedVarCalls++
	return nil
}

func (f *fakeStore) CreateVariation(ctx context.Context, productID uint, spec *store.VariationSpec) (*models.CatalogVariation, error) {
	v := &models.CatalogVariation{
		ID:                f.id(),
		ProductID:         productID,
		ExternalVariantID: spec.ExternalVariantID,
		Price:             spec.Price,
		StockQuantity:     spec.StockQuantity,
		StockStatus:       spec.StockStatus,
		Attributes:        spec.Attributes,
		MediaID:           spec.MediaID,
	}
	if spec.SKU != "" {
		sku := spec.SKU
		v.SKU = &sku
	}
	f.variations[productID] = append(f.variations[productID], v)
	return v, nil
}

func (f *fakeStore) SyncParent(ctx context.Context, productID uint) error {
	f.syncParentCalls++
	p, ok := f.products[productID]
	if !ok {
		return nil
	}
	vars := f.variations[productID]
	p.RegularPrice = nil
	p.StockStatus = models.StockStatusOutOfStock
	for _, v := range vars {
		if p.RegularPrice == nil || v.Price < *p.RegularPrice {
			price := v.Price
			p.RegularPrice = &price
		}
		if v.StockStatus == models.StockStatusInStock {
			p.StockStatus = models.StockStatusInStock
		}
	}
	return nil
}

func (f *fakeStore) EnsureTaxonomy(ctx context.Context, slug string, kind models.TaxonomyKind, variationEnabled bool) (*models.Taxonomy, error) {
	if t, ok := f.taxonomies[slug]; ok {
		return t, nil
	}
	t := &models.Taxonomy{
		ID:               f.id(),
		Name:             slug,
		Slug:             slug,
		Kind:             kind,
		VariationEnabled: variationEnabled,
		Visible:          true,
	}
	f.taxonomies[slug] = t
	return t, nil
}

func (f *fakeStore) FindTaxonomyBySlug(ctx context.Context, slug string) (*models.Taxonomy, error) {
	if t, ok := f.taxonomies[slug]; ok {
		return t, nil
	}
	return nil, nil
}

func (f *fakeStore) FindTermBySlug(ctx context.Context, taxonomyID uint, slug string) (*models.Term, error) {
	for _, t := range f.terms {
		if t.TaxonomyID == taxonomyID && t.Slug == slug {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateTerm(ctx context.Context, term *models.Term) error {
	term.ID = f.id()
	f.terms[term.ID] = term
	return nil
}

func (f *fakeStore) AssignTerms(ctx context.Context, productID uint, taxonomyID uint, termIDs []uint) error {
	if f.assigned[productID] == nil {
		f.assigned[productID] = make(map[uint]bool)
	}
	for _, id := range termIDs {
		f.assigned[productID][id] = true
	}
	return nil
}

func (f *fakeStore) TermThumbnail(ctx context.Context, termID uint) (*uint, error) {
	if t, ok := f.terms[termID]; ok {
		return t.ThumbnailMediaID, nil
	}
	return nil, nil
}

func (f *fakeStore) SetTermThumbnail(ctx context.Context, termID uint, mediaID uint) error {
	if t, ok := f.terms[termID]; ok {
		t.ThumbnailMediaID = &mediaID
	}
	return nil
}

func (f *fakeStore) FindMediaBySourceKey(ctx context.Context, sourceKey string) (*models.MediaAsset, error) {
	if a, ok := f.media[sourceKey]; ok {
		return a, nil
	}
	return nil, nil
}

func (f *fakeStore) AttachMedia(ctx context.Context, data []byte, fileName, contentType, sourceKey string) (*models.MediaAsset, error) {
	if a, ok := f.media[sourceKey]; ok {
		return a, nil
	}
	a := &models.MediaAsset{
		ID:          f.id(),
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	}
	if sourceKey != "" {
		key := sourceKey
		a.SourceKey = &key
		f.media[sourceKey] = a
	}
	return a, nil
}

var _ store.TargetStore = (*fakeStore)(nil)

type fakeFetcher struct {
	valid map[string]bool
	data  map[string][]byte
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		valid: make(map[string]bool),
		data:  make(map[string][]byte),
	}
}

func (f *fakeFetcher) ProbeImage(ctx context.Context, imageURL string) bool {
	return f.valid[imageURL]
}

func (f *fakeFetcher) FetchImage(ctx context.Context, imageURL string) (*media.Image, error) {
	if !f.valid[imageURL] {
		return nil, context.Canceled
	}
	return &media.Image{
		Data:        f.data[imageURL],
		ContentType: "image/jpeg",
		FileName:    media.FileNameFromURL(imageURL),
	}, nil
}

var _ media.Fetcher = (*fakeFetcher)(nil)

type fakeMappings struct {
	bySource map[string]*models.ProductMapping
	upserts  int
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{
		bySource: make(map[string]*models.ProductMapping),
	}
}

func (f *fakeMappings) GetProductMappingBySourceID(ctx context.Context, sourceProductID string) (*models.ProductMapping, error) {
	return f.bySource[sourceProductID], nil
}

func (f *fakeMappings) UpsertProductMapping(ctx context.Context, mapping *models.ProductMapping) error {
	f.upserts++
	f.bySource[mapping.SourceProductID] = mapping
	return nil
}

var _ MappingStore = (*fakeMappings)(nil)
