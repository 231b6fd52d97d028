package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/store"
)

// CategoryTaxonomySlug is the product category taxonomy in the target catalog.
const CategoryTaxonomySlug = "product_cat"

// CategoryResolver maps source category IDs to catalog terms, creating
// missing terms with their full parent chain. Results are memoized for
// the lifetime of the resolver, including negative ones, so one batch
// never fetches the same category twice. Not safe for concurrent use.
type CategoryResolver struct {
	source clients.ProductSource
	store  store.TargetStore
	logger *logrus.Entry

	taxonomy  *models.Taxonomy
	cache     map[string]*uint
	resolving map[string]bool
}

// NewCategoryResolver creates a resolver scoped to one migration run
func NewCategoryResolver(source clients.ProductSource, st store.TargetStore, logger *logrus.Logger) *CategoryResolver {
	return &CategoryResolver{
		source:    source,
		store:     st,
		logger:    logger.WithField("component", "category_resolver"),
		cache:     make(map[string]*uint),
		resolving: make(map[string]bool),
	}
}

// TaxonomyID returns the category taxonomy ID, ensuring the taxonomy exists
func (r *CategoryResolver) TaxonomyID(ctx context.Context) (uint, error) {
	if err := r.ensureTaxonomy(ctx); err != nil {
		return 0, err
	}
	return r.taxonomy.ID, nil
}

// Resolve returns the catalog term ID for a source category, or nil when
// the category cannot be resolved (unknown ID, empty name). The nil
// outcome is cached so repeated products in the same run skip straight
// through.
func (r *CategoryResolver) Resolve(ctx context.Context, sourceCategoryID string) (*uint, error) {
	if sourceCategoryID == "" || sourceCategoryID == "0" {
		return nil, nil
	}
	if termID, ok := r.cache[sourceCategoryID]; ok {
		return termID, nil
	}
	if r.resolving[sourceCategoryID] {
		// Parent chain loops back on itself, treat as root.
		r.logger.WithField("category_id", sourceCategoryID).Warn("Category parent cycle detected")
		return nil, nil
	}

	if err := r.ensureTaxonomy(ctx); err != nil {
		return nil, err
	}

	r.resolving[sourceCategoryID] = true
	termID, err := r.resolve(ctx, sourceCategoryID)
	delete(r.resolving, sourceCategoryID)
	if err != nil {
		return nil, err
	}

	r.cache[sourceCategoryID] = termID
	return termID, nil
}

func (r *CategoryResolver) resolve(ctx context.Context, sourceCategoryID string) (*uint, error) {
	categoryID, err := strconv.Atoi(sourceCategoryID)
	if err != nil {
		r.logger.WithField("category_id", sourceCategoryID).Warn("Non-numeric source category ID")
		return nil, nil
	}

	info, err := r.source.FetchCategory(ctx, categoryID)
	if err != nil {
		r.logger.WithError(err).WithField("category_id", sourceCategoryID).Warn("Failed to fetch source category")
		return nil, nil
	}
	if info.Name == "" {
		r.logger.WithField("category_id", sourceCategoryID).Warn("Source category has no name, skipping")
		return nil, nil
	}

	var parentTermID *uint
	if info.ParentID != "" && info.ParentID != "0" && info.ParentID != sourceCategoryID {
		parentTermID, err = r.Resolve(ctx, info.ParentID)
		if err != nil {
			return nil, err
		}
	}

	slug := info.SlugHint
	if slug == "" {
		slug = slugOrHash(info.Name)
	}

	existing, err := r.store.FindTermBySlug(ctx, r.taxonomy.ID, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &existing.ID, nil
	}

	term := &models.Term{
		TaxonomyID:  r.taxonomy.ID,
		Name:        info.Name,
		Slug:        slug,
		ParentID:    parentTermID,
		Description: info.Description,
	}
	if err := r.store.CreateTerm(ctx, term); err != nil {
		return nil, fmt.Errorf("failed to create category term %q: %w", info.Name, err)
	}
	r.logger.WithFields(logrus.Fields{
		"category_id": sourceCategoryID,
		"term_id":     term.ID,
		"slug":        slug,
	}).Debug("Created category term")
	return &term.ID, nil
}

func (r *CategoryResolver) ensureTaxonomy(ctx context.Context) error {
	if r.taxonomy != nil {
		return nil
	}
	taxonomy, err := r.store.EnsureTaxonomy(ctx, CategoryTaxonomySlug, models.TaxonomyKindCategory, false)
	if err != nil {
		return err
	}
	r.taxonomy = taxonomy
	return nil
}
