package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/langtext"
	"catalog-migration-service/internal/media"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/store"
)

const (
	// NativeBrandTaxonomySlug is preferred when the catalog already carries it.
	NativeBrandTaxonomySlug = "product_brand"
	// FallbackBrandTaxonomySlug is created when no native brand taxonomy exists.
	FallbackBrandTaxonomySlug = "pwb-brand"
)

// BrandResolver assigns manufacturer brands to catalog products, creating
// brand terms on first sight and attaching manufacturer logos to terms
// that have no thumbnail yet. All failures here are soft: a product
// without a brand is still a migrated product. Caches are scoped to one
// run and are not safe for concurrent use.
type BrandResolver struct {
	store   store.TargetStore
	fetcher media.Fetcher
	logger  *logrus.Entry

	taxonomy *models.Taxonomy
	terms    map[string]uint
	logos    map[int]uint
}

// NewBrandResolver creates a resolver scoped to one migration run
func NewBrandResolver(st store.TargetStore, fetcher media.Fetcher, logger *logrus.Logger) *BrandResolver {
	return &BrandResolver{
		store:   st,
		fetcher: fetcher,
		logger:  logger.WithField("component", "brand_resolver"),
		terms:   make(map[string]uint),
		logos:   make(map[int]uint),
	}
}

// Assign resolves the manufacturer to a brand term and links it to the
// product. An empty manufacturer name after normalization is a logged
// skip, not an error.
func (r *BrandResolver) Assign(ctx context.Context, productID uint, manufacturer clients.Manufacturer) error {
	name := langtext.Sanitize(manufacturer.Name)
	if name == "" {
		if manufacturer.ID != 0 || manufacturer.Name != "" {
			r.logger.WithField("manufacturer_id", manufacturer.ID).Info("Manufacturer name empty after normalization, skipping brand")
		}
		return nil
	}

	if err := r.ensureTaxonomy(ctx); err != nil {
		return err
	}

	termID, err := r.resolveTerm(ctx, name)
	if err != nil {
		return err
	}

	r.attachLogo(ctx, termID, manufacturer)

	if err := r.store.AssignTerms(ctx, productID, r.taxonomy.ID, []uint{termID}); err != nil {
		return fmt.Errorf("failed to assign brand %q: %w", name, err)
	}
	return nil
}

func (r *BrandResolver) resolveTerm(ctx context.Context, name string) (uint, error) {
	if termID, ok := r.terms[name]; ok {
		return termID, nil
	}

	slug := slugOrHash(name)
	term, err := r.store.FindTermBySlug(ctx, r.taxonomy.ID, slug)
	if err != nil {
		return 0, err
	}
	if term == nil {
		term = &models.Term{
			TaxonomyID: r.taxonomy.ID,
			Name:       name,
			Slug:       slug,
		}
		if err := r.store.CreateTerm(ctx, term); err != nil {
			return 0, fmt.Errorf("failed to create brand term %q: %w", name, err)
		}
		r.logger.WithField("brand", name).Info("Created brand term")
	}
	r.terms[name] = term.ID
	return term.ID, nil
}

// attachLogo tries the manufacturer's logo candidates for a term that has
// no thumbnail. Exhausting all candidates is a logged skip.
func (r *BrandResolver) attachLogo(ctx context.Context, termID uint, manufacturer clients.Manufacturer) {
	if len(manufacturer.LogoURLCandidates) == 0 {
		return
	}

	thumbnail, err := r.store.TermThumbnail(ctx, termID)
	if err != nil {
		r.logger.WithError(err).WithField("term_id", termID).Warn("Failed to check brand thumbnail")
		return
	}
	if thumbnail != nil {
		return
	}

	if mediaID, ok := r.logos[manufacturer.ID]; ok {
		if err := r.store.SetTermThumbnail(ctx, termID, mediaID); err != nil {
			r.logger.WithError(err).WithField("term_id", termID).Warn("Failed to set brand thumbnail")
		}
		return
	}

	for _, candidate := range manufacturer.LogoURLCandidates {
		if !r.fetcher.ProbeImage(ctx, candidate) {
			continue
		}
		img, err := r.fetcher.FetchImage(ctx, candidate)
		if err != nil {
			r.logger.WithError(err).WithField("url", candidate).Debug("Logo download failed")
			continue
		}
		sourceKey := fmt.Sprintf("manufacturer:%d:logo", manufacturer.ID)
		asset, err := r.store.AttachMedia(ctx, img.Data, img.FileName, img.ContentType, sourceKey)
		if err != nil {
			r.logger.WithError(err).WithField("url", candidate).Warn("Failed to store brand logo")
			return
		}
		if err := r.store.SetTermThumbnail(ctx, termID, asset.ID); err != nil {
			r.logger.WithError(err).WithField("term_id", termID).Warn("Failed to set brand thumbnail")
			return
		}
		r.logos[manufacturer.ID] = asset.ID
		return
	}

	r.logger.WithField("manufacturer_id", manufacturer.ID).Info("No logo candidate resolved to an image, skipping")
}

// ensureTaxonomy picks the brand taxonomy once per run: the native one
// when present, otherwise the plugin-local fallback.
func (r *BrandResolver) ensureTaxonomy(ctx context.Context) error {
	if r.taxonomy != nil {
		return nil
	}

	native, err := r.store.FindTaxonomyBySlug(ctx, NativeBrandTaxonomySlug)
	if err != nil {
		return err
	}
	if native != nil {
		r.taxonomy = native
		return nil
	}

	fallback, err := r.store.EnsureTaxonomy(ctx, FallbackBrandTaxonomySlug, models.TaxonomyKindBrand, false)
	if err != nil {
		return err
	}
	r.taxonomy = fallback
	return nil
}
