package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/store"
)

// AttributeBuilder turns variant attribute dimensions into catalog
// taxonomies and terms. Group names map deterministically to pa_-prefixed
// taxonomy slugs and value names to term slugs, so the same source data
// always resolves to the same catalog objects across runs. Caches are
// scoped to one run and are not safe for concurrent use.
type AttributeBuilder struct {
	store  store.TargetStore
	logger *logrus.Entry

	taxonomies map[string]*models.Taxonomy
	terms      map[string]*models.Term
}

// NewAttributeBuilder creates a builder scoped to one migration run
func NewAttributeBuilder(st store.TargetStore, logger *logrus.Logger) *AttributeBuilder {
	return &AttributeBuilder{
		store:      st,
		logger:     logger.WithField("component", "attribute_builder"),
		taxonomies: make(map[string]*models.Taxonomy),
		terms:      make(map[string]*models.Term),
	}
}

// BuildAttributes constructs the parent product's attribute definitions
// from the union of all variants' attribute dimensions, preserving the
// first-seen order of group names.
func (b *AttributeBuilder) BuildAttributes(ctx context.Context, variants []clients.Variant) ([]models.ProductAttribute, error) {
	var groupOrder []string
	groupValues := make(map[string][]string)
	seenValue := make(map[string]bool)

	for _, variant := range variants {
		for _, attr := range variant.Attributes {
			if attr.GroupName == "" || attr.ValueName == "" {
				continue
			}
			if _, ok := groupValues[attr.GroupName]; !ok {
				groupOrder = append(groupOrder, attr.GroupName)
				groupValues[attr.GroupName] = nil
			}
			key := attr.GroupName + "\x00" + attr.ValueName
			if !seenValue[key] {
				seenValue[key] = true
				groupValues[attr.GroupName] = append(groupValues[attr.GroupName], attr.ValueName)
			}
		}
	}

	attributes := make([]models.ProductAttribute, 0, len(groupOrder))
	for position, groupName := range groupOrder {
		taxonomy, err := b.ensureTaxonomy(ctx, groupName)
		if err != nil {
			return nil, err
		}

		termIDs := make([]uint, 0, len(groupValues[groupName]))
		for _, valueName := range groupValues[groupName] {
			term, err := b.ensureTerm(ctx, taxonomy, valueName)
			if err != nil {
				return nil, err
			}
			termIDs = append(termIDs, term.ID)
		}

		attributes = append(attributes, models.ProductAttribute{
			TaxonomyID: taxonomy.ID,
			Name:       groupName,
			Slug:       taxonomy.Slug,
			TermIDs:    termIDs,
			Position:   position,
			Visible:    true,
			Variation:  true,
		})
	}
	return attributes, nil
}

// ResolveSelection maps one variant's attribute list to the catalog's
// taxonomy-slug to term-slug form used on variations.
func (b *AttributeBuilder) ResolveSelection(ctx context.Context, attrs []clients.VariantAttribute) (map[string]string, error) {
	selection := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		if attr.GroupName == "" || attr.ValueName == "" {
			continue
		}
		taxonomy, err := b.ensureTaxonomy(ctx, attr.GroupName)
		if err != nil {
			return nil, err
		}
		term, err := b.ensureTerm(ctx, taxonomy, attr.ValueName)
		if err != nil {
			return nil, err
		}
		selection[taxonomy.Slug] = term.Slug
	}
	return selection, nil
}

func (b *AttributeBuilder) ensureTaxonomy(ctx context.Context, groupName string) (*models.Taxonomy, error) {
	if taxonomy, ok := b.taxonomies[groupName]; ok {
		return taxonomy, nil
	}

	slug := "pa_" + slugOrHash(groupName)
	taxonomy, err := b.store.EnsureTaxonomy(ctx, slug, models.TaxonomyKindAttribute, true)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure attribute taxonomy %q: %w", groupName, err)
	}
	b.taxonomies[groupName] = taxonomy
	return taxonomy, nil
}

func (b *AttributeBuilder) ensureTerm(ctx context.Context, taxonomy *models.Taxonomy, valueName string) (*models.Term, error) {
	slug := slugOrHash(valueName)
	key := taxonomy.Slug + "\x00" + slug
	if term, ok := b.terms[key]; ok {
		return term, nil
	}

	term, err := b.store.FindTermBySlug(ctx, taxonomy.ID, slug)
	if err != nil {
		return nil, err
	}
	if term == nil {
		term = &models.Term{
			TaxonomyID: taxonomy.ID,
			Name:       valueName,
			Slug:       slug,
		}
		if err := b.store.CreateTerm(ctx, term); err != nil {
			return nil, fmt.Errorf("failed to create attribute term %q: %w", valueName, err)
		}
		b.logger.WithFields(logrus.Fields{
			"taxonomy": taxonomy.Slug,
			"term":     slug,
		}).Debug("Created attribute term")
	}
	b.terms[key] = term
	return term, nil
}
