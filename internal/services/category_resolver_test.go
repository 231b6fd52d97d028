package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-migration-service/internal/clients"
)

func newTestResolver(fs *fakeStore) (*CategoryResolver, *mockSource) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	source := &mockSource{}
	return NewCategoryResolver(source, fs, logger), source
}

func TestResolveCreatesParentChain(t *testing.T) {
	fs := newFakeStore()
	resolver, source := newTestResolver(fs)
	ctx := context.Background()

	source.On("FetchCategory", ctx, 5).Return(&clients.CategoryInfo{
		ID: "5", ParentID: "3", Name: "Sneakers", SlugHint: "sneakers",
	}, nil)
	source.On("FetchCategory", ctx, 3).Return(&clients.CategoryInfo{
		ID: "3", ParentID: "0", Name: "Shoes", SlugHint: "shoes",
	}, nil)

	termID, err := resolver.Resolve(ctx, "5")
	require.NoError(t, err)
	require.NotNil(t, termID)

	child := fs.terms[*termID]
	require.NotNil(t, child)
	assert.Equal(t, "sneakers", child.Slug)
	require.NotNil(t, child.ParentID)

	parent := fs.terms[*child.ParentID]
	require.NotNil(t, parent)
	assert.Equal(t, "shoes", parent.Slug)
	assert.Nil(t, parent.ParentID)
}

func TestResolveMemoizes(t *testing.T) {
	fs := newFakeStore()
	resolver, source := newTestResolver(fs)
	ctx := context.Background()

	source.On("FetchCategory", ctx, 3).Return(&clients.CategoryInfo{
		ID: "3", ParentID: "0", Name: "Shoes",
	}, nil).Once()

	first, err := resolver.Resolve(ctx, "3")
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
	source.AssertExpectations(t)
}

func TestResolveEmptyNameFailsClosed(t *testing.T) {
	fs := newFakeStore()
	resolver, source := newTestResolver(fs)
	ctx := context.Background()

	source.On("FetchCategory", ctx, 9).Return(&clients.CategoryInfo{
		ID: "9", ParentID: "0", Name: "",
	}, nil).Once()

	termID, err := resolver.Resolve(ctx, "9")
	require.NoError(t, err)
	assert.Nil(t, termID)

	// Negative result is cached, the source is not asked again.
	termID, err = resolver.Resolve(ctx, "9")
	require.NoError(t, err)
	assert.Nil(t, termID)
	source.AssertExpectations(t)
}

func TestResolveReusesExistingSlug(t *testing.T) {
	fs := newFakeStore()
	resolver, source := newTestResolver(fs)
	ctx := context.Background()

	source.On("FetchCategory", ctx, 3).Return(&clients.CategoryInfo{
		ID: "3", ParentID: "0", Name: "Shoes", SlugHint: "shoes",
	}, nil)
	source.On("FetchCategory", ctx, 4).Return(&clients.CategoryInfo{
		ID: "4", ParentID: "0", Name: "Shoes again", SlugHint: "shoes",
	}, nil)

	first, err := resolver.Resolve(ctx, "3")
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
}
