package clients

import (
	"context"
	"errors"
	"fmt"
)

// SourceKind identifies a product source implementation
type SourceKind string

const (
	SourceKindAPI SourceKind = "api"
	SourceKindDB  SourceKind = "db"
)

// ProductSource defines the capability set that all source adapters must implement.
// The migration runner and mapper depend only on this interface, never on a
// concrete adapter type.
type ProductSource interface {
	// Kind returns the source kind
	Kind() SourceKind

	// TestConnection verifies the source is reachable and credentials work
	TestConnection(ctx context.Context) error

	// ListPage returns one page of product summaries ordered by ascending ID.
	// HasMore is true iff the page returned exactly limit items.
	ListPage(ctx context.Context, offset, limit int) (*ListResult, error)

	// FetchProduct resolves one product to its canonical representation.
	// Returns ErrNotFound when the ID does not resolve to usable data.
	FetchProduct(ctx context.Context, productID int) (*CanonicalProduct, error)

	// FetchCategory resolves one source category
	FetchCategory(ctx context.Context, categoryID int) (*CategoryInfo, error)

	// HasVariants reports whether the product has combinations. API-backed
	// sources derive this from the fetched payload and may return false here.
	HasVariants(ctx context.Context, productID int) (bool, error)

	// FetchVariantsFor lazily loads combinations when the product payload
	// omitted them
	FetchVariantsFor(ctx context.Context, productID int) ([]Variant, error)

	// FetchImageBinary downloads one product image by source image ID
	FetchImageBinary(ctx context.Context, productID, imageID int) ([]byte, error)
}

// ListResult contains one page of product summaries
type ListResult struct {
	Items   []ListItem
	HasMore bool
}

// ListItem is the summary row returned by ListPage
type ListItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Price     string `json:"price"`
	Active    string `json:"active"`
}

// CanonicalProduct is the normalized, source-agnostic product representation
// produced by the adapters and consumed by the mapper. All multilingual
// fields are already language-resolved.
type CanonicalProduct struct {
	SourceID         string       `json:"sourceId"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	ShortDescription string       `json:"shortDescription"`
	Price            float64      `json:"price"`
	Quantity         int          `json:"quantity"`
	Active           bool         `json:"active"`
	Reference        string       `json:"reference,omitempty"`
	Weight           float64      `json:"weight,omitempty"`
	Width            float64      `json:"width,omitempty"`
	Height           float64      `json:"height,omitempty"`
	Depth            float64      `json:"depth,omitempty"`
	EAN13            string       `json:"ean13,omitempty"`
	UPC              string       `json:"upc,omitempty"`
	ISBN             string       `json:"isbn,omitempty"`
	CategoryIDs      []string     `json:"categoryIds,omitempty"`
	Manufacturer     Manufacturer `json:"manufacturer"`
	Images           []ImageRef   `json:"images,omitempty"`
	Variants         []Variant    `json:"variants,omitempty"`
}

// Manufacturer carries the brand fields of a canonical product
type Manufacturer struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	LogoURLCandidates []string `json:"logoUrlCandidates,omitempty"`
}

// ImageRef points at a source image. Exactly one locator is set: a remote
// URL (DB source) or a source image ID fetched through FetchImageBinary
// (API source). MediaID is filled in by image acquisition before the ref
// reaches the mapper.
type ImageRef struct {
	URL           string `json:"url,omitempty"`
	SourceImageID int    `json:"sourceImageId,omitempty"`
	MediaID       uint   `json:"mediaId,omitempty"`
}

// Variant is one concrete sellable combination of attribute values under a
// parent product
type Variant struct {
	ExternalVariantID string             `json:"externalVariantId"`
	SKU               string             `json:"sku,omitempty"`
	PriceDelta        float64            `json:"priceDelta"`
	Quantity          int                `json:"quantity"`
	Attributes        []VariantAttribute `json:"attributes,omitempty"`
	Image             *ImageRef          `json:"image,omitempty"`
}

// VariantAttribute is one attribute dimension of a variant, e.g. Color=Red.
// Order within Variant.Attributes follows the source's configured display
// order and must be preserved: the first complete variant's attribute set
// becomes the parent's default selection.
type VariantAttribute struct {
	GroupName string `json:"groupName"`
	ValueName string `json:"valueName"`
}

// CategoryInfo is the source category shape consumed by the category resolver
type CategoryInfo struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId"`
	Name        string `json:"name"`
	SlugHint    string `json:"slugHint,omitempty"`
	Description string `json:"description,omitempty"`
}

// ErrNotFound means an ID did not resolve to usable data after all
// fallbacks were exhausted. Distinct from SourceError: it is a per-item
// condition, never fatal to a batch.
var ErrNotFound = errors.New("not found in source")

// SourceErrorKind classifies source adapter failures
type SourceErrorKind string

const (
	SourceErrTransport  SourceErrorKind = "transport"
	SourceErrHTTPStatus SourceErrorKind = "http_status"
	SourceErrDecode     SourceErrorKind = "decode"
)

// SourceError is a typed failure from a source adapter
type SourceError struct {
	Kind       SourceErrorKind
	StatusCode int
	Op         string
	Err        error
}

func (e *SourceError) Error() string {
	switch e.Kind {
	case SourceErrHTTPStatus:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	case SourceErrDecode:
		return fmt.Sprintf("%s: decode: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewTransportError wraps a network-level failure
func NewTransportError(op string, err error) *SourceError {
	return &SourceError{Kind: SourceErrTransport, Op: op, Err: err}
}

// NewStatusError wraps a non-2xx HTTP response
func NewStatusError(op string, code int) *SourceError {
	return &SourceError{Kind: SourceErrHTTPStatus, Op: op, StatusCode: code}
}

// NewDecodeError wraps a response body that could not be parsed
func NewDecodeError(op string, err error) *SourceError {
	return &SourceError{Kind: SourceErrDecode, Op: op, Err: err}
}

// IsStatus reports whether err is a SourceError with the given HTTP status
func IsStatus(err error, code int) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind == SourceErrHTTPStatus && se.StatusCode == code
	}
	return false
}
