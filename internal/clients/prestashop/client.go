package prestashop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/langtext"
)

const (
	// ModeAPI talks to the standard /api/ endpoint
	ModeAPI = "api"
	// ModeDispatcher talks to webservice/dispatcher.php with the resource
	// path passed as a query parameter. Needed for shops without URL
	// rewriting; such gateways often ignore sort and single-resource GETs.
	ModeDispatcher = "dispatcher"

	scanPageSize = 250
	maxScanPages = 40
)

// Client implements clients.ProductSource against the PrestaShop webservice
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	mode        string
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
	breaker     *clients.CircuitBreaker
	logger      *logrus.Entry
}

// NewClient creates a webservice client. mode is ModeAPI or ModeDispatcher.
func NewClient(baseURL, apiKey, mode string, logger *logrus.Logger) *Client {
	if mode != ModeDispatcher {
		mode = ModeAPI
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		mode:        mode,
		rateLimiter: rate.NewLimiter(rate.Limit(4), 2),
		retrier:     clients.NewRetrier(nil),
		breaker:     clients.NewCircuitBreaker(5, 30*time.Second),
		logger:      logger.WithField("component", "prestashop_api"),
	}
}

// Kind returns the source kind
func (c *Client) Kind() clients.SourceKind {
	return clients.SourceKindAPI
}

// TestConnection fetches a single product to verify URL and key
func (c *Client) TestConnection(ctx context.Context) error {
	params := url.Values{}
	params.Set("display", "full")
	params.Set("limit", "1")
	_, err := c.getJSON(ctx, c.buildURL("products", params), "test connection")
	return err
}

// ListPage returns one page of product summaries sorted by ascending ID.
// When the sorted request comes back empty the page is retried without the
// sort parameter: dispatcher gateways drop unsupported query parameters
// silently instead of erroring.
func (c *Client) ListPage(ctx context.Context, offset, limit int) (*clients.ListResult, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > scanPageSize {
		limit = scanPageSize
	}
	if offset < 0 {
		offset = 0
	}
	limitParam := fmt.Sprintf("%d,%d", offset, limit)

	params := url.Values{}
	params.Set("display", "[id,name,reference,price,active]")
	params.Set("sort", "[id_ASC]")
	params.Set("limit", limitParam)
	data, err := c.getJSON(ctx, c.buildURL("products", params), "list products")
	if err != nil {
		return nil, err
	}
	if len(parseProductList(data)) == 0 {
		params.Del("sort")
		data, err = c.getJSON(ctx, c.buildURL("products", params), "list products")
		if err != nil {
			return nil, err
		}
	}

	raw := parseProductList(data)
	items := make([]clients.ListItem, 0, len(raw))
	for _, p := range raw {
		items = append(items, clients.ListItem{
			ID:        scalarID(p),
			Name:      strings.TrimSpace(langtext.FirstLocalized(p["name"])),
			Reference: langtext.FirstLocalized(p["reference"]),
			Price:     langtext.FirstLocalized(p["price"]),
			Active:    defaultStr(langtext.FirstLocalized(p["active"]), "1"),
		})
	}
	return &clients.ListResult{
		Items:   items,
		HasMore: len(raw) == limit,
	}, nil
}

// FetchProduct resolves one product via an ordered strategy chain. Each
// strategy either yields a usable raw product or passes to the next;
// exhaustion means clients.ErrNotFound. A product is usable only when it
// has a non-empty name or price: some gateways return ID-only stubs.
func (c *Client) FetchProduct(ctx context.Context, productID int) (*clients.CanonicalProduct, error) {
	strategies := []struct {
		name string
		run  func(context.Context, int) (map[string]interface{}, error)
	}{
		{"direct", c.fetchDirect},
		{"filter", c.fetchByFilter},
		{"single_sorted", c.fetchSingleSorted},
		{"scan_sorted", c.fetchByScanSorted},
		{"scan_unsorted", c.fetchByScanUnsorted},
	}

	for _, s := range strategies {
		raw, err := s.run(ctx, productID)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		if !productHasData(raw) {
			continue
		}
		if s.name != "direct" {
			c.logger.WithFields(logrus.Fields{
				"product_id": productID,
				"strategy":   s.name,
			}).Info("product resolved via fallback strategy")
		}
		return c.convertProduct(raw, productID), nil
	}
	return nil, clients.ErrNotFound
}

// FetchCategory fetches one category by ID
func (c *Client) FetchCategory(ctx context.Context, categoryID int) (*clients.CategoryInfo, error) {
	params := url.Values{}
	params.Set("display", "full")
	data, err := c.getJSON(ctx, c.buildURL("categories/"+strconv.Itoa(categoryID), params), "fetch category")
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			return nil, clients.ErrNotFound
		}
		return nil, err
	}
	raw := unwrapObject(data, "category")
	if raw == nil {
		return nil, clients.ErrNotFound
	}
	return &clients.CategoryInfo{
		ID:          defaultStr(scalarID(raw), strconv.Itoa(categoryID)),
		ParentID:    langtext.FirstLocalized(raw["id_parent"]),
		Name:        strings.TrimSpace(langtext.FirstLocalized(raw["name"])),
		SlugHint:    strings.TrimSpace(langtext.FirstLocalized(raw["link_rewrite"])),
		Description: langtext.FirstLocalized(raw["description"]),
	}, nil
}

// HasVariants always reports false: the webservice payload does not carry
// usable combination rows, so API-sourced products are migrated as simple
func (c *Client) HasVariants(ctx context.Context, productID int) (bool, error) {
	return false, nil
}

// FetchVariantsFor is a no-op for the API source
func (c *Client) FetchVariantsFor(ctx context.Context, productID int) ([]clients.Variant, error) {
	return nil, nil
}

// FetchImageBinary downloads one product image through the webservice
func (c *Client) FetchImageBinary(ctx context.Context, productID, imageID int) ([]byte, error) {
	const op = "fetch image"
	imageURL := c.imageURL(productID, imageID)

	if !c.breaker.Allow() {
		return nil, clients.NewTransportError(op, fmt.Errorf("circuit open"))
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, clients.NewTransportError(op, err)
	}
	resp, err := c.retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, clients.NewTransportError(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		c.breaker.RecordFailure()
		return nil, clients.NewStatusError(op, resp.StatusCode)
	}
	c.breaker.RecordSuccess()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clients.NewTransportError(op, err)
	}
	return body, nil
}

// fetchDirect tries the single-resource endpoint. 404 is expected with
// dispatcher gateways and hands over to the filter strategy.
func (c *Client) fetchDirect(ctx context.Context, productID int) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("display", "full")
	data, err := c.getJSON(ctx, c.buildURL("products/"+strconv.Itoa(productID), params), "fetch product")
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return extractProduct(data, productID), nil
}

// fetchByFilter asks the list endpoint for exactly one ID
func (c *Client) fetchByFilter(ctx context.Context, productID int) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("display", "full")
	params.Set("limit", "0,1")
	params.Set("filter[id]", fmt.Sprintf("[%d]", productID))
	data, err := c.getJSON(ctx, c.buildURL("products", params), "fetch product by filter")
	if err != nil {
		return nil, nil
	}
	return findProductByID(parseProductList(data), strconv.Itoa(productID)), nil
}

// fetchSingleSorted requests one sorted row at offset id-1. When the shop
// has contiguous IDs this lands exactly on the product in a single call.
func (c *Client) fetchSingleSorted(ctx context.Context, productID int) (map[string]interface{}, error) {
	if productID < 1 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("display", "full")
	params.Set("sort", "[id_ASC]")
	params.Set("limit", fmt.Sprintf("%d,1", productID-1))
	data, err := c.getJSON(ctx, c.buildURL("products", params), "fetch product at offset")
	if err != nil {
		return nil, nil
	}
	items := parseProductList(data)
	if len(items) == 0 {
		return nil, nil
	}
	if scalarID(items[0]) != strconv.Itoa(productID) {
		return nil, nil
	}
	return items[0], nil
}

// fetchByScanSorted scans sorted full pages looking for the ID
func (c *Client) fetchByScanSorted(ctx context.Context, productID int) (map[string]interface{}, error) {
	idStr := strconv.Itoa(productID)
	for page := 0; page < maxScanPages; page++ {
		items, err := c.fetchFullPage(ctx, page*scanPageSize, true)
		if err != nil || len(items) == 0 {
			return nil, nil
		}
		if found := findProductByID(items, idStr); found != nil && productHasData(found) {
			c.logger.WithField("product_id", productID).WithField("offset", page*scanPageSize).Info("found in sorted page scan")
			return found, nil
		}
		if len(items) < scanPageSize {
			return nil, nil
		}
	}
	return nil, nil
}

// fetchByScanUnsorted scans pages without sorting, starting with the offset
// the product would occupy if rows came back in ID order
func (c *Client) fetchByScanUnsorted(ctx context.Context, productID int) (map[string]interface{}, error) {
	idStr := strconv.Itoa(productID)
	offsets := []int{}
	if productID > 0 {
		offsets = append(offsets, (productID-1)/scanPageSize*scanPageSize)
	}
	for page := 0; page < maxScanPages; page++ {
		off := page * scanPageSize
		if len(offsets) > 0 && off == offsets[0] {
			continue
		}
		offsets = append(offsets, off)
	}
	for _, off := range offsets {
		items, err := c.fetchFullPage(ctx, off, false)
		if err != nil || len(items) == 0 {
			continue
		}
		if found := findProductByID(items, idStr); found != nil && productHasData(found) {
			c.logger.WithField("product_id", productID).WithField("offset", off).Info("found in unsorted page scan")
			return found, nil
		}
		if len(items) < scanPageSize {
			break
		}
	}
	return nil, nil
}

// fetchFullPage fetches one display=full page, falling back to an unsorted
// request when the sorted one comes back empty
func (c *Client) fetchFullPage(ctx context.Context, offset int, useSort bool) ([]map[string]interface{}, error) {
	params := url.Values{}
	params.Set("display", "full")
	params.Set("limit", fmt.Sprintf("%d,%d", offset, scanPageSize))
	if useSort {
		params.Set("sort", "[id_ASC]")
	}
	data, err := c.getJSON(ctx, c.buildURL("products", params), "scan products page")
	if err != nil {
		return nil, err
	}
	items := parseProductList(data)
	if useSort && len(items) == 0 {
		params.Del("sort")
		data, err = c.getJSON(ctx, c.buildURL("products", params), "scan products page")
		if err != nil {
			return nil, err
		}
		items = parseProductList(data)
	}
	return items, nil
}

// convertProduct turns a raw webservice product map into the canonical shape
func (c *Client) convertProduct(raw map[string]interface{}, productID int) *clients.CanonicalProduct {
	id := defaultStr(scalarID(raw), strconv.Itoa(productID))

	p := &clients.CanonicalProduct{
		SourceID:         id,
		Name:             strings.TrimSpace(langtext.FirstLocalized(raw["name"])),
		Description:      langtext.FirstLocalized(raw["description"]),
		ShortDescription: langtext.FirstLocalized(raw["description_short"]),
		Price:            parseFloat(langtext.FirstLocalized(raw["price"])),
		Active:           langtext.FirstLocalized(raw["active"]) != "0",
		Reference:        strings.TrimSpace(langtext.FirstLocalized(raw["reference"])),
		Weight:           parseFloat(langtext.FirstLocalized(raw["weight"])),
		Width:            parseFloat(langtext.FirstLocalized(raw["width"])),
		Height:           parseFloat(langtext.FirstLocalized(raw["height"])),
		Depth:            parseFloat(langtext.FirstLocalized(raw["depth"])),
		EAN13:            langtext.FirstLocalized(raw["ean13"]),
		UPC:              langtext.FirstLocalized(raw["upc"]),
		ISBN:             langtext.FirstLocalized(raw["isbn"]),
	}

	assoc, _ := raw["associations"].(map[string]interface{})

	// Quantity lives on the product root or in associations.stock_availables
	qty := langtext.FirstLocalized(raw["quantity"])
	if qty == "" && assoc != nil {
		if stocks := unwrapCollection(assoc["stock_availables"], "stock_available"); len(stocks) > 0 {
			qty = langtext.FirstLocalized(stocks[0]["quantity"])
		}
	}
	p.Quantity = int(parseFloat(qty))

	p.CategoryIDs = c.collectCategoryIDs(raw, assoc)
	p.Images = c.collectImages(raw, assoc)

	if mid := int(parseFloat(langtext.FirstLocalized(raw["id_manufacturer"]))); mid > 0 {
		p.Manufacturer = clients.Manufacturer{
			ID:   mid,
			Name: langtext.FirstLocalized(raw["manufacturer_name"]),
			LogoURLCandidates: []string{
				fmt.Sprintf("%s/img/m/%d.jpg", c.baseURL, mid),
				fmt.Sprintf("%s/img/m/%d.png", c.baseURL, mid),
			},
		}
	}
	return p
}

func (c *Client) collectCategoryIDs(raw map[string]interface{}, assoc map[string]interface{}) []string {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && id != "0" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if assoc != nil {
		for _, cat := range unwrapCollection(assoc["categories"], "category") {
			add(scalarID(cat))
		}
	}
	add(langtext.FirstLocalized(raw["id_category_default"]))
	return ids
}

func (c *Client) collectImages(raw map[string]interface{}, assoc map[string]interface{}) []clients.ImageRef {
	var ids []int
	seen := map[int]bool{}
	add := func(id int) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	// Default image first so it becomes the featured one
	add(int(parseFloat(langtext.FirstLocalized(raw["id_default_image"]))))
	if assoc != nil {
		for _, img := range unwrapCollection(assoc["images"], "image") {
			add(int(parseFloat(scalarID(img))))
		}
	}
	refs := make([]clients.ImageRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, clients.ImageRef{SourceImageID: id})
	}
	return refs
}

// buildURL assembles an authenticated webservice URL
func (c *Client) buildURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("ws_key", c.apiKey)
	params.Set("output_format", "JSON")
	if c.mode == ModeDispatcher {
		params.Set("url", path)
		return c.baseURL + "/webservice/dispatcher.php?" + params.Encode()
	}
	return c.baseURL + "/api/" + path + "?" + params.Encode()
}

func (c *Client) imageURL(productID, imageID int) string {
	path := fmt.Sprintf("images/products/%d/%d", productID, imageID)
	if c.mode == ModeDispatcher {
		params := url.Values{}
		params.Set("url", path)
		params.Set("ws_key", c.apiKey)
		return c.baseURL + "/webservice/dispatcher.php?" + params.Encode()
	}
	return c.baseURL + "/api/" + path + "?ws_key=" + url.QueryEscape(c.apiKey)
}

// getJSON performs a rate-limited, retried GET and decodes the body
func (c *Client) getJSON(ctx context.Context, fullURL, op string) (map[string]interface{}, error) {
	if !c.breaker.Allow() {
		return nil, clients.NewTransportError(op, fmt.Errorf("circuit open"))
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, clients.NewTransportError(op, err)
	}

	resp, err := c.retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, clients.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.breaker.RecordFailure()
		return nil, clients.NewStatusError(op, resp.StatusCode)
	}
	c.breaker.RecordSuccess()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clients.NewTransportError(op, err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, clients.NewDecodeError(op, err)
	}
	return data, nil
}

// extractProduct pulls a product object out of a single-resource response.
// Accepted wrappers: product, prestashop.product, products (list with one
// match), or the root object itself being the product.
func extractProduct(data map[string]interface{}, productID int) map[string]interface{} {
	idStr := strconv.Itoa(productID)
	if p := unwrapObject(data, "product"); p != nil {
		return p
	}
	if items := parseProductList(data); len(items) > 0 {
		if found := findProductByID(items, idStr); found != nil {
			return found
		}
		if len(items) == 1 {
			return items[0]
		}
	}
	if scalarID(data) == idStr {
		return data
	}
	return nil
}

// unwrapObject resolves data[key] or data["prestashop"][key] to a map
func unwrapObject(data map[string]interface{}, key string) map[string]interface{} {
	if obj, ok := data[key].(map[string]interface{}); ok {
		return obj
	}
	if ps, ok := data["prestashop"].(map[string]interface{}); ok {
		if obj, ok := ps[key].(map[string]interface{}); ok {
			return obj
		}
	}
	return nil
}

// parseProductList collapses all known list wrapper shapes to a flat slice:
// {products:{product:[...]}}, {products:[...]}, {prestashop:{products:...}}
// and a single object without a numeric index meaning exactly one match.
func parseProductList(data map[string]interface{}) []map[string]interface{} {
	products := data["products"]
	if products == nil {
		if ps, ok := data["prestashop"].(map[string]interface{}); ok {
			products = ps["products"]
		}
	}
	return unwrapCollectionValue(products, "product")
}

// unwrapCollection handles association containers like
// {images: {image: [...]}} vs {images: [...]}
func unwrapCollection(v interface{}, itemKey string) []map[string]interface{} {
	return unwrapCollectionValue(v, itemKey)
}

func unwrapCollectionValue(v interface{}, itemKey string) []map[string]interface{} {
	switch container := v.(type) {
	case []interface{}:
		return toMapSlice(container)
	case map[string]interface{}:
		if inner, ok := container[itemKey]; ok {
			switch typed := inner.(type) {
			case []interface{}:
				return toMapSlice(typed)
			case map[string]interface{}:
				return []map[string]interface{}{typed}
			}
			return nil
		}
		// Single object with an id and no item wrapper
		if _, ok := container["id"]; ok {
			return []map[string]interface{}{container}
		}
		// Object with numeric string keys ("0", "1", ...)
		var out []map[string]interface{}
		for i := 0; ; i++ {
			item, ok := container[strconv.Itoa(i)].(map[string]interface{})
			if !ok {
				break
			}
			out = append(out, item)
		}
		return out
	}
	return nil
}

func toMapSlice(items []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// scalarID extracts the product ID as a string. The webservice sometimes
// wraps IDs in an object with value/attribute keys.
func scalarID(p map[string]interface{}) string {
	if p == nil {
		return ""
	}
	return langtext.FirstLocalized(p["id"])
}

// productHasData accepts a product only if it has a real name or price.
// ID-only stubs from sort-mangled gateways must not end the search.
func productHasData(p map[string]interface{}) bool {
	if p == nil {
		return false
	}
	if strings.TrimSpace(langtext.FirstLocalized(p["name"])) != "" {
		return true
	}
	return langtext.FirstLocalized(p["price"]) != ""
}

func findProductByID(items []map[string]interface{}, idStr string) map[string]interface{} {
	for _, p := range items {
		if pid := scalarID(p); pid != "" && pid == idStr {
			return p
		}
	}
	return nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
