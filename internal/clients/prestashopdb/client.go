// Package prestashopdb implements the product source against a direct
// PrestaShop database connection. Used when the shop's webservice is
// disabled or too slow for full exports; unlike the API source it can
// resolve combinations, so variable products keep their variants.
package prestashopdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"catalog-migration-service/internal/clients"
)

// Config holds connection settings for the source database
type Config struct {
	DSN     string
	Prefix  string // table prefix, default ps_
	BaseURL string // shop base URL for building image URLs
	LangID  int    // language ID for *_lang joins
	ShopID  int    // 0 means resolve the first active shop
}

// Client implements clients.ProductSource over raw SQL
type Client struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *logrus.Entry

	// probe caches; the adapter is used single-threaded within a batch
	columns      map[string]bool
	tables       map[string]bool
	shopID       *int
	shopResolved bool
}

func (cfg Config) withDefaults() Config {
	if cfg.Prefix == "" {
		cfg.Prefix = "ps_"
	}
	if cfg.LangID < 1 {
		cfg.LangID = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// NewClient connects to the source database
func NewClient(ctx context.Context, cfg Config, logger *logrus.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect source db: %w", err)
	}
	return &Client{
		pool:    pool,
		cfg:     cfg,
		logger:  logger.WithField("component", "prestashop_db"),
		columns: make(map[string]bool),
		tables:  make(map[string]bool),
	}, nil
}

// Close releases the connection pool
func (c *Client) Close() {
	c.pool.Close()
}

// Kind returns the source kind
func (c *Client) Kind() clients.SourceKind {
	return clients.SourceKindDB
}

// TestConnection probes the product table
func (c *Client) TestConnection(ctx context.Context) error {
	var one int
	err := c.pool.QueryRow(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", c.table("product"))).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return clients.NewTransportError("test connection", err)
	}
	return nil
}

// ListPage returns one page of product summaries ordered by ID. One extra
// row is requested so hasMore does not need a count query.
func (c *Client) ListPage(ctx context.Context, offset, limit int) (*clients.ListResult, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	shopSQL := c.shopFilter(ctx, "product_lang", "pl")
	query := fmt.Sprintf(`SELECT p.id_product, COALESCE(pl.name, ''), COALESCE(p.reference, ''),
			COALESCE(p.price, 0), COALESCE(p.active, 1)
		FROM %s p
		LEFT JOIN %s pl ON pl.id_product = p.id_product AND pl.id_lang = $1%s
		ORDER BY p.id_product ASC
		LIMIT $2 OFFSET $3`,
		c.table("product"), c.table("product_lang"), shopSQL)

	rows, err := c.pool.Query(ctx, query, c.cfg.LangID, limit+1, offset)
	if err != nil {
		return nil, clients.NewTransportError("list products", err)
	}
	defer rows.Close()

	var items []clients.ListItem
	for rows.Next() {
		var (
			id     int
			name   string
			ref    string
			price  float64
			active int
		)
		if err := rows.Scan(&id, &name, &ref, &price, &active); err != nil {
			return nil, clients.NewDecodeError("list products", err)
		}
		items = append(items, clients.ListItem{
			ID:        strconv.Itoa(id),
			Name:      name,
			Reference: ref,
			Price:     formatPrice(price),
			Active:    strconv.Itoa(active),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, clients.NewTransportError("list products", err)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return &clients.ListResult{Items: items, HasMore: hasMore}, nil
}

// FetchProduct assembles the canonical product from the relational schema
func (c *Client) FetchProduct(ctx context.Context, productID int) (*clients.CanonicalProduct, error) {
	fields := []string{
		"p.id_product", "COALESCE(p.reference, '')", "COALESCE(p.price, 0)", "COALESCE(p.active, 1)",
		"COALESCE(p.id_category_default, 0)",
		"COALESCE(p.weight, 0)", "COALESCE(p.width, 0)", "COALESCE(p.height, 0)", "COALESCE(p.depth, 0)",
		"COALESCE(p.ean13, '')", "COALESCE(p.upc, '')", "COALESCE(p.isbn, '')",
		"COALESCE(pl.name, '')", "COALESCE(pl.description, '')", "COALESCE(pl.description_short, '')",
	}
	// Optional columns vary across PrestaShop versions; probe before use
	hasManufacturer := c.hasColumn(ctx, "product", "id_manufacturer")
	if hasManufacturer {
		fields = append(fields, "COALESCE(p.id_manufacturer, 0)")
	} else {
		fields = append(fields, "0")
	}
	hasShopDefault := c.hasColumn(ctx, "product", "id_shop_default")
	if hasShopDefault {
		fields = append(fields, "COALESCE(p.id_shop_default, 0)")
	} else {
		fields = append(fields, "0")
	}

	shopSQL := c.shopFilter(ctx, "product_lang", "pl")
	query := fmt.Sprintf(`SELECT %s
		FROM %s p
		LEFT JOIN %s pl ON pl.id_product = p.id_product AND pl.id_lang = $1%s
		WHERE p.id_product = $2`,
		strings.Join(fields, ", "), c.table("product"), c.table("product_lang"), shopSQL)

	var (
		id                                  int
		reference                           string
		price                               float64
		active                              int
		defaultCategory                     int
		weight, width, height, depth        float64
		ean13, upc, isbn                    string
		name, description, descriptionShort string
		manufacturerID                      int
		shopDefault                         int
	)
	err := c.pool.QueryRow(ctx, query, c.cfg.LangID, productID).Scan(
		&id, &reference, &price, &active, &defaultCategory,
		&weight, &width, &height, &depth,
		&ean13, &upc, &isbn,
		&name, &description, &descriptionShort,
		&manufacturerID, &shopDefault,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, clients.NewTransportError("fetch product", err)
	}

	// The configured language row may be missing; take the first available
	// language instead of dropping the product
	if strings.TrimSpace(name) == "" {
		fbQuery := fmt.Sprintf(`SELECT COALESCE(pl.name, ''), COALESCE(pl.description, ''), COALESCE(pl.description_short, '')
			FROM %s pl WHERE pl.id_product = $1%s ORDER BY pl.id_lang ASC LIMIT 1`,
			c.table("product_lang"), shopSQL)
		if fbErr := c.pool.QueryRow(ctx, fbQuery, productID).Scan(&name, &description, &descriptionShort); fbErr == nil {
			c.logger.WithFields(logrus.Fields{
				"product_id": productID,
				"lang_id":    c.cfg.LangID,
			}).Warn("language row missing, fell back to first available language")
		}
	}

	p := &clients.CanonicalProduct{
		SourceID:         strconv.Itoa(id),
		Name:             strings.TrimSpace(name),
		Description:      description,
		ShortDescription: descriptionShort,
		Price:            price,
		Active:           active != 0,
		Reference:        strings.TrimSpace(reference),
		Weight:           weight,
		Width:            width,
		Height:           height,
		Depth:            depth,
		EAN13:            ean13,
		UPC:              upc,
		ISBN:             isbn,
	}

	p.Quantity = c.stockQuantity(ctx, productID, 0)
	p.CategoryIDs = c.productCategories(ctx, productID, defaultCategory)
	p.Images = c.productImages(ctx, productID)

	if manufacturerID > 0 {
		p.Manufacturer = clients.Manufacturer{
			ID:   manufacturerID,
			Name: c.manufacturerName(ctx, manufacturerID),
		}
		if c.cfg.BaseURL != "" {
			p.Manufacturer.LogoURLCandidates = []string{
				fmt.Sprintf("%s/img/m/%d.jpg", c.cfg.BaseURL, manufacturerID),
				fmt.Sprintf("%s/img/m/%d.png", c.cfg.BaseURL, manufacturerID),
			}
		}
	}

	combinationShop := shopDefault
	if combinationShop == 0 {
		if sid := c.resolveShopID(ctx); sid != nil {
			combinationShop = *sid
		}
	}
	p.Variants = c.combinations(ctx, productID, combinationShop, p.Reference)
	return p, nil
}

// FetchCategory resolves one category with its localized row
func (c *Client) FetchCategory(ctx context.Context, categoryID int) (*clients.CategoryInfo, error) {
	shopSQL := c.shopFilter(ctx, "category_lang", "cl")
	query := fmt.Sprintf(`SELECT c.id_category, c.id_parent, COALESCE(cl.name, ''), COALESCE(cl.link_rewrite, ''), COALESCE(cl.description, '')
		FROM %s c
		LEFT JOIN %s cl ON cl.id_category = c.id_category AND cl.id_lang = $1%s
		WHERE c.id_category = $2`,
		c.table("category"), c.table("category_lang"), shopSQL)

	var (
		id, parent              int
		name, slug, description string
	)
	err := c.pool.QueryRow(ctx, query, c.cfg.LangID, categoryID).Scan(&id, &parent, &name, &slug, &description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, clients.NewTransportError("fetch category", err)
	}
	return &clients.CategoryInfo{
		ID:          strconv.Itoa(id),
		ParentID:    strconv.Itoa(parent),
		Name:        strings.TrimSpace(name),
		SlugHint:    strings.TrimSpace(slug),
		Description: description,
	}, nil
}

// HasVariants reports whether the product has combination rows
func (c *Client) HasVariants(ctx context.Context, productID int) (bool, error) {
	if !c.tableExists(ctx, "product_attribute") {
		return false, nil
	}
	var one int
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE id_product = $1 LIMIT 1", c.table("product_attribute")),
		productID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, clients.NewTransportError("check combinations", err)
	}
	return true, nil
}

// FetchVariantsFor loads combinations when the product payload had none
func (c *Client) FetchVariantsFor(ctx context.Context, productID int) ([]clients.Variant, error) {
	reference := ""
	shopID := 0
	if sid := c.resolveShopID(ctx); sid != nil {
		shopID = *sid
	}
	if c.hasColumn(ctx, "product", "id_shop_default") {
		var shopDefault int
		query := fmt.Sprintf("SELECT COALESCE(reference, ''), COALESCE(id_shop_default, 0) FROM %s WHERE id_product = $1", c.table("product"))
		if err := c.pool.QueryRow(ctx, query, productID).Scan(&reference, &shopDefault); err == nil && shopDefault > 0 {
			shopID = shopDefault
		}
	}
	return c.combinations(ctx, productID, shopID, strings.TrimSpace(reference)), nil
}

// FetchImageBinary is not used by the DB source: its images carry direct
// URLs resolved during acquisition
func (c *Client) FetchImageBinary(ctx context.Context, productID, imageID int) ([]byte, error) {
	return nil, clients.NewTransportError("fetch image", errors.New("db source exposes image URLs, not binaries"))
}

// combinations returns one Variant per product_attribute row, attributes
// ordered by group position then value position. That order drives the
// default variant selection downstream and must be stable.
func (c *Client) combinations(ctx context.Context, productID, shopID int, productReference string) []clients.Variant {
	for _, tbl := range []string{"product_attribute", "attribute", "attribute_group"} {
		if !c.tableExists(ctx, tbl) {
			return nil
		}
	}

	rows, err := c.pool.Query(ctx,
		fmt.Sprintf("SELECT pa.id_product_attribute, COALESCE(pa.reference, ''), COALESCE(pa.price, 0) FROM %s pa WHERE pa.id_product = $1 ORDER BY pa.id_product_attribute ASC", c.table("product_attribute")),
		productID)
	if err != nil {
		c.logger.WithError(err).WithField("product_id", productID).Warn("combinations query failed")
		return nil
	}
	defer rows.Close()

	var variants []clients.Variant
	for rows.Next() {
		var (
			paID        int
			reference   string
			priceImpact float64
		)
		if err := rows.Scan(&paID, &reference, &priceImpact); err != nil {
			continue
		}
		variants = append(variants, clients.Variant{
			ExternalVariantID: strconv.Itoa(paID),
			SKU:               combinationSKU(reference, productReference, paID),
			PriceDelta:        priceImpact,
		})
	}
	rows.Close()

	for i := range variants {
		paID, _ := strconv.Atoi(variants[i].ExternalVariantID)

		// Per-shop price override wins over the base combination price
		if shopID > 0 && c.tableExists(ctx, "product_attribute_shop") {
			var price float64
			err := c.pool.QueryRow(ctx,
				fmt.Sprintf("SELECT price FROM %s WHERE id_product_attribute = $1 AND id_shop = $2 LIMIT 1", c.table("product_attribute_shop")),
				paID, shopID).Scan(&price)
			if err == nil {
				variants[i].PriceDelta = price
			}
		}

		variants[i].Quantity = c.stockQuantity(ctx, productID, paID)
		variants[i].Attributes = c.variantAttributes(ctx, paID)

		if c.tableExists(ctx, "product_attribute_image") {
			var imageID int
			err := c.pool.QueryRow(ctx,
				fmt.Sprintf("SELECT id_image FROM %s WHERE id_product_attribute = $1 LIMIT 1", c.table("product_attribute_image")),
				paID).Scan(&imageID)
			if err == nil && imageID > 0 {
				variants[i].Image = &clients.ImageRef{
					SourceImageID: imageID,
					URL:           c.imageURL(imageID),
				}
			}
		}
	}
	return variants
}

func (c *Client) variantAttributes(ctx context.Context, productAttributeID int) []clients.VariantAttribute {
	query := fmt.Sprintf(`SELECT COALESCE(agl.name, ''), COALESCE(al.name, '')
		FROM %s pac
		JOIN %s a ON a.id_attribute = pac.id_attribute
		JOIN %s al ON al.id_attribute = a.id_attribute AND al.id_lang = $1
		JOIN %s ag ON ag.id_attribute_group = a.id_attribute_group
		JOIN %s agl ON agl.id_attribute_group = ag.id_attribute_group AND agl.id_lang = $1
		WHERE pac.id_product_attribute = $2
		ORDER BY ag.position ASC, a.position ASC`,
		c.table("product_attribute_combination"), c.table("attribute"), c.table("attribute_lang"),
		c.table("attribute_group"), c.table("attribute_group_lang"))

	rows, err := c.pool.Query(ctx, query, c.cfg.LangID, productAttributeID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var attrs []clients.VariantAttribute
	for rows.Next() {
		var group, value string
		if err := rows.Scan(&group, &value); err != nil {
			continue
		}
		attrs = append(attrs, clients.VariantAttribute{GroupName: group, ValueName: value})
	}
	return attrs
}

// stockQuantity reads stock_available for one product/combination pair.
// productAttributeID 0 means the simple-product row.
func (c *Client) stockQuantity(ctx context.Context, productID, productAttributeID int) int {
	shopSQL := ""
	args := []interface{}{productID, productAttributeID}
	if c.hasColumn(ctx, "stock_available", "id_shop") {
		if sid := c.resolveShopID(ctx); sid != nil {
			shopSQL = " AND id_shop = $3"
			args = append(args, *sid)
		}
	}
	var qty int
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT quantity FROM %s WHERE id_product = $1 AND id_product_attribute = $2%s LIMIT 1", c.table("stock_available"), shopSQL),
		args...).Scan(&qty)
	if err != nil {
		return 0
	}
	return qty
}

// productCategories returns category IDs with the default category
// appended when the assignment table omitted it
func (c *Client) productCategories(ctx context.Context, productID, defaultCategory int) []string {
	var ids []int

	rows, err := c.pool.Query(ctx,
		fmt.Sprintf("SELECT id_category FROM %s WHERE id_product = $1 ORDER BY id_category ASC", c.table("category_product")),
		productID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var cid int
			if err := rows.Scan(&cid); err == nil {
				ids = append(ids, cid)
			}
		}
	}
	return categoryIDStrings(ids, defaultCategory)
}

func categoryIDStrings(ids []int, defaultCategory int) []string {
	var out []string
	seen := map[int]bool{}
	for _, cid := range ids {
		if cid > 0 && !seen[cid] {
			seen[cid] = true
			out = append(out, strconv.Itoa(cid))
		}
	}
	if defaultCategory > 0 && !seen[defaultCategory] {
		out = append(out, strconv.Itoa(defaultCategory))
	}
	return out
}

// productImages returns image refs, cover first then by position
func (c *Client) productImages(ctx context.Context, productID int) []clients.ImageRef {
	rows, err := c.pool.Query(ctx,
		fmt.Sprintf("SELECT id_image FROM %s WHERE id_product = $1 ORDER BY cover DESC NULLS LAST, position ASC", c.table("image")),
		productID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var refs []clients.ImageRef
	for rows.Next() {
		var imageID int
		if err := rows.Scan(&imageID); err != nil || imageID <= 0 {
			continue
		}
		refs = append(refs, clients.ImageRef{
			SourceImageID: imageID,
			URL:           c.imageURL(imageID),
		})
	}
	return refs
}

// manufacturerName reads the brand name, falling back to the localized
// table when the base table has none
func (c *Client) manufacturerName(ctx context.Context, manufacturerID int) string {
	var name string
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(name, '') FROM %s WHERE id_manufacturer = $1 LIMIT 1", c.table("manufacturer")),
		manufacturerID).Scan(&name)
	if err == nil && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if c.tableExists(ctx, "manufacturer_lang") {
		err = c.pool.QueryRow(ctx,
			fmt.Sprintf("SELECT COALESCE(name, '') FROM %s WHERE id_manufacturer = $1 AND id_lang = $2 LIMIT 1", c.table("manufacturer_lang")),
			manufacturerID, c.cfg.LangID).Scan(&name)
		if err == nil {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

// imageURL builds the img/p URL: image 123 -> img/p/1/2/3/123.jpg
func (c *Client) imageURL(imageID int) string {
	if imageID <= 0 || c.cfg.BaseURL == "" {
		return ""
	}
	digits := strconv.Itoa(imageID)
	parts := make([]string, 0, len(digits))
	for _, d := range digits {
		parts = append(parts, string(d))
	}
	return fmt.Sprintf("%s/img/p/%s/%d.jpg", c.cfg.BaseURL, strings.Join(parts, "/"), imageID)
}

// resolveShopID returns the configured shop or the first active shop by
// lowest ID, cached for the adapter's lifetime
func (c *Client) resolveShopID(ctx context.Context) *int {
	if c.shopResolved {
		return c.shopID
	}
	c.shopResolved = true
	if c.cfg.ShopID > 0 {
		sid := c.cfg.ShopID
		c.shopID = &sid
		return c.shopID
	}
	if !c.tableExists(ctx, "shop") {
		return nil
	}
	var sid int
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT id_shop FROM %s WHERE active = 1 ORDER BY id_shop ASC LIMIT 1", c.table("shop"))).Scan(&sid)
	if err != nil {
		return nil
	}
	c.shopID = &sid
	c.logger.WithField("shop_id", sid).Info("resolved first active shop")
	return c.shopID
}

// shopFilter yields " AND alias.id_shop = N" when the table is shop-scoped
func (c *Client) shopFilter(ctx context.Context, tableName, alias string) string {
	if !c.hasColumn(ctx, tableName, "id_shop") {
		return ""
	}
	sid := c.resolveShopID(ctx)
	if sid == nil {
		return ""
	}
	return fmt.Sprintf(" AND %s.id_shop = %d", alias, *sid)
}

// hasColumn probes information_schema once per table/column pair. Schema
// drift across PrestaShop versions means optional columns must never be
// referenced blindly.
func (c *Client) hasColumn(ctx context.Context, tableName, column string) bool {
	key := tableName + "." + column
	if v, ok := c.columns[key]; ok {
		return v
	}
	var one int
	err := c.pool.QueryRow(ctx,
		"SELECT 1 FROM information_schema.columns WHERE table_name = $1 AND column_name = $2",
		c.cfg.Prefix+tableName, column).Scan(&one)
	exists := err == nil
	c.columns[key] = exists
	return exists
}

// tableExists probes information_schema once per table
func (c *Client) tableExists(ctx context.Context, tableName string) bool {
	if v, ok := c.tables[tableName]; ok {
		return v
	}
	var one int
	err := c.pool.QueryRow(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_name = $1",
		c.cfg.Prefix+tableName).Scan(&one)
	exists := err == nil
	c.tables[tableName] = exists
	return exists
}

func (c *Client) table(name string) string {
	return c.cfg.Prefix + name
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// combinationSKU falls back to reference-plus-combination-ID when the
// combination row carries no reference of its own
func combinationSKU(reference, productReference string, productAttributeID int) string {
	sku := strings.TrimSpace(reference)
	if sku == "" {
		sku = productReference + "-" + strconv.Itoa(productAttributeID)
	}
	return sku
}
