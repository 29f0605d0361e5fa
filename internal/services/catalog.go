package services

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	SortDefault   = "id"
	SortRating    = "rating"
	SortPurchases = "purchases"
	SortPopular   = "popularity"
	SortPriceAsc  = "priceAsc"
	SortPriceDesc = "priceDesc"
	SortBestDeal  = "bestDeal"

	relatedLimit     = 6
	searchLimit      = 10
	topSearchedLimit = 5
	highRating       = 4.0

	// idBatch keeps IN lists well below the driver's bind parameter limit.
	idBatch = 1000
)

// relatedKeywords are product-type words used to find similar items by title.
var relatedKeywords = []string{
	"футболка", "майка", "рубашка", "блузка", "свитер", "куртка", "пальто",
	"джинсы", "брюки", "шорты", "юбка", "платье", "костюм", "пиджак", "жилет",
	"кардиган", "бейсболка", "шапка", "кепка", "наушник", "толстовка",
	"джоггеры", "стол", "кресло",
}

// ProductFilter narrows a zone-aware product listing.
type ProductFilter struct {
	CategoryID      *uuid.UUID
	Title           string
	ZoneID          uuid.UUID
	PriceMin        *float64
	PriceMax        *float64
	MaxDeliveryDays *int
	Sort            string
	Limit           int
	Offset          int
}

// ZonedProduct is a priced product with its delivery time to a zone.
type ZonedProduct struct {
	PricedProduct
	BaseDeliveryDays       int `json:"base_delivery_days"`
	AdditionalDeliveryDays int `json:"additional_delivery_days"`
	TotalDeliveryDays      int `json:"total_delivery_days"`
}

// TopSearched is a product with its search counter.
type TopSearched struct {
	models.Product
	SearchCount  int       `json:"search_count"`
	LastSearched time.Time `json:"last_searched"`
}

// Catalog answers product listing queries. Every price it returns goes
// through PriceProduct at a single instant per request.
type Catalog struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db, now: time.Now}
}

// WithClock overrides the time source.
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.now = now
	return c
}

// List pages through all products. sort=rating keeps only products rated 4
// or higher.
func (c *Catalog) List(ctx context.Context, sort string, limit, offset int) ([]PricedProduct, error) {
	q := c.db.WithContext(ctx).Model(&models.Product{})

	switch sort {
	case SortRating:
		rated := c.db.Model(&models.Review{}).
			Select("product_id, AVG(rating) AS avg_rating").
			Group("product_id").
			Having("AVG(rating) >= ?", highRating)
		q = q.Select("products.*").
			Joins("JOIN (?) AS r ON r.product_id = products.id", rated).
			Order("r.avg_rating DESC").Order("products.id")
	case SortPurchases:
		q = q.Order("purchases DESC").Order("id")
	default:
		q = q.Order("id")
	}

	products, err := c.load(ctx, paginate(q, limit, offset))
	if err != nil {
		return nil, err
	}
	return c.price(ctx, products)
}

// Get returns one priced product.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*PricedProduct, error) {
	products, err := c.load(ctx, c.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}
	priced, err := c.price(ctx, products)
	if err != nil {
		return nil, err
	}
	return &priced[0], nil
}

// ByIDs returns the priced products among ids; unknown ids are skipped.
func (c *Catalog) ByIDs(ctx context.Context, ids []uuid.UUID) ([]PricedProduct, error) {
	if len(ids) == 0 {
		return []PricedProduct{}, nil
	}
	products, err := c.load(ctx, c.db.WithContext(ctx).Where("id IN ?", ids))
	if err != nil {
		return nil, err
	}
	return c.price(ctx, products)
}

// Related finds up to six products sharing a type keyword with the title,
// then fills from the same category by popularity.
func (c *Catalog) Related(ctx context.Context, id uuid.UUID) ([]PricedProduct, error) {
	var product models.Product
	err := c.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	title := strings.ToLower(product.Title)
	var matches []string
	for _, kw := range relatedKeywords {
		if strings.Contains(title, kw) {
			matches = append(matches, kw)
		}
	}

	var found []models.Product
	if len(matches) > 0 {
		q := c.db.WithContext(ctx).Where("id <> ?", id)
		or := c.db.WithContext(ctx)
		for i, kw := range matches {
			if i == 0 {
				or = or.Where(c.titleMatch(), utils.ContainsPattern(kw))
			} else {
				or = or.Or(c.titleMatch(), utils.ContainsPattern(kw))
			}
		}
		found, err = c.load(ctx, q.Where(or).Order("purchases DESC").Limit(relatedLimit))
		if err != nil {
			return nil, err
		}
	}

	if len(found) < relatedLimit && product.CategoryID != uuid.Nil {
		exclude := []uuid.UUID{id}
		for _, p := range found {
			exclude = append(exclude, p.ID)
		}
		fill, err := c.load(ctx, c.db.WithContext(ctx).
			Where("category_id = ? AND id NOT IN ?", product.CategoryID, exclude).
			Order("purchases DESC").
			Limit(relatedLimit-len(found)))
		if err != nil {
			return nil, err
		}
		found = append(found, fill...)
	}

	return c.price(ctx, found)
}

// Search matches titles case-insensitively, at most ten results.
func (c *Catalog) Search(ctx context.Context, title string) ([]PricedProduct, error) {
	products, err := c.load(ctx, c.db.WithContext(ctx).
		Where(c.titleMatch(), utils.ContainsPattern(title)).
		Order("purchases DESC").
		Limit(searchLimit))
	if err != nil {
		return nil, err
	}
	return c.price(ctx, products)
}

// Discounted pages through products with an active discount of the type.
func (c *Catalog) Discounted(ctx context.Context, discountType string, limit, offset int) ([]PricedProduct, error) {
	now := c.now()
	active := c.db.Table("product_discounts pd").
		Select("pd.product_id").
		Joins("JOIN discounts d ON d.id = pd.discount_id").
		Where("d.type = ? AND d.start_date > ? AND d.start_date <= ? AND d.end_date >= ?",
			discountType, time.Time{}, now, now)

	products, err := c.load(ctx, paginate(c.db.WithContext(ctx).
		Where("id IN (?)", active).
		Order("id"), limit, offset))
	if err != nil {
		return nil, err
	}
	return c.price(ctx, products)
}

// Filtered lists products of a category or title search with delivery
// times to a zone, filtered on final price and delivery days.
func (c *Catalog) Filtered(ctx context.Context, f ProductFilter) ([]ZonedProduct, error) {
	var zone models.DeliveryZone
	err := c.db.WithContext(ctx).First(&zone, "id = ?", f.ZoneID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, err
	}

	q := c.db.WithContext(ctx).Model(&models.Product{})
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Title != "" {
		q = q.Where(c.titleMatch(), utils.ContainsPattern(f.Title))
	}
	// Discounts only lower a price, so the base price bounds it from above.
	if f.PriceMin != nil {
		q = q.Where("price >= ?", *f.PriceMin)
	}
	if f.MaxDeliveryDays != nil {
		q = q.Where("COALESCE((SELECT pdt.additional_days FROM product_delivery_times pdt"+
			" WHERE pdt.product_id = products.id AND pdt.zone_id = ?), 0) <= ?",
			zone.ID, *f.MaxDeliveryDays-zone.BaseDeliveryDays)
	}

	// Without a final price bound or price based ordering the database can
	// sort and page.
	inSQL := f.PriceMax == nil && f.PriceMin == nil
	switch f.Sort {
	case SortPopular, SortPurchases:
		q = q.Order("purchases DESC").Order("id")
	case "", SortDefault:
		q = q.Order("id")
	default:
		q = q.Order("id")
		inSQL = false
	}
	if inSQL {
		q = paginate(q, f.Limit, f.Offset)
	}

	products, err := c.load(ctx, q)
	if err != nil {
		return nil, err
	}
	priced, err := c.price(ctx, products)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(priced))
	for _, p := range priced {
		ids = append(ids, p.ID)
	}
	extra, err := NewEstimator(c.db).AdditionalDays(ctx, zone.ID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ZonedProduct, 0, len(priced))
	for _, p := range priced {
		zp := ZonedProduct{
			PricedProduct:          p,
			BaseDeliveryDays:       zone.BaseDeliveryDays,
			AdditionalDeliveryDays: extra[p.ID],
			TotalDeliveryDays:      zone.BaseDeliveryDays + extra[p.ID],
		}
		if f.PriceMin != nil && zp.FinalPrice < *f.PriceMin {
			continue
		}
		if f.PriceMax != nil && zp.FinalPrice > *f.PriceMax {
			continue
		}
		out = append(out, zp)
	}

	if inSQL {
		return out, nil
	}
	slices.SortStableFunc(out, zonedOrder(f.Sort))
	return page(out, f.Limit, f.Offset), nil
}

// RecordSearch bumps the search counter of a product.
func (c *Catalog) RecordSearch(ctx context.Context, productID uuid.UUID) (*models.SearchHistory, error) {
	var product models.Product
	err := c.db.WithContext(ctx).Select("id").First(&product, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	now := c.now()
	var entry models.SearchHistory
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SearchHistory{}).Where("product_id = ?", productID).
			Updates(map[string]any{
				"search_count":  gorm.Expr("search_count + 1"),
				"last_searched": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			entry = models.SearchHistory{ProductID: productID, SearchCount: 1, LastSearched: now}
			return tx.Create(&entry).Error
		}
		return tx.First(&entry, "product_id = ?", productID).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// TopSearched returns the five most searched products.
func (c *Catalog) TopSearched(ctx context.Context) ([]TopSearched, error) {
	var history []models.SearchHistory
	if err := c.db.WithContext(ctx).
		Where("search_count > 0").
		Order("search_count DESC").Order("last_searched DESC").
		Limit(topSearchedLimit).
		Find(&history).Error; err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return []TopSearched{}, nil
	}

	ids := make([]uuid.UUID, 0, len(history))
	for _, h := range history {
		ids = append(ids, h.ProductID)
	}
	var products []models.Product
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]TopSearched, 0, len(history))
	for _, h := range history {
		p, ok := byID[h.ProductID]
		if !ok {
			continue
		}
		out = append(out, TopSearched{Product: p, SearchCount: h.SearchCount, LastSearched: h.LastSearched})
	}
	return out, nil
}

// AverageRatings returns the mean review rating per product id. Products
// without reviews are absent.
func (c *Catalog) AverageRatings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]float64, error) {
	out := make(map[uuid.UUID]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	for batch := range slices.Chunk(ids, idBatch) {
		var rows []struct {
			ProductID uuid.UUID
			Avg       float64
		}
		if err := c.db.WithContext(ctx).Model(&models.Review{}).
			Select("product_id, AVG(rating) AS avg").
			Where("product_id IN ?", batch).
			Group("product_id").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ProductID] = r.Avg
		}
	}
	return out, nil
}

func (c *Catalog) load(ctx context.Context, q *gorm.DB) ([]models.Product, error) {
	var products []models.Product
	if err := q.WithContext(ctx).Preload("Discounts").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Catalog) price(ctx context.Context, products []models.Product) ([]PricedProduct, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	ratings, err := c.AverageRatings(ctx, ids)
	if err != nil {
		return nil, err
	}

	priced := PriceProducts(products, c.now())
	for i := range priced {
		priced[i].AvgRating = ratings[priced[i].ID]
	}
	return priced, nil
}

func (c *Catalog) titleMatch() string {
	if c.db.Dialector.Name() == "postgres" {
		return `title ILIKE ? ESCAPE '\'`
	}
	return `LOWER(title) LIKE LOWER(?) ESCAPE '\'`
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func zonedOrder(sort string) func(a, b ZonedProduct) int {
	switch sort {
	case SortPopular, SortPurchases:
		return func(a, b ZonedProduct) int { return cmp.Compare(b.Purchases, a.Purchases) }
	case SortRating:
		return func(a, b ZonedProduct) int { return cmp.Compare(b.AvgRating, a.AvgRating) }
	case SortPriceAsc:
		return func(a, b ZonedProduct) int { return cmp.Compare(a.FinalPrice, b.FinalPrice) }
	case SortPriceDesc:
		return func(a, b ZonedProduct) int { return cmp.Compare(b.FinalPrice, a.FinalPrice) }
	case SortBestDeal:
		return func(a, b ZonedProduct) int {
			return cmp.Or(cmp.Compare(discountPct(b), discountPct(a)), cmp.Compare(a.FinalPrice, b.FinalPrice))
		}
	default:
		return func(a, b ZonedProduct) int { return 0 }
	}
}

func discountPct(p ZonedProduct) float64 {
	if p.Discount == nil {
		return 0
	}
	return p.Discount.Percentage
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
