package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// ProductsCachePrefix keys every cached product listing.
const ProductsCachePrefix = "products:"

// ProductHandler manages products, search and reviews.
type ProductHandler struct {
	db      *gorm.DB
	catalog *services.Catalog
	reviews *services.Reviews
	media   services.MediaStore
	cache   *cache.Cache
	log     *slog.Logger
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, catalog *services.Catalog, media services.MediaStore, store *cache.Cache, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		db:      db,
		catalog: catalog,
		reviews: services.NewReviews(db),
		media:   media,
		cache:   store,
		log:     log,
	}
}

// RegisterProductRoutes attaches product, search and review routes. Static
// paths come before /:id.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, auth, admin fiber.Handler) {
	listCache := middleware.Cache(h.cache, middleware.URLKey(ProductsCachePrefix), 5*time.Minute)

	router.Get("/", listCache, h.ListProducts)
	router.Post("/", auth, admin, h.CreateProduct)
	router.Post("/byIds", h.ProductsByIDs)

	router.Get("/search", h.Search)
	router.Get("/search/filters", h.SearchWithFilters)
	router.Get("/top-searched", h.TopSearched)
	router.Post("/search-statistics", h.RecordSearch)

	router.Get("/:id", h.GetProduct)
	router.Get("/:id/related", listCache, h.RelatedProducts)

	router.Post("/:productId/reviews", auth, h.AddReview)
	router.Get("/:productId/reviews", h.ListReviews)
	router.Get("/:productId/review-stats", h.ReviewStats)
	router.Get("/:productId/purchase-status", auth, h.PurchaseStatus)
}

// ListProducts returns paginated priced products.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	sort := c.Query("sort", services.SortDefault)

	products, err := h.catalog.List(c.UserContext(), sort, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"limit":  pg.Limit,
			"offset": pg.Offset,
		},
	})
}

// GetProduct loads a single priced product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	product, err := h.catalog.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	Price       float64   `json:"price" validate:"required,gt=0"`
	CategoryID  uuid.UUID `json:"category_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"min=0"`
	Images      []string  `json:"images" validate:"required,min=1,dive,required"`
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var category models.Category
	if err := h.db.First(&category, "id = ?", req.CategoryID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusBadRequest, "category not found")
		}
		return err
	}

	product := models.Product{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  category.ID,
		Category:    models.CategoryRef{ID: category.ID, Name: category.Name},
		Quantity:    req.Quantity,
		Images:      pq.StringArray(req.Images),
	}
	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	h.cache.InvalidatePrefix(c.UserContext(), ProductsCachePrefix)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

type byIDsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,max=200"`
}

// ProductsByIDs returns the priced products among the requested ids.
func (h *ProductHandler) ProductsByIDs(c *fiber.Ctx) error {
	var req byIDsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	products, err := h.catalog.ByIDs(c.UserContext(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// RelatedProducts suggests up to six similar products.
func (h *ProductHandler) RelatedProducts(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	products, err := h.catalog.Related(c.UserContext(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// Search matches product titles.
func (h *ProductHandler) Search(c *fiber.Ctx) error {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title is required")
	}

	products, err := h.catalog.Search(c.UserContext(), title)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// SearchWithFilters is Search with the category listing filters.
func (h *ProductHandler) SearchWithFilters(c *fiber.Ctx) error {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title is required")
	}

	filter, err := parseProductFilter(c)
	if err != nil {
		return err
	}
	filter.Title = title
	if filter.Sort == "" {
		filter.Sort = services.SortPopular
	}

	products, err := h.catalog.Filtered(c.UserContext(), filter)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// TopSearched returns the most searched products.
func (h *ProductHandler) TopSearched(c *fiber.Ctx) error {
	products, err := h.catalog.TopSearched(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

type searchStatisticsRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

// RecordSearch counts a product being picked from search results.
func (h *ProductHandler) RecordSearch(c *fiber.Ctx) error {
	var req searchStatisticsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	entry, err := h.catalog.RecordSearch(c.UserContext(), req.ProductID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": entry})
}

// AddReview stores a review with up to ten uploaded media files.
func (h *ProductHandler) AddReview(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}

	rating, err := strconv.Atoi(c.FormValue("rating"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rating")
	}

	in := services.ReviewInput{
		UserID:    userID,
		ProductID: productID,
		Text:      c.FormValue("text"),
		Rating:    rating,
	}
	if err := utils.ValidateStruct(in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	allowed, err := h.reviews.HasDelivered(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !allowed {
		return serviceError(services.ErrReviewNotAllowed)
	}

	if form, ferr := c.MultipartForm(); ferr == nil {
		files := form.File["media"]
		if len(files) > services.MaxReviewMedia {
			return serviceError(services.ErrTooManyMedia)
		}
		folder := services.UserFolder(userID.String(), "reviews/"+productID.String())
		for _, file := range files {
			url, err := h.media.Save(ctx, folder, file)
			if err != nil {
				h.discardMedia(ctx, in.MediaURLs)
				return serviceError(err)
			}
			in.MediaURLs = append(in.MediaURLs, url)
		}
	}

	review, err := h.reviews.Add(ctx, in)
	if err != nil {
		h.discardMedia(ctx, in.MediaURLs)
		return serviceError(err)
	}

	h.cache.InvalidatePrefix(ctx, ProductsCachePrefix)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": review})
}

func (h *ProductHandler) discardMedia(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := h.media.Delete(ctx, url); err != nil {
			h.log.Warn("reviews: discard uploaded media", "url", url, "error", err)
		}
	}
}

// ListReviews returns a product's reviews.
func (h *ProductHandler) ListReviews(c *fiber.Ctx) error {
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}

	reviews, err := h.reviews.List(c.UserContext(), productID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": reviews})
}

// ReviewStats returns review count and average rating.
func (h *ProductHandler) ReviewStats(c *fiber.Ctx) error {
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}

	stats, err := h.reviews.Stats(c.UserContext(), productID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// PurchaseStatus tells the client whether the user may review the product.
func (h *ProductHandler) PurchaseStatus(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}

	ok, err := h.reviews.HasDelivered(c.UserContext(), userID, productID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"has_purchased": ok}})
}
