package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// CatalogHandler serves categories and discount collections.
type CatalogHandler struct {
	db      *gorm.DB
	catalog *services.Catalog
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(db *gorm.DB, catalog *services.Catalog) *CatalogHandler {
	return &CatalogHandler{db: db, catalog: catalog}
}

// ListCategories returns every category.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := h.db.WithContext(c.UserContext()).Order("name").Find(&categories).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": categories})
}

// CategoryProducts lists a category's products with delivery times to the
// requested zone.
func (h *CatalogHandler) CategoryProducts(c *fiber.Ctx) error {
	categoryID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	filter, err := parseProductFilter(c)
	if err != nil {
		return err
	}
	filter.CategoryID = &categoryID

	products, err := h.catalog.Filtered(c.UserContext(), filter)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// DiscountedProducts lists products with an active discount of the given
// type.
func (h *CatalogHandler) DiscountedProducts(discountType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := utils.ParsePagination(c)
		products, err := h.catalog.Discounted(c.UserContext(), discountType, pg.Limit, pg.Offset)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": products})
	}
}

// parseProductFilter reads zone_id, price_min, price_max, delivery_time,
// sort, limit and offset. zone_id is required.
func parseProductFilter(c *fiber.Ctx) (services.ProductFilter, error) {
	var f services.ProductFilter

	zoneID, err := uuid.Parse(c.Query("zone_id"))
	if err != nil {
		return f, fiber.NewError(fiber.StatusBadRequest, "zone_id is required")
	}
	f.ZoneID = zoneID

	if v := c.Query("price_min"); v != "" {
		lo, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "invalid price_min")
		}
		f.PriceMin = &lo
	}
	if v := c.Query("price_max"); v != "" {
		hi, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "invalid price_max")
		}
		f.PriceMax = &hi
	}
	if v := c.Query("delivery_time"); v != "" && v != "any" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "invalid delivery_time")
		}
		f.MaxDeliveryDays = &days
	}

	pg := utils.ParsePagination(c)
	f.Sort = c.Query("sort")
	f.Limit = pg.Limit
	f.Offset = pg.Offset
	return f, nil
}
