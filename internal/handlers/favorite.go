package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// FavoriteHandler manages the current user's favourites.
type FavoriteHandler struct {
	favorites *services.Favorites
}

// NewFavoriteHandler constructs FavoriteHandler.
func NewFavoriteHandler(favorites *services.Favorites) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites}
}

func (h *FavoriteHandler) List(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	pg := utils.ParsePagination(c)

	ctx := c.UserContext()
	items, err := h.favorites.List(ctx, userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	total, err := h.favorites.Count(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"limit":       pg.Limit,
			"offset":      pg.Offset,
			"total_items": total,
		},
	})
}

type addFavoriteRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

func (h *FavoriteHandler) Add(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req addFavoriteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	item, err := h.favorites.Add(c.UserContext(), userID, req.ProductID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

func (h *FavoriteHandler) Remove(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}

	if err := h.favorites.Remove(c.UserContext(), userID, productID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
