package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

// OrderHandler manages checkout and order endpoints.
type OrderHandler struct {
	checkout *services.CheckoutService
	orders   *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(checkout *services.CheckoutService, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders}
}

// Checkout places an order from the submitted cart. Prices are always taken
// from the catalogue.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req services.CheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.UserID = userID

	res, err := h.checkout.Checkout(c.UserContext(), req)
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": res})
}

// ListUserOrders returns the current user's order history.
func (h *OrderHandler) ListUserOrders(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	orders, err := h.orders.UserOrders(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus moves an order to a new status.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), orderID, req.Status)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// TrackParcel returns the carrier's view of a parcel and syncs the order.
func (h *OrderHandler) TrackParcel(c *fiber.Ctx) error {
	trackingNumber := c.Params("trackingNumber")
	if trackingNumber == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tracking number is required")
	}

	res, err := h.orders.Track(c.UserContext(), trackingNumber)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}
