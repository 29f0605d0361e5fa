package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// ErrorHandler renders every error as {"success": false, "error": msg}.
// Anything that is not a *fiber.Error is logged and hidden behind a 500.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			log.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
			fe = fiber.NewError(fiber.StatusInternalServerError, "internal server error")
		}
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"error":   fe.Message,
		})
	}
}

// serviceError maps service sentinels onto HTTP errors. Unknown errors pass
// through untouched so the ErrorHandler can log them.
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrTrackingNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrZoneNotFound),
		errors.Is(err, services.ErrPointNotFound),
		errors.Is(err, services.ErrInvalidDeliveryMode),
		errors.Is(err, services.ErrInvalidOrderStatus),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrTooManyMedia),
		errors.Is(err, services.ErrUnsupportedMedia),
		errors.Is(err, services.ErrMediaTooLarge):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrReviewNotAllowed):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrFavoritesLimit),
		errors.Is(err, services.ErrAlreadyReviewed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrTrackingDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return err
}

func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func currentUser(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}
