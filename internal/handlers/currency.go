package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

// CurrencyHandler proxies the daily exchange-rate document.
type CurrencyHandler struct {
	rates *services.CurrencyRates
	log   *slog.Logger
}

func NewCurrencyHandler(rates *services.CurrencyRates, log *slog.Logger) *CurrencyHandler {
	return &CurrencyHandler{rates: rates, log: log}
}

func (h *CurrencyHandler) Rates(c *fiber.Ctx) error {
	doc, err := h.rates.Fetch(c.UserContext())
	if err != nil {
		h.log.Warn("currency rates unavailable", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "currency rates are unavailable")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(doc)
}
