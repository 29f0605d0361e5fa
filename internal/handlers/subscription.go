package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
)

// SubscriptionHandler records newsletter sign-ups.
type SubscriptionHandler struct {
	db *gorm.DB
}

func NewSubscriptionHandler(db *gorm.DB) *SubscriptionHandler {
	return &SubscriptionHandler{db: db}
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Subscribe stores the email; a repeat sign-up is a conflict.
func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	sub := models.Subscriber{Email: strings.ToLower(strings.TrimSpace(req.Email))}
	res := h.db.WithContext(c.UserContext()).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&sub)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusConflict, "email is already subscribed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": sub})
}
