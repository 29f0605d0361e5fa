package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// ProfileHandler serves the authenticated user's own data.
type ProfileHandler struct {
	db      *gorm.DB
	media   services.MediaStore
	orders  *services.OrderService
	reviews *services.Reviews
	log     *slog.Logger
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, media services.MediaStore, orders *services.OrderService, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		db:      db,
		media:   media,
		orders:  orders,
		reviews: services.NewReviews(db),
		log:     log,
	}
}

func (h *ProfileHandler) loadUser(c *fiber.Ctx) (*models.User, error) {
	userID, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetProfile returns the current user.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

type updateProfileRequest struct {
	Name         string `form:"name" validate:"omitempty,max=255"`
	Email        string `form:"email" validate:"omitempty,email"`
	Phone        string `form:"phone" validate:"omitempty,e164"`
	RemoveAvatar bool   `form:"remove_avatar"`
}

// UpdateProfile changes name, email, phone and avatar. The avatar arrives as
// a multipart file; the previous one is deleted from the media store.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}

	db := h.db.WithContext(c.UserContext())
	if email, ok := updates["email"]; ok && email != user.Email {
		if err := h.ensureUnique(db, "email", email, user); err != nil {
			return err
		}
	}
	if phone, ok := updates["phone"]; ok && (user.Phone == nil || phone != *user.Phone) {
		if err := h.ensureUnique(db, "phone", phone, user); err != nil {
			return err
		}
	}

	oldAvatar := user.Avatar
	newAvatar := ""
	if file, ferr := c.FormFile("avatar"); ferr == nil {
		url, err := h.media.Save(c.UserContext(), services.UserFolder(user.ID.String(), "avatar"), file)
		if err != nil {
			return serviceError(err)
		}
		newAvatar = url
		updates["avatar"] = url
	} else if req.RemoveAvatar {
		updates["avatar"] = ""
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		if newAvatar != "" {
			if derr := h.media.Delete(c.UserContext(), newAvatar); derr != nil {
				h.log.Warn("profile: discard new avatar", "user_id", user.ID, "error", derr)
			}
		}
		return err
	}

	if _, replaced := updates["avatar"]; replaced && oldAvatar != "" {
		if err := h.media.Delete(c.UserContext(), oldAvatar); err != nil {
			h.log.Warn("profile: delete old avatar", "user_id", user.ID, "error", err)
		}
	}

	if err := db.First(user, "id = ?", user.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// ensureUnique rejects a value already held by another user.
func (h *ProfileHandler) ensureUnique(db *gorm.DB, column string, value any, user *models.User) error {
	var taken int64
	if err := db.Model(&models.User{}).Where(column+" = ? AND id <> ?", value, user.ID).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fiber.NewError(fiber.StatusConflict, column+" already in use")
	}
	return nil
}

// GetFullProfile returns personal info, order history and review history.
func (h *ProfileHandler) GetFullProfile(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	history, err := h.orders.UserOrders(ctx, user.ID)
	if err != nil {
		return err
	}
	submitted, pending, err := h.reviews.History(ctx, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"personal_info":    user,
			"purchase_history": history,
			"review_history": fiber.Map{
				"submitted": submitted,
				"pending":   pending,
			},
		},
	})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// UpdatePassword replaces the password after checking the current one.
func (h *ProfileHandler) UpdatePassword(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var req updatePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return fiber.NewError(fiber.StatusBadRequest, "current password is incorrect")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}
	if err := h.db.Model(user).Update("password_hash", hash).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

type saveCartRequest struct {
	Cart []map[string]any `json:"cart" validate:"required"`
}

// SaveCart stores the client's cart document as-is.
func (h *ProfileHandler) SaveCart(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req saveCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	raw, err := json.Marshal(req.Cart)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid cart")
	}

	cart := models.UserCart{UserID: userID, CartData: raw}
	if err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cart_data", "updated_at"}),
	}).Create(&cart).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "cart saved"})
}

// LoadCart returns the stored cart document or an empty list.
func (h *ProfileHandler) LoadCart(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var cart models.UserCart
	err = h.db.First(&cart, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "data": []any{}})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cart.CartData})
}
