package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// AdminHandler serves the administrator dashboard.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// DashboardStats returns order, revenue and customer totals.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64, len(statusCounts))
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var revenue float64
	if err := db.Model(&models.Order{}).
		Where("status <> ?", models.OrderStatusCancelled).
		Select("COALESCE(SUM(total), 0)").
		Scan(&revenue).Error; err != nil {
		return err
	}

	var totalProducts int64
	if err := db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":      totalUsers,
			"total_orders":     totalOrders,
			"total_products":   totalProducts,
			"total_revenue":    revenue,
			"orders_by_status": ordersByStatus,
		},
	})
}

// ListAllOrders returns orders newest first, optionally filtered by status.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		if !models.ValidOrderStatus(status) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		query = query.Where("status = ?", status)
	}
	if tracking := c.Query("tracking_number"); tracking != "" {
		query = query.Where("tracking_number = ?", tracking)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"limit":       pg.Limit,
			"offset":      pg.Offset,
			"total_items": total,
		},
	})
}

type userRow struct {
	models.User
	OrderCount int64   `json:"order_count"`
	TotalSpent float64 `json:"total_spent"`
}

// ListAllUsers returns customers with their order count and spend.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	db := h.db.WithContext(c.UserContext())
	query := db.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		like := utils.ContainsPattern(search)
		query = query.Where(`name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\'`, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	type userStats struct {
		UserID     uuid.UUID
		OrderCount int64
		TotalSpent float64
	}
	var stats []userStats
	if len(ids) > 0 {
		if err := db.Model(&models.Order{}).
			Select("user_id, count(*) as order_count, COALESCE(SUM(total), 0) as total_spent").
			Where("user_id IN ?", ids).
			Group("user_id").
			Scan(&stats).Error; err != nil {
			return err
		}
	}

	byUser := make(map[uuid.UUID]userStats, len(stats))
	for _, s := range stats {
		byUser[s.UserID] = s
	}

	out := make([]userRow, len(users))
	for i, u := range users {
		out[i] = userRow{User: u}
		if s, ok := byUser[u.ID]; ok {
			out[i].OrderCount = s.OrderCount
			out[i].TotalSpent = s.TotalSpent
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
		"pagination": fiber.Map{
			"limit":       pg.Limit,
			"offset":      pg.Offset,
			"total_items": total,
		},
	})
}
