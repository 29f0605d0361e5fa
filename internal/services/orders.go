package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// OrderService covers order history, status changes and parcel tracking.
type OrderService struct {
	db      *gorm.DB
	tracker Tracker
	log     *slog.Logger
}

func NewOrderService(db *gorm.DB, tracker Tracker, log *slog.Logger) *OrderService {
	return &OrderService{db: db, tracker: tracker, log: log}
}

// OrderLine is one product in an order history entry.
type OrderLine struct {
	ID                   uuid.UUID `json:"id"`
	Title                string    `json:"title"`
	Price                float64   `json:"price"`
	Quantity             int       `json:"quantity"`
	Image                string    `json:"image"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

// OrderSummary is an order as shown in the customer's history.
type OrderSummary struct {
	ID             uuid.UUID   `json:"id"`
	OrderNumber    int64       `json:"order_number"`
	Date           time.Time   `json:"date"`
	Currency       string      `json:"currency"`
	Total          float64     `json:"total"`
	Status         string      `json:"status"`
	TrackingNumber string      `json:"tracking_number"`
	CourierCode    string      `json:"courier_code"`
	DeliverySpeed  string      `json:"delivery_speed"`
	Products       []OrderLine `json:"products"`
}

// UserOrders lists the user's orders, newest first.
func (s *OrderService) UserOrders(ctx context.Context, userID uuid.UUID) ([]OrderSummary, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		summary := OrderSummary{
			ID:             o.ID,
			OrderNumber:    o.OrderNumber,
			Date:           o.CreatedAt,
			Currency:       o.Currency,
			Total:          o.Total,
			Status:         o.Status,
			TrackingNumber: o.TrackingNumber,
			CourierCode:    o.CourierCode,
			DeliverySpeed:  o.DeliverySpeed,
			Products:       make([]OrderLine, 0, len(o.Items)),
		}
		for _, item := range o.Items {
			line := OrderLine{
				ID:                   item.ProductID,
				Price:                item.Price,
				Quantity:             item.Quantity,
				ExpectedDeliveryDate: item.ExpectedDeliveryDate,
			}
			if item.Product != nil {
				line.Title = item.Product.Title
				if len(item.Product.Images) > 0 {
					line.Image = item.Product.Images[0]
				}
			}
			summary.Products = append(summary.Products, line)
		}
		out = append(out, summary)
	}
	return out, nil
}

// UpdateStatus changes the order status. The carrier is told first on a
// best-effort basis; the database update always follows.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, ErrInvalidOrderStatus
	}

	var order models.Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if order.TrackingNumber != "" {
		if out := s.tracker.UpdateStatus(ctx, order.TrackingNumber, status); !out.OK() {
			s.log.Warn("orders: tracking status update failed",
				"order_id", order.ID, "tracking_number", order.TrackingNumber, "error", out.Err)
		}
	}

	if err := s.db.WithContext(ctx).Model(&order).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status
	return &order, nil
}

// TrackResult is the provider view plus what it meant for our order.
type TrackResult struct {
	Tracking    *TrackingInfo `json:"tracking"`
	OrderStatus string        `json:"order_status,omitempty"`
	Registered  bool          `json:"registered"`
}

// Track fetches the parcel from the carrier and syncs the mapped status
// onto the order. An unknown parcel is registered with the carrier instead.
func (s *OrderService) Track(ctx context.Context, trackingNumber string) (*TrackResult, error) {
	info, err := s.tracker.Get(ctx, trackingNumber)
	if IsTrackingNotFound(err) {
		created, cerr := s.tracker.Create(ctx, ShipmentRequest{
			TrackingNumber: trackingNumber,
			Customer:       Customer{Name: "Customer"},
		})
		if cerr != nil {
			return nil, cerr
		}
		return &TrackResult{Tracking: created, Registered: true}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &TrackResult{Tracking: info}
	if info.DeliveryStatus != "" {
		res.OrderStatus = MapTrackingStatus(info.DeliveryStatus)
		if err := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("tracking_number = ?", trackingNumber).
			Update("status", res.OrderStatus).Error; err != nil {
			return nil, fmt.Errorf("sync order status: %w", err)
		}
	}
	return res, nil
}
