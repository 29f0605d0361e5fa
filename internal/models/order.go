package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusNew       = "new"
	OrderStatusInTransit = "in_transit"
	OrderStatusDelivered = "delivered"
	OrderStatusExpired   = "expired"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s belongs to the order status vocabulary.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusNew, OrderStatusInTransit, OrderStatusDelivered, OrderStatusExpired, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	BaseModel
	UserID         uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	OrderNumber    int64           `gorm:"uniqueIndex" json:"order_number"`
	Location       json.RawMessage `gorm:"type:jsonb" json:"location"`
	Currency       string          `json:"currency"`
	Total          float64         `json:"total"`
	Status         string          `gorm:"index" json:"status"`
	ZoneID         uuid.UUID       `gorm:"type:uuid" json:"zone_id"`
	DeliveryMode   string          `json:"delivery_mode"`
	DeliverySpeed  string          `json:"delivery_speed"`
	TrackingNumber string          `gorm:"index" json:"tracking_number"`
	CourierCode    string          `json:"courier_code"`
	Items          []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID              uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductID            uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Product              *Product  `json:"product,omitempty"`
	Quantity             int       `json:"quantity"`
	Price                float64   `json:"price"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

// OrderSequence is the single-row counter backing order numbers.
type OrderSequence struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}
