package models

import (
	"github.com/google/uuid"

	"github.com/example/storefront/internal/geo"
)

const (
	DeliveryModePickup  = "pickup"
	DeliveryModeCourier = "courier"

	DeliverySpeedRegular = "regular"
	DeliverySpeedFast    = "fast"
)

// DeliveryZone is a region with a base transit time. Boundaries are expected
// not to overlap; lookups take the first match.
type DeliveryZone struct {
	BaseModel
	Name             string          `json:"name"`
	BaseDeliveryDays int             `json:"base_delivery_days"`
	Boundary         geo.Polygon     `gorm:"type:jsonb;serializer:json" json:"geometry"`
	Points           []DeliveryPoint `gorm:"foreignKey:ZoneID" json:"delivery_points,omitempty"`
}

type DeliveryPoint struct {
	BaseModel
	ZoneID       uuid.UUID     `gorm:"type:uuid;index" json:"zone_id"`
	Zone         *DeliveryZone `json:"zone,omitempty"`
	City         string        `gorm:"index" json:"city"`
	Address      string        `json:"address"`
	Lat          float64       `json:"lat"`
	Lng          float64       `json:"lng"`
	DeliveryDays int           `json:"delivery_days"`
	IsActive     bool          `gorm:"default:true" json:"is_active"`
}

// ProductDeliveryTime adds handling days for a product shipped to a zone.
type ProductDeliveryTime struct {
	ProductID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	ZoneID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"zone_id"`
	AdditionalDays int       `json:"additional_days"`
}
