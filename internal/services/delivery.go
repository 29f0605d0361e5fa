package services

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/geo"
	"github.com/example/storefront/internal/models"
)

// Location describes where and how an order is delivered.
type Location struct {
	DeliveryMode  string     `json:"delivery_mode" validate:"required,oneof=pickup courier"`
	DeliverySpeed string     `json:"delivery_speed" validate:"omitempty,oneof=regular fast"`
	PointID       *uuid.UUID `json:"point_id" validate:"required_if=DeliveryMode pickup"`
	Coordinates   *geo.Point `json:"coordinates" validate:"required_if=DeliveryMode courier"`
	PostalCode    string     `json:"postal_code"`
}

// ZoneResolver maps a pickup point or a coordinate onto a delivery zone.
type ZoneResolver struct {
	db *gorm.DB
}

func NewZoneResolver(db *gorm.DB) *ZoneResolver {
	return &ZoneResolver{db: db}
}

// Resolve dispatches on the delivery mode of loc.
func (r *ZoneResolver) Resolve(ctx context.Context, loc Location) (*models.DeliveryZone, error) {
	switch loc.DeliveryMode {
	case models.DeliveryModePickup:
		if loc.PointID == nil {
			return nil, ErrPointNotFound
		}
		return r.ByPoint(ctx, *loc.PointID)
	case models.DeliveryModeCourier:
		if loc.Coordinates == nil {
			return nil, ErrZoneNotFound
		}
		return r.ByCoordinates(ctx, loc.Coordinates.Lat, loc.Coordinates.Lng)
	default:
		return nil, ErrInvalidDeliveryMode
	}
}

// ByPoint returns the zone owning an active delivery point.
func (r *ZoneResolver) ByPoint(ctx context.Context, pointID uuid.UUID) (*models.DeliveryZone, error) {
	var point models.DeliveryPoint
	err := r.db.WithContext(ctx).Preload("Zone").
		First(&point, "id = ? AND is_active = ?", pointID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPointNotFound
	}
	if err != nil {
		return nil, err
	}
	if point.Zone == nil {
		return nil, ErrZoneNotFound
	}
	return point.Zone, nil
}

// ByCoordinates returns the first zone, in creation order, whose boundary
// contains the coordinate. Overlapping zones are not disambiguated.
func (r *ZoneResolver) ByCoordinates(ctx context.Context, lat, lng float64) (*models.DeliveryZone, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return nil, ErrZoneNotFound
	}

	var zones []models.DeliveryZone
	if err := r.db.WithContext(ctx).Order("created_at, id").Find(&zones).Error; err != nil {
		return nil, err
	}

	pt := geo.Point{Lat: lat, Lng: lng}
	for i := range zones {
		if zones[i].Boundary.Contains(pt) {
			return &zones[i], nil
		}
	}
	return nil, ErrZoneNotFound
}

// ProductEstimate is the delivery time of one product.
type ProductEstimate struct {
	ProductID    uuid.UUID `json:"product_id"`
	DeliveryDays int       `json:"delivery_days"`
}

// Estimator computes per-product delivery days for a zone.
type Estimator struct {
	db *gorm.DB
}

func NewEstimator(db *gorm.DB) *Estimator {
	return &Estimator{db: db}
}

// AdditionalDays loads the per-product handling surcharge for a zone.
// Products without an override are absent from the map and count as zero.
func (e *Estimator) AdditionalDays(ctx context.Context, zoneID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	for batch := range slices.Chunk(productIDs, idBatch) {
		var rows []models.ProductDeliveryTime
		if err := e.db.WithContext(ctx).
			Where("zone_id = ? AND product_id IN ?", zoneID, batch).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.ProductID] = row.AdditionalDays
		}
	}
	return out, nil
}

// Estimate returns delivery days for each product in input order.
func (e *Estimator) Estimate(ctx context.Context, zone *models.DeliveryZone, productIDs []uuid.UUID, mode, speed string) ([]ProductEstimate, error) {
	extra, err := e.AdditionalDays(ctx, zone.ID, productIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ProductEstimate, 0, len(productIDs))
	for _, id := range productIDs {
		out = append(out, ProductEstimate{
			ProductID:    id,
			DeliveryDays: EstimateDays(zone.BaseDeliveryDays, extra[id], mode, speed),
		})
	}
	return out, nil
}

// EstimateDays is base plus additional days, adjusted for courier speed:
// fast takes a day off, anything else adds one. Pickup is not adjusted.
// The result never drops below zero.
func EstimateDays(base, additional int, mode, speed string) int {
	total := base + additional
	if mode == models.DeliveryModeCourier {
		if speed == models.DeliverySpeedFast {
			total--
		} else {
			total++
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// ExpectedDeliveryDate adds whole calendar days to now.
func ExpectedDeliveryDate(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, days)
}

// NearbyPoint is an active delivery point with its distance from a query
// coordinate.
type NearbyPoint struct {
	models.DeliveryPoint
	DistanceKm float64 `json:"distance_km"`
}

// NearestPoints returns active points ordered by distance from origin. A
// positive radiusKm drops points further away; a positive limit caps the
// result.
func NearestPoints(ctx context.Context, db *gorm.DB, origin geo.Point, radiusKm float64, limit int) ([]NearbyPoint, error) {
	var points []models.DeliveryPoint
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&points).Error; err != nil {
		return nil, err
	}

	out := make([]NearbyPoint, 0, len(points))
	for _, p := range points {
		d := geo.Distance(origin, geo.Point{Lat: p.Lat, Lng: p.Lng})
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		out = append(out, NearbyPoint{DeliveryPoint: p, DistanceKm: d})
	}

	slices.SortFunc(out, func(a, b NearbyPoint) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
