package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/geo"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// DeliveryCachePrefix keys every cached delivery listing.
const DeliveryCachePrefix = "delivery:"

const (
	defaultRadiusKm = 50
	pointsCacheTTL  = 30 * time.Minute
)

// DeliveryHandler manages zones, pickup points and delivery estimates.
type DeliveryHandler struct {
	db        *gorm.DB
	resolver  *services.ZoneResolver
	estimator *services.Estimator
	reports   *services.DeliveryReports
	cache     *cache.Cache
	log       *slog.Logger
}

// NewDeliveryHandler constructs DeliveryHandler.
func NewDeliveryHandler(db *gorm.DB, reports *services.DeliveryReports, store *cache.Cache, log *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		db:        db,
		resolver:  services.NewZoneResolver(db),
		estimator: services.NewEstimator(db),
		reports:   reports,
		cache:     store,
		log:       log,
	}
}

// RegisterDeliveryRoutes attaches the delivery routes. track serves the
// parcel lookup, which lives with the order handler.
func (h *DeliveryHandler) RegisterDeliveryRoutes(router fiber.Router, auth, admin, track fiber.Handler) {
	router.Get("/points", middleware.Cache(h.cache, middleware.URLKey(DeliveryCachePrefix), pointsCacheTTL), h.ListPoints)
	router.Get("/points/radius", h.PointsInRadius)
	router.Get("/zones", h.ListZones)
	router.Get("/zone", h.ZoneByCoordinates)
	router.Get("/nearest", h.NearestPoint)
	router.Post("/calculate", h.Calculate)
	router.Get("/track/:trackingNumber", track)

	router.Post("/zones", auth, admin, h.CreateZone)
	router.Put("/zones/:id", auth, admin, h.UpdateZone)
	router.Post("/points", auth, admin, h.CreatePoint)
	router.Put("/points/:id", auth, admin, h.UpdatePoint)
	router.Put("/times", auth, admin, h.UpsertDeliveryTime)
	router.Get("/stats", auth, admin, h.Stats)
}

type pointView struct {
	models.DeliveryPoint
	ZoneName         string `json:"zone_name"`
	BaseDeliveryDays int    `json:"base_delivery_days"`
}

// ListPoints returns the active pickup points ordered by city.
func (h *DeliveryHandler) ListPoints(c *fiber.Ctx) error {
	var points []models.DeliveryPoint
	if err := h.db.WithContext(c.UserContext()).Preload("Zone").
		Where("is_active = ?", true).
		Order("city").
		Find(&points).Error; err != nil {
		return err
	}

	out := make([]pointView, 0, len(points))
	for _, p := range points {
		v := pointView{DeliveryPoint: p}
		if p.Zone != nil {
			v.ZoneName = p.Zone.Name
			v.BaseDeliveryDays = p.Zone.BaseDeliveryDays
		}
		v.Zone = nil
		out = append(out, v)
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// ListZones returns every zone with its active points.
func (h *DeliveryHandler) ListZones(c *fiber.Ctx) error {
	var zones []models.DeliveryZone
	if err := h.db.WithContext(c.UserContext()).
		Preload("Points", "is_active = ?", true).
		Order("created_at").
		Find(&zones).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": zones})
}

// ZoneByCoordinates returns the zone containing lat/lng.
func (h *DeliveryHandler) ZoneByCoordinates(c *fiber.Ctx) error {
	origin, err := queryPoint(c)
	if err != nil {
		return err
	}

	zone, err := h.resolver.ByCoordinates(c.UserContext(), origin.Lat, origin.Lng)
	if err != nil {
		if errors.Is(err, services.ErrZoneNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": zone})
}

// NearestPoint returns the closest active pickup point.
func (h *DeliveryHandler) NearestPoint(c *fiber.Ctx) error {
	origin, err := queryPoint(c)
	if err != nil {
		return err
	}

	points, err := services.NearestPoints(c.UserContext(), h.db, origin, 0, 1)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fiber.NewError(fiber.StatusNotFound, services.ErrPointNotFound.Error())
	}
	return c.JSON(fiber.Map{"success": true, "data": points[0]})
}

// PointsInRadius returns active points within radius km (default 50).
func (h *DeliveryHandler) PointsInRadius(c *fiber.Ctx) error {
	origin, err := queryPoint(c)
	if err != nil {
		return err
	}

	radius := float64(defaultRadiusKm)
	if raw := c.Query("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid radius")
		}
	}

	points, err := services.NearestPoints(c.UserContext(), h.db, origin, radius, 0)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": points})
}

type calculateRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1"`
	services.Location
}

// Calculate resolves the zone for a location and estimates each product.
func (h *DeliveryHandler) Calculate(c *fiber.Ctx) error {
	var req calculateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	zone, err := h.resolver.Resolve(ctx, req.Location)
	if err != nil {
		if errors.Is(err, services.ErrZoneNotFound) || errors.Is(err, services.ErrPointNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return serviceError(err)
	}

	estimates, err := h.estimator.Estimate(ctx, zone, req.ProductIDs, req.DeliveryMode, req.DeliverySpeed)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"zone_id":        zone.ID,
			"zone_name":      zone.Name,
			"delivery_times": estimates,
		},
	})
}

type zoneRequest struct {
	Name             string      `json:"name" validate:"required,min=2,max=255"`
	BaseDeliveryDays int         `json:"base_delivery_days" validate:"min=0,max=30"`
	Geometry         geo.Polygon `json:"geometry"`
}

func (r zoneRequest) validate() error {
	if err := r.Geometry.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "geometry: "+err.Error())
	}
	return nil
}

func (h *DeliveryHandler) CreateZone(c *fiber.Ctx) error {
	var req zoneRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	zone := models.DeliveryZone{
		Name:             req.Name,
		BaseDeliveryDays: req.BaseDeliveryDays,
		Boundary:         req.Geometry,
	}
	zone.Boundary.Type = "Polygon"
	if err := h.db.WithContext(c.UserContext()).Create(&zone).Error; err != nil {
		return err
	}

	h.invalidate(c)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": zone})
}

func (h *DeliveryHandler) UpdateZone(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req zoneRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var zone models.DeliveryZone
	if err := db.First(&zone, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, services.ErrZoneNotFound.Error())
		}
		return err
	}

	zone.Name = req.Name
	zone.BaseDeliveryDays = req.BaseDeliveryDays
	zone.Boundary = req.Geometry
	zone.Boundary.Type = "Polygon"
	if err := db.Save(&zone).Error; err != nil {
		return err
	}

	h.invalidate(c)
	return c.JSON(fiber.Map{"success": true, "data": zone})
}

type pointRequest struct {
	ZoneID       uuid.UUID `json:"zone_id" validate:"required"`
	City         string    `json:"city" validate:"required,min=2,max=255"`
	Address      string    `json:"address" validate:"required,min=5"`
	Lat          float64   `json:"lat" validate:"min=-90,max=90"`
	Lng          float64   `json:"lng" validate:"min=-180,max=180"`
	DeliveryDays int       `json:"delivery_days" validate:"min=0,max=30"`
	IsActive     *bool     `json:"is_active"`
}

func (h *DeliveryHandler) CreatePoint(c *fiber.Ctx) error {
	var req pointRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	if err := h.zoneExists(db, req.ZoneID); err != nil {
		return err
	}

	point := models.DeliveryPoint{
		ZoneID:       req.ZoneID,
		City:         req.City,
		Address:      req.Address,
		Lat:          req.Lat,
		Lng:          req.Lng,
		DeliveryDays: req.DeliveryDays,
		IsActive:     true,
	}
	if err := db.Create(&point).Error; err != nil {
		return err
	}
	// is_active defaults to true in the column, so false has to be written
	// explicitly.
	if req.IsActive != nil && !*req.IsActive {
		if err := db.Model(&point).Update("is_active", false).Error; err != nil {
			return err
		}
		point.IsActive = false
	}

	h.invalidate(c)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": point})
}

func (h *DeliveryHandler) UpdatePoint(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req pointRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var point models.DeliveryPoint
	if err := db.First(&point, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, services.ErrPointNotFound.Error())
		}
		return err
	}
	if err := h.zoneExists(db, req.ZoneID); err != nil {
		return err
	}

	point.ZoneID = req.ZoneID
	point.City = req.City
	point.Address = req.Address
	point.Lat = req.Lat
	point.Lng = req.Lng
	point.DeliveryDays = req.DeliveryDays
	if req.IsActive != nil {
		point.IsActive = *req.IsActive
	}
	if err := db.Select("*").Omit("created_at").Updates(&point).Error; err != nil {
		return err
	}

	h.invalidate(c)
	return c.JSON(fiber.Map{"success": true, "data": point})
}

type deliveryTimeRequest struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	ZoneID         uuid.UUID `json:"zone_id" validate:"required"`
	AdditionalDays int       `json:"additional_days" validate:"min=0,max=60"`
}

// UpsertDeliveryTime sets the handling surcharge for a product in a zone.
func (h *DeliveryHandler) UpsertDeliveryTime(c *fiber.Ctx) error {
	var req deliveryTimeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	if err := h.zoneExists(db, req.ZoneID); err != nil {
		return err
	}
	var count int64
	if err := db.Model(&models.Product{}).Where("id = ?", req.ProductID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fiber.NewError(fiber.StatusNotFound, services.ErrProductNotFound.Error())
	}

	row := models.ProductDeliveryTime{
		ProductID:      req.ProductID,
		ZoneID:         req.ZoneID,
		AdditionalDays: req.AdditionalDays,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "zone_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"additional_days"}),
	}).Create(&row).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": row})
}

// Stats returns per-zone point and override counts.
func (h *DeliveryHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.reports.ZoneStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

func (h *DeliveryHandler) zoneExists(db *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := db.Model(&models.DeliveryZone{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fiber.NewError(fiber.StatusBadRequest, services.ErrZoneNotFound.Error())
	}
	return nil
}

func (h *DeliveryHandler) invalidate(c *fiber.Ctx) {
	h.cache.InvalidatePrefix(c.UserContext(), DeliveryCachePrefix)
	h.log.Debug("delivery cache invalidated", "method", c.Method(), "path", c.Path())
}

func queryPoint(c *fiber.Ctx) (geo.Point, error) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || !geo.ValidCoordinates(lat, lng) {
		return geo.Point{}, fiber.NewError(fiber.StatusBadRequest, "valid lat and lng are required")
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}
