package database

import (
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/geo"
	"github.com/example/storefront/internal/models"
)

//go:embed zones.yaml
var defaultZonesYAML []byte

type zoneSeed struct {
	Name             string       `yaml:"name"`
	BaseDeliveryDays int          `yaml:"base_delivery_days"`
	Boundary         [][2]float64 `yaml:"boundary"`
}

// ParseZones decodes a YAML list of zones into models.
func ParseZones(data []byte) ([]models.DeliveryZone, error) {
	var seeds []zoneSeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}

	zones := make([]models.DeliveryZone, 0, len(seeds))
	for _, s := range seeds {
		poly := geo.NewPolygon(s.Boundary...)
		if err := poly.Validate(); err != nil {
			return nil, fmt.Errorf("zone %q: %w", s.Name, err)
		}
		zones = append(zones, models.DeliveryZone{
			Name:             s.Name,
			BaseDeliveryDays: s.BaseDeliveryDays,
			Boundary:         poly,
		})
	}
	return zones, nil
}

// SeedDeliveryZones inserts the built-in zones when the table is empty.
func SeedDeliveryZones(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&models.DeliveryZone{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	zones, err := ParseZones(defaultZonesYAML)
	if err != nil {
		return err
	}
	if err := conn.Create(&zones).Error; err != nil {
		return err
	}

	slog.Info("seeded delivery zones", "count", len(zones))
	return nil
}
