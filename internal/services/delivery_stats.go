package services

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// ZoneStats summarises one delivery zone for administrators.
type ZoneStats struct {
	ZoneName              string  `db:"zone_name" json:"zone_name"`
	PointsCount           int     `db:"points_count" json:"points_count"`
	AvgDeliveryDays       float64 `db:"avg_delivery_days" json:"avg_delivery_days"`
	ProductsWithExtraTime int     `db:"products_with_extra_time" json:"products_with_extra_time"`
}

// DeliveryReports runs aggregate read queries over the gorm connection pool.
type DeliveryReports struct {
	db *sqlx.DB
}

// NewDeliveryReports wraps the pool behind conn; it does not own it.
func NewDeliveryReports(conn *gorm.DB) (*DeliveryReports, error) {
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	return &DeliveryReports{db: sqlx.NewDb(sqlDB, sqlxDriverName(conn.Dialector.Name()))}, nil
}

func sqlxDriverName(dialect string) string {
	if dialect == "sqlite" {
		return "sqlite3"
	}
	return dialect
}

const zoneStatsQuery = `
	SELECT
		dz.name AS zone_name,
		COUNT(DISTINCT dp.id) AS points_count,
		COALESCE(AVG(dp.delivery_days), 0) AS avg_delivery_days,
		COUNT(DISTINCT pdt.product_id) AS products_with_extra_time
	FROM delivery_zones dz
	LEFT JOIN delivery_points dp ON dp.zone_id = dz.id AND dp.is_active = ?
	LEFT JOIN product_delivery_times pdt ON pdt.zone_id = dz.id
	GROUP BY dz.id, dz.name
	ORDER BY dz.name`

// ZoneStats returns per-zone point counts and override counts.
func (r *DeliveryReports) ZoneStats(ctx context.Context) ([]ZoneStats, error) {
	stats := []ZoneStats{}
	if err := r.db.SelectContext(ctx, &stats, r.db.Rebind(zoneStatsQuery), true); err != nil {
		return nil, fmt.Errorf("zone stats: %w", err)
	}
	return stats, nil
}
