package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/geo"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

func TestEstimateDays(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		base, add int
		mode      string
		speed     string
		wantDays  int
	}{
		{"pickup", 3, 2, models.DeliveryModePickup, models.DeliverySpeedFast, 5},
		{"courier fast", 3, 2, models.DeliveryModeCourier, models.DeliverySpeedFast, 4},
		{"courier regular", 3, 2, models.DeliveryModeCourier, models.DeliverySpeedRegular, 6},
		{"courier no speed", 3, 0, models.DeliveryModeCourier, "", 4},
		{"clamped at zero", 0, 0, models.DeliveryModeCourier, models.DeliverySpeedFast, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantDays, services.EstimateDays(tc.base, tc.add, tc.mode, tc.speed))
		})
	}
}

func TestExpectedDeliveryDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, day(2024, 3, 2), services.ExpectedDeliveryDate(day(2024, 2, 27), 4))
}

func TestZoneResolver(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	zone := moscowZone(t, db, 3)
	point := createPoint(t, db, zone, 55.76, 37.61)
	inactive := createPoint(t, db, zone, 55.70, 37.50)
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	resolver := services.NewZoneResolver(db)

	t.Run("courier inside zone", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, services.Location{
			DeliveryMode: models.DeliveryModeCourier,
			Coordinates:  &geo.Point{Lat: 55.75, Lng: 37.62},
		})
		require.NoError(t, err)
		assert.Equal(t, zone.ID, got.ID)
	})

	t.Run("courier outside every zone", func(t *testing.T) {
		_, err := resolver.ByCoordinates(ctx, 43.1, 131.9)
		assert.ErrorIs(t, err, services.ErrZoneNotFound)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		_, err := resolver.ByCoordinates(ctx, 95, 37)
		assert.ErrorIs(t, err, services.ErrZoneNotFound)
	})

	t.Run("pickup point", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, services.Location{
			DeliveryMode: models.DeliveryModePickup,
			PointID:      &point.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, zone.ID, got.ID)
	})

	t.Run("inactive pickup point", func(t *testing.T) {
		_, err := resolver.ByPoint(ctx, inactive.ID)
		assert.ErrorIs(t, err, services.ErrPointNotFound)
	})

	t.Run("unknown pickup point", func(t *testing.T) {
		_, err := resolver.ByPoint(ctx, uuid.New())
		assert.ErrorIs(t, err, services.ErrPointNotFound)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, services.Location{DeliveryMode: "drone"})
		assert.ErrorIs(t, err, services.ErrInvalidDeliveryMode)
	})
}

func TestEstimatorUsesProductOverrides(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	zone := moscowZone(t, db, 3)
	slow := createProduct(t, db, "slow", 100, 5)
	plain := createProduct(t, db, "plain", 100, 5)
	require.NoError(t, db.Create(&models.ProductDeliveryTime{ProductID: slow.ID, ZoneID: zone.ID, AdditionalDays: 2}).Error)

	got, err := services.NewEstimator(db).Estimate(ctx, &zone,
		[]uuid.UUID{slow.ID, plain.ID}, models.DeliveryModeCourier, models.DeliverySpeedFast)
	require.NoError(t, err)

	assert.Equal(t, []services.ProductEstimate{
		{ProductID: slow.ID, DeliveryDays: 4},
		{ProductID: plain.ID, DeliveryDays: 2},
	}, got)
}

func TestNearestPoints(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	zone := moscowZone(t, db, 3)
	far := createPoint(t, db, zone, 55.90, 37.80)
	near := createPoint(t, db, zone, 55.751, 37.621)

	origin := geo.Point{Lat: 55.75, Lng: 37.62}

	all, err := services.NearestPoints(ctx, db, origin, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, near.ID, all[0].ID)
	assert.Equal(t, far.ID, all[1].ID)
	assert.Less(t, all[0].DistanceKm, 1.0)

	within, err := services.NearestPoints(ctx, db, origin, 5, 0)
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, near.ID, within[0].ID)
}

func TestDeliveryReportsZoneStats(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	zone := moscowZone(t, db, 3)
	createPoint(t, db, zone, 55.75, 37.62)
	createPoint(t, db, zone, 55.80, 37.70)
	product := createProduct(t, db, "slow", 100, 1)
	require.NoError(t, db.Create(&models.ProductDeliveryTime{ProductID: product.ID, ZoneID: zone.ID, AdditionalDays: 1}).Error)
	createZone(t, db, "Дальний Восток", 10,
		[2]float64{130, 42}, [2]float64{135, 42}, [2]float64{135, 45}, [2]float64{130, 45})

	reports, err := services.NewDeliveryReports(db)
	require.NoError(t, err)

	stats, err := reports.ZoneStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "Дальний Восток", stats[0].ZoneName)
	assert.Zero(t, stats[0].PointsCount)

	assert.Equal(t, "Москва", stats[1].ZoneName)
	assert.Equal(t, 2, stats[1].PointsCount)
	assert.InDelta(t, 3.0, stats[1].AvgDeliveryDays, 0.001)
	assert.Equal(t, 1, stats[1].ProductsWithExtraTime)
}
