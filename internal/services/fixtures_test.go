package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/geo"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

func createZone(t *testing.T, db *gorm.DB, name string, baseDays int, ring ...[2]float64) models.DeliveryZone {
	t.Helper()
	zone := models.DeliveryZone{Name: name, BaseDeliveryDays: baseDays, Boundary: geo.NewPolygon(ring...)}
	require.NoError(t, db.Create(&zone).Error)
	return zone
}

// moscowZone covers a box around Moscow.
func moscowZone(t *testing.T, db *gorm.DB, baseDays int) models.DeliveryZone {
	return createZone(t, db, "Москва", baseDays,
		[2]float64{36, 55}, [2]float64{39, 55}, [2]float64{39, 56.5}, [2]float64{36, 56.5})
}

func createPoint(t *testing.T, db *gorm.DB, zone models.DeliveryZone, lat, lng float64) models.DeliveryPoint {
	t.Helper()
	p := models.DeliveryPoint{ZoneID: zone.ID, City: "Москва", Address: "ул. Тверская, 1", Lat: lat, Lng: lng, DeliveryDays: zone.BaseDeliveryDays, IsActive: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func createProduct(t *testing.T, db *gorm.DB, title string, price float64, qty int) models.Product {
	t.Helper()
	p := models.Product{Title: title, Price: price, Quantity: qty, Images: []string{"/uploads/" + title + ".jpg"}}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func attachDiscount(t *testing.T, db *gorm.DB, product *models.Product, pct float64, start, end time.Time) {
	t.Helper()
	d := models.Discount{Type: models.DiscountRegular, Percentage: pct, StartDate: start, EndDate: end}
	require.NoError(t, db.Create(&d).Error)
	require.NoError(t, db.Model(product).Association("Discounts").Append(&d))
}

func createUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Name: "Анна", Email: email, Role: models.RoleUser, PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// fakeTracker records calls and fails on demand.
type fakeTracker struct {
	mu        sync.Mutex
	createErr error
	getErr    error
	info      *services.TrackingInfo
	created   []services.ShipmentRequest
	updates   []string
}

func (f *fakeTracker) CourierCode() string { return "china-ems" }

func (f *fakeTracker) Create(_ context.Context, req services.ShipmentRequest) (*services.TrackingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &services.TrackingInfo{TrackingNumber: req.TrackingNumber, CourierCode: "china-ems"}, nil
}

func (f *fakeTracker) Get(_ context.Context, _ string) (*services.TrackingInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.info, nil
}

func (f *fakeTracker) UpdateStatus(_ context.Context, trackingNumber, status string) services.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, trackingNumber+":"+status)
	return services.Outcome{}
}
