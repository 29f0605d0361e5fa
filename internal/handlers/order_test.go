package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

func newOrderEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newEnv(t)
	tracker := discardTracker()
	h := handlers.NewOrderHandler(
		services.NewCheckoutService(env.db, tracker, nil, env.log),
		services.NewOrderService(env.db, tracker, env.log),
	)
	env.app.Post("/checkout", env.auth, h.Checkout)
	env.app.Get("/orders/user-orders", env.auth, h.ListUserOrders)
	env.app.Put("/orders/:id/status", env.auth, env.admin, h.UpdateStatus)
	env.app.Get("/delivery/track/:trackingNumber", h.TrackParcel)
	return env
}

func TestCheckoutRoute(t *testing.T) {
	env := newOrderEnv(t)
	env.moscow(t, 3)
	tea := env.product(t, "tea", 1000)
	cup := env.product(t, "cup", 100)
	user, tok := env.user(t, "anna@example.com", models.RoleUser)
	other, _ := env.user(t, "other@example.com", models.RoleUser)

	status, body := env.do(t, http.MethodPost, "/checkout", tok, map[string]any{
		"UserID": other.ID,
		"cart": []map[string]any{
			{"id": tea.ID, "quantity": 1},
			{"id": cup.ID, "quantity": 2},
		},
		"location": map[string]any{
			"delivery_mode": models.DeliveryModeCourier,
			"coordinates":   map[string]float64{"lat": 55.75, "lng": 37.62},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["order_number"])
	assert.InDelta(t, 1200, data["total"], 0.001)
	assert.True(t, strings.HasPrefix(data["tracking_number"].(string), "TRK"))

	var order models.Order
	require.NoError(t, env.db.First(&order).Error)
	assert.Equal(t, user.ID, order.UserID)

	status, body = env.do(t, http.MethodGet, "/orders/user-orders", tok, nil)
	require.Equal(t, http.StatusOK, status)
	orders := body["data"].([]any)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].(map[string]any)["products"], 2)
}

func TestCheckoutRouteErrors(t *testing.T) {
	env := newOrderEnv(t)
	env.moscow(t, 3)
	tea := env.product(t, "tea", 1000)
	_, tok := env.user(t, "anna@example.com", models.RoleUser)

	courier := map[string]any{
		"delivery_mode": models.DeliveryModeCourier,
		"coordinates":   map[string]float64{"lat": 55.75, "lng": 37.62},
	}

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"empty cart", map[string]any{"cart": []any{}, "location": courier}, http.StatusBadRequest},
		{"zero quantity", map[string]any{"cart": []map[string]any{{"id": tea.ID, "quantity": 0}}, "location": courier}, http.StatusBadRequest},
		{"unknown product", map[string]any{"cart": []map[string]any{{"id": uuid.New(), "quantity": 1}}, "location": courier}, http.StatusNotFound},
		{"outside zones", map[string]any{
			"cart": []map[string]any{{"id": tea.ID, "quantity": 1}},
			"location": map[string]any{
				"delivery_mode": models.DeliveryModeCourier,
				"coordinates":   map[string]float64{"lat": 10, "lng": 10},
			},
		}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := env.do(t, http.MethodPost, "/checkout", tok, tc.body)
			assert.Equal(t, tc.want, status)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)

	status, _ := env.do(t, http.MethodPost, "/checkout", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUpdateOrderStatusRoute(t *testing.T) {
	env := newOrderEnv(t)
	user, userTok := env.user(t, "anna@example.com", models.RoleUser)
	_, adminTok := env.user(t, "admin@example.com", models.RoleAdmin)

	order := models.Order{UserID: user.ID, OrderNumber: 7, Status: models.OrderStatusNew, TrackingNumber: "TRK7"}
	require.NoError(t, env.db.Create(&order).Error)
	path := "/orders/" + order.ID.String() + "/status"

	status, _ := env.do(t, http.MethodPut, path, userTok, map[string]string{"status": models.OrderStatusDelivered})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPut, path, adminTok, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPut, "/orders/"+uuid.NewString()+"/status", adminTok, map[string]string{"status": models.OrderStatusDelivered})
	assert.Equal(t, http.StatusNotFound, status)

	status, body := env.do(t, http.MethodPut, path, adminTok, map[string]string{"status": models.OrderStatusDelivered})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, models.OrderStatusDelivered, body["data"].(map[string]any)["status"])

	require.NoError(t, env.db.First(&order, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
}

func TestTrackParcelWithoutProvider(t *testing.T) {
	env := newOrderEnv(t)

	status, body := env.do(t, http.MethodGet, "/delivery/track/TRK1", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, services.ErrTrackingDisabled.Error(), body["error"])
}
