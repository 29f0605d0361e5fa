package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/models"
)

func newAdminEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newEnv(t)
	h := handlers.NewAdminHandler(env.db)
	admin := env.app.Group("/admin", env.auth, env.admin)
	admin.Get("/stats", h.DashboardStats)
	admin.Get("/orders", h.ListAllOrders)
	admin.Get("/users", h.ListAllUsers)
	return env
}

func TestAdminDashboard(t *testing.T) {
	env := newAdminEnv(t)
	_, adminTok := env.user(t, "root@example.com", models.RoleAdmin)
	anna, annaTok := env.user(t, "anna@example.com", models.RoleUser)
	boris, _ := env.user(t, "boris@example.com", models.RoleUser)
	tea := env.product(t, "tea", 1000)
	cup := env.product(t, "cup", 100)

	env.deliveredOrder(t, anna, 1, tea, cup)
	env.deliveredOrder(t, anna, 2, cup)
	cancelled := env.deliveredOrder(t, boris, 3, tea)
	require.NoError(t, env.db.Model(&cancelled).Update("status", models.OrderStatusCancelled).Error)

	for _, path := range []string{"/admin/stats", "/admin/orders", "/admin/users"} {
		status, _ := env.do(t, http.MethodGet, path, annaTok, nil)
		assert.Equal(t, http.StatusForbidden, status, path)
		status, _ = env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}

	status, body := env.do(t, http.MethodGet, "/admin/stats", adminTok, nil)
	require.Equal(t, http.StatusOK, status, body)
	stats := body["data"].(map[string]any)
	assert.EqualValues(t, 3, stats["total_users"])
	assert.EqualValues(t, 3, stats["total_orders"])
	assert.EqualValues(t, 2, stats["total_products"])
	assert.InDelta(t, 1200, stats["total_revenue"], 0.001)
	byStatus := stats["orders_by_status"].(map[string]any)
	assert.EqualValues(t, 2, byStatus[models.OrderStatusDelivered])
	assert.EqualValues(t, 1, byStatus[models.OrderStatusCancelled])

	status, body = env.do(t, http.MethodGet, "/admin/orders?status="+models.OrderStatusCancelled, adminTok, nil)
	require.Equal(t, http.StatusOK, status, body)
	orders := body["data"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, boris.ID.String(), orders[0].(map[string]any)["user_id"])
	assert.Len(t, orders[0].(map[string]any)["items"], 1)

	status, body = env.do(t, http.MethodGet, "/admin/orders?limit=2", adminTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)
	assert.EqualValues(t, 3, body["pagination"].(map[string]any)["total_items"])

	status, _ = env.do(t, http.MethodGet, "/admin/orders?status=lost", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/admin/users?search=anna", adminTok, nil)
	require.Equal(t, http.StatusOK, status, body)
	users := body["data"].([]any)
	require.Len(t, users, 1)
	row := users[0].(map[string]any)
	assert.EqualValues(t, 2, row["order_count"])
	assert.InDelta(t, 1200, row["total_spent"], 0.001)
	assert.NotContains(t, row, "PasswordHash")
}

func TestAdminUserSearchMatchesWildcardsLiterally(t *testing.T) {
	env := newAdminEnv(t)
	_, adminTok := env.user(t, "root@example.com", models.RoleAdmin)
	env.user(t, "first_last@example.com", models.RoleUser)
	env.user(t, "firstxlast@example.com", models.RoleUser)

	status, body := env.do(t, http.MethodGet, "/admin/users?search="+url.QueryEscape("t_l"), adminTok, nil)
	require.Equal(t, http.StatusOK, status, body)
	users := body["data"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "first_last@example.com", users[0].(map[string]any)["email"])

	status, body = env.do(t, http.MethodGet, "/admin/users?search="+url.QueryEscape("%"), adminTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])
}
