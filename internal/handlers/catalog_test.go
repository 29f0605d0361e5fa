package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

func TestCategoryProductsRoute(t *testing.T) {
	env := newEnv(t)
	h := handlers.NewCatalogHandler(env.db, services.NewCatalog(env.db))
	env.app.Get("/categories", h.ListCategories)
	env.app.Get("/categories/:id/products", h.CategoryProducts)

	zone := env.moscow(t, 3)
	cat := models.Category{Name: "Одежда", Slug: "clothes"}
	require.NoError(t, env.db.Create(&cat).Error)

	cheap := models.Product{Title: "shirt", Price: 100, CategoryID: cat.ID}
	dear := models.Product{Title: "coat", Price: 500, CategoryID: cat.ID}
	slow := models.Product{Title: "boots", Price: 150, CategoryID: cat.ID}
	require.NoError(t, env.db.Create(&[]*models.Product{&cheap, &dear, &slow}).Error)
	require.NoError(t, env.db.Create(&models.ProductDeliveryTime{ProductID: slow.ID, ZoneID: zone.ID, AdditionalDays: 7}).Error)

	status, body := env.do(t, http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	base := "/categories/" + cat.ID.String() + "/products?zone_id=" + zone.ID.String()

	status, body = env.do(t, http.MethodGet, base+"&sort=priceAsc", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	items := body["data"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "shirt", items[0].(map[string]any)["title"])
	assert.EqualValues(t, 10, items[1].(map[string]any)["total_delivery_days"])

	status, body = env.do(t, http.MethodGet, base+"&price_max=200&delivery_time=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	items = body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "shirt", items[0].(map[string]any)["title"])

	status, _ = env.do(t, http.MethodGet, "/categories/"+cat.ID.String()+"/products", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/categories/"+cat.ID.String()+"/products?zone_id="+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, base+"&price_min=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
