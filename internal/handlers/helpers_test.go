package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/geo"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

const testSecret = "test-secret"

type testEnv struct {
	db    *gorm.DB
	app   *fiber.App
	cache *cache.Cache
	auth  fiber.Handler
	admin fiber.Handler
	log   *slog.Logger

	mediaDir string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		db:    dbtest.New(t),
		app:   fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)}),
		cache: cache.New(time.Minute, time.Minute, nil, log),
		auth:  middleware.AuthMiddleware(testSecret),
		admin: middleware.RequireRole(models.RoleAdmin),
		log:   log,
	}
}

func (e *testEnv) user(t *testing.T, email, role string) (models.User, string) {
	t.Helper()
	u := models.User{Name: "Анна", Email: email, Role: role, PasswordHash: "x"}
	require.NoError(t, e.db.Create(&u).Error)
	tok, err := utils.GenerateToken(testSecret, u.ID, role, time.Hour)
	require.NoError(t, err)
	return u, tok
}

func (e *testEnv) product(t *testing.T, title string, price float64) models.Product {
	t.Helper()
	p := models.Product{Title: title, Price: price, Quantity: 10}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func (e *testEnv) moscow(t *testing.T, baseDays int) models.DeliveryZone {
	t.Helper()
	z := models.DeliveryZone{
		Name:             "Москва",
		BaseDeliveryDays: baseDays,
		Boundary:         geo.NewPolygon([2]float64{36, 55}, [2]float64{39, 55}, [2]float64{39, 56.5}, [2]float64{36, 56.5}),
	}
	require.NoError(t, e.db.Create(&z).Error)
	return z
}

// do sends a JSON request and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token)
}

type formFile struct {
	field string
	name  string
	data  []byte
}

// pngData is the smallest prefix that sniffs as image/png.
var pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

// doForm sends a multipart request and decodes the envelope.
func (e *testEnv) doForm(t *testing.T, method, path, token string, fields map[string]string, files ...formFile) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.send(t, req, token)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string) (int, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &out), string(raw))
		}
	}
	return resp.StatusCode, out
}

func discardTracker() services.Tracker {
	return services.NewTrackingMoreClient("http://127.0.0.1:0", "", "china-ems")
}

// storedMedia lists the files under the environment's media directory.
func (e *testEnv) storedMedia(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(e.mediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func (e *testEnv) deliveredOrder(t *testing.T, user models.User, number int64, products ...models.Product) models.Order {
	t.Helper()
	order := models.Order{UserID: user.ID, OrderNumber: number, Currency: "RUB", Status: models.OrderStatusDelivered, TrackingNumber: "TRK"}
	for _, p := range products {
		order.Items = append(order.Items, models.OrderItem{ProductID: p.ID, Quantity: 1, Price: p.Price})
		order.Total += p.Price
	}
	require.NoError(t, e.db.Create(&order).Error)
	return order
}
