package routes

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// Deps are the long-lived collaborators shared by the handlers.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Cache    *cache.Cache
	Tracker  services.Tracker
	Notifier services.OrderNotifier
	Media    services.MediaStore
	Rates    *services.CurrencyRates
	Log      *slog.Logger
}

// Register wires up all HTTP routes under /api.
func Register(app *fiber.App, d Deps) error {
	reports, err := services.NewDeliveryReports(d.DB)
	if err != nil {
		return err
	}

	catalog := services.NewCatalog(d.DB)
	checkout := services.NewCheckoutService(d.DB, d.Tracker, d.Notifier, d.Log)
	orders := services.NewOrderService(d.DB, d.Tracker, d.Log)

	authHandler := handlers.NewAuthHandler(d.DB, d.Config)
	profileHandler := handlers.NewProfileHandler(d.DB, d.Media, orders, d.Log)
	catalogHandler := handlers.NewCatalogHandler(d.DB, catalog)
	productHandler := handlers.NewProductHandler(d.DB, catalog, d.Media, d.Cache, d.Log)
	orderHandler := handlers.NewOrderHandler(checkout, orders)
	deliveryHandler := handlers.NewDeliveryHandler(d.DB, reports, d.Cache, d.Log)
	favoriteHandler := handlers.NewFavoriteHandler(services.NewFavorites(d.DB))
	subscriptionHandler := handlers.NewSubscriptionHandler(d.DB)
	currencyHandler := handlers.NewCurrencyHandler(d.Rates, d.Log)
	adminHandler := handlers.NewAdminHandler(d.DB)

	requireAuth := middleware.AuthMiddleware(d.Config.JWTSecret)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	api := app.Group("/api")

	// Auth and profile
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/profile", requireAuth, profileHandler.GetProfile)
	auth.Put("/profile", requireAuth, profileHandler.UpdateProfile)
	auth.Get("/profile/full", requireAuth, profileHandler.GetFullProfile)
	auth.Put("/profile/password", requireAuth, profileHandler.UpdatePassword)

	// Catalog
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id/products", catalogHandler.CategoryProducts)

	discount := api.Group("/discount")
	discount.Get("/regular", catalogHandler.DiscountedProducts(models.DiscountRegular))
	discount.Get("/11-11", catalogHandler.DiscountedProducts(models.DiscountEvent11))

	productHandler.RegisterProductRoutes(api.Group("/products"), requireAuth, requireAdmin)

	// Delivery
	deliveryHandler.RegisterDeliveryRoutes(api.Group("/delivery"), requireAuth, requireAdmin, orderHandler.TrackParcel)

	// Customer
	api.Get("/cart", requireAuth, profileHandler.LoadCart)
	api.Post("/cart", requireAuth, profileHandler.SaveCart)

	favorites := api.Group("/favorites", requireAuth)
	favorites.Get("/", favoriteHandler.List)
	favorites.Post("/", favoriteHandler.Add)
	favorites.Delete("/:productId", favoriteHandler.Remove)

	api.Post("/checkout", requireAuth, orderHandler.Checkout)
	api.Get("/orders/user-orders", requireAuth, orderHandler.ListUserOrders)
	api.Put("/orders/:id/status", requireAuth, requireAdmin, orderHandler.UpdateStatus)

	// Misc
	api.Post("/subscribe", subscriptionHandler.Subscribe)
	api.Get("/currency-rates",
		middleware.Cache(d.Cache, middleware.URLKey("currency:"), time.Hour),
		currencyHandler.Rates)

	// Admin dashboard
	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/users", adminHandler.ListAllUsers)

	return nil
}
