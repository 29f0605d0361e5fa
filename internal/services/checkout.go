package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
)

const defaultCurrency = "RUB"

// CartLine is one product and quantity in a checkout request.
type CartLine struct {
	ProductID uuid.UUID `json:"id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// CheckoutRequest is everything needed to place an order.
type CheckoutRequest struct {
	UserID   uuid.UUID  `json:"-"`
	Cart     []CartLine `json:"cart" validate:"required,min=1,dive"`
	Location Location   `json:"location" validate:"required"`
	Currency string     `json:"currency" validate:"omitempty,len=3"`
}

// CheckoutResult is returned to the client after a successful checkout.
type CheckoutResult struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    int64     `json:"order_number"`
	TrackingNumber string    `json:"tracking_number"`
	CourierCode    string    `json:"courier_code"`
	Total          float64   `json:"total"`
}

// OrderNotifier receives a summary of every placed order.
type OrderNotifier interface {
	NotifyNewOrder(OrderNotification) error
}

type pricedLine struct {
	product   models.Product
	quantity  int
	unitPrice float64
}

// CheckoutService places orders.
type CheckoutService struct {
	db        *gorm.DB
	zones     *ZoneResolver
	estimator *Estimator
	tracker   Tracker
	notifier  OrderNotifier
	log       *slog.Logger
	now       func() time.Time
}

func NewCheckoutService(db *gorm.DB, tracker Tracker, notifier OrderNotifier, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		db:        db,
		zones:     NewZoneResolver(db),
		estimator: NewEstimator(db),
		tracker:   tracker,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *CheckoutService) WithClock(now func() time.Time) *CheckoutService {
	s.now = now
	return s
}

// Checkout resolves the zone, prices every line from the store, persists the
// order with its items and inventory changes in one transaction, then
// registers tracking. Nothing is written if the zone or a product cannot be
// found. Tracking failures only keep the provisional tracking number.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	zone, err := s.zones.Resolve(ctx, req.Location)
	if err != nil {
		return nil, err
	}

	now := s.now()
	lines, total, err := s.priceLines(ctx, req.Cart, now)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.product.ID)
	}
	extra, err := s.estimator.AdditionalDays(ctx, zone.ID, productIDs)
	if err != nil {
		return nil, err
	}

	location, err := json.Marshal(req.Location)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	speed := req.Location.DeliverySpeed
	if speed == "" {
		speed = models.DeliverySpeedRegular
	}

	order := models.Order{
		UserID:         req.UserID,
		Location:       location,
		Currency:       currency,
		Total:          total.InexactFloat64(),
		Status:         models.OrderStatusNew,
		ZoneID:         zone.ID,
		DeliveryMode:   req.Location.DeliveryMode,
		DeliverySpeed:  speed,
		TrackingNumber: fmt.Sprintf("TRK%d", now.UnixMilli()),
		CourierCode:    s.tracker.CourierCode(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := NextOrderNumber(tx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, l := range lines {
			days := EstimateDays(zone.BaseDeliveryDays, extra[l.product.ID], req.Location.DeliveryMode, speed)
			item := models.OrderItem{
				OrderID:              order.ID,
				ProductID:            l.product.ID,
				Quantity:             l.quantity,
				Price:                l.unitPrice,
				ExpectedDeliveryDate: ExpectedDeliveryDate(now, days),
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, item)

			if err := tx.Model(&models.Product{}).Where("id = ?", l.product.ID).Updates(map[string]any{
				"quantity":  gorm.Expr("quantity - ?", l.quantity),
				"purchases": gorm.Expr("purchases + ?", l.quantity),
			}).Error; err != nil {
				return err
			}

			marker := models.UserPurchase{UserID: req.UserID, ProductID: l.product.ID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	trackingNumber := s.registerTracking(ctx, &order, lines, req.Location)

	if s.notifier != nil {
		go s.notify(order, lines)
	}

	return &CheckoutResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TrackingNumber: trackingNumber,
		CourierCode:    order.CourierCode,
		Total:          order.Total,
	}, nil
}

func (s *CheckoutService) priceLines(ctx context.Context, cart []CartLine, now time.Time) ([]pricedLine, decimal.Decimal, error) {
	total := decimal.Zero
	lines := make([]pricedLine, 0, len(cart))

	for _, line := range cart {
		var product models.Product
		err := s.db.WithContext(ctx).Preload("Discounts").First(&product, "id = ?", line.ProductID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		if err != nil {
			return nil, decimal.Zero, err
		}

		unit := EffectivePrice(product.Price, ActiveDiscount(product.Discounts, now))
		total = total.Add(LineTotal(unit, line.Quantity))
		lines = append(lines, pricedLine{product: product, quantity: line.Quantity, unitPrice: unit})
	}
	return lines, total, nil
}

// registerTracking creates the carrier shipment and stores the final
// tracking number. It returns the tracking number the order ends up with.
func (s *CheckoutService) registerTracking(ctx context.Context, order *models.Order, lines []pricedLine, loc Location) string {
	final := fmt.Sprintf("TRK%d", order.OrderNumber)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", order.UserID).Error; err != nil {
		s.log.Warn("checkout: load customer for tracking", "order_id", order.ID, "error", err)
	}

	items := make([]ShipmentItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, ShipmentItem{Title: l.product.Title, Quantity: l.quantity})
	}

	customer := Customer{Name: user.Name, Email: user.Email}
	if user.Phone != nil {
		customer.Phone = *user.Phone
	}

	_, err := s.tracker.Create(ctx, ShipmentRequest{
		TrackingNumber: final,
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		DeliverySpeed:  order.DeliverySpeed,
		PostalCode:     loc.PostalCode,
		Items:          items,
		Customer:       customer,
	})
	if err != nil {
		s.log.Warn("checkout: tracking registration failed", "order_id", order.ID, "error", err)
		return order.TrackingNumber
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).
		Update("tracking_number", final).Error; err != nil {
		s.log.Warn("checkout: store tracking number", "order_id", order.ID, "error", err)
		return order.TrackingNumber
	}
	order.TrackingNumber = final
	return final
}

func (s *CheckoutService) notify(order models.Order, lines []pricedLine) {
	items := make([]OrderItemNotification, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItemNotification{
			Name:     l.product.Title,
			Quantity: l.quantity,
			Price:    l.unitPrice,
			Currency: order.Currency,
		})
	}

	err := s.notifier.NotifyNewOrder(OrderNotification{
		OrderID:        order.ID.String(),
		OrderNumber:    fmt.Sprintf("%d", order.OrderNumber),
		Items:          items,
		TotalAmount:    order.Total,
		Currency:       order.Currency,
		DeliveryMode:   order.DeliveryMode,
		TrackingNumber: order.TrackingNumber,
		Status:         order.Status,
	})
	if err != nil {
		s.log.Warn("checkout: admin notification failed", "order_id", order.ID, "error", err)
	}
}

// NextOrderNumber increments the order counter inside tx and returns the
// new value. The row lock taken by the update serialises concurrent
// checkouts until tx ends.
func NextOrderNumber(tx *gorm.DB) (int64, error) {
	res := tx.Model(&models.OrderSequence{}).
		Where("name = ?", database.OrderSequenceName).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("increment order number: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, errors.New("order sequence row is missing")
	}

	var seq models.OrderSequence
	if err := tx.First(&seq, "name = ?", database.OrderSequenceName).Error; err != nil {
		return 0, fmt.Errorf("read order number: %w", err)
	}
	return seq.Value, nil
}
