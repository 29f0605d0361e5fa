package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

// DiscountView is the discount as presented alongside a product.
type DiscountView struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Percentage float64   `json:"percentage"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// PricedProduct is a product with its currently effective price.
type PricedProduct struct {
	models.Product
	AvgRating  float64       `json:"avg_rating"`
	FinalPrice float64       `json:"final_price"`
	Discount   *DiscountView `json:"discount"`
}

// DiscountActive reports whether now falls inside [start, end], both ends
// inclusive. Every code path that decides whether a discount applies goes
// through here.
func DiscountActive(d models.Discount, now time.Time) bool {
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return false
	}
	return !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// ActiveDiscount returns the first discount active at now, or nil.
func ActiveDiscount(discounts []models.Discount, now time.Time) *models.Discount {
	for i := range discounts {
		if DiscountActive(discounts[i], now) {
			return &discounts[i]
		}
	}
	return nil
}

// EffectivePrice applies the discount percentage to price, rounded to cents.
func EffectivePrice(price float64, discount *models.Discount) float64 {
	p := decimal.NewFromFloat(price)
	if discount == nil {
		return p.Round(2).InexactFloat64()
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount.Percentage).Div(hundred))
	return p.Mul(factor).Round(2).InexactFloat64()
}

// PriceProduct resolves the active discount of a product loaded with its
// Discounts association.
func PriceProduct(p models.Product, now time.Time) PricedProduct {
	active := ActiveDiscount(p.Discounts, now)
	out := PricedProduct{
		Product:    p,
		FinalPrice: EffectivePrice(p.Price, active),
	}
	if active != nil {
		out.Discount = &DiscountView{
			ID:         active.ID.String(),
			Type:       active.Type,
			Percentage: active.Percentage,
			StartDate:  active.StartDate,
			EndDate:    active.EndDate,
		}
	}
	return out
}

// PriceProducts prices a slice of products at the same instant.
func PriceProducts(products []models.Product, now time.Time) []PricedProduct {
	out := make([]PricedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, PriceProduct(p, now))
	}
	return out
}

// LineTotal is unit price times quantity, rounded to cents.
func LineTotal(unitPrice float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
