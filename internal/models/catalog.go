package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Category struct {
	BaseModel
	Name  string `json:"name"`
	Slug  string `gorm:"uniqueIndex" json:"slug"`
	Image string `json:"image"`
}

// CategoryRef is the category snapshot embedded in each product row.
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Product struct {
	BaseModel
	Title       string         `gorm:"index" json:"title"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Category    CategoryRef    `gorm:"type:jsonb;serializer:json" json:"category"`
	CategoryID  uuid.UUID      `gorm:"type:uuid;index" json:"-"`
	Quantity    int            `json:"quantity"`
	Purchases   int            `json:"purchases"`
	Images      pq.StringArray `gorm:"type:text[]" json:"images"`
	Discounts   []Discount     `gorm:"many2many:product_discounts;" json:"-"`
}

const (
	DiscountRegular = "REGULAR"
	DiscountEvent11 = "EVENT_11_11"
)

type Discount struct {
	BaseModel
	Type       string    `gorm:"index" json:"type"`
	Percentage float64   `json:"percentage"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

type Review struct {
	BaseModel
	UserID    uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	User      *User          `json:"user,omitempty"`
	ProductID uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Text      string         `json:"text"`
	Rating    int            `json:"rating"`
	MediaURLs pq.StringArray `gorm:"type:text[]" json:"media_urls"`
}

// SearchHistory counts how often a product was picked from search results.
type SearchHistory struct {
	ProductID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	SearchCount  int       `json:"search_count"`
	LastSearched time.Time `json:"last_searched"`
}

type Favorite struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	DateAdded time.Time `json:"date_added"`
}
