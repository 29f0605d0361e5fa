package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an authenticated customer.
type User struct {
	BaseModel
	Name         string  `json:"name"`
	Email        string  `gorm:"uniqueIndex" json:"email"`
	Phone        *string `gorm:"uniqueIndex" json:"phone"`
	Avatar       string  `json:"avatar"`
	Role         string  `json:"role"`
	PasswordHash string  `json:"-"`
}

// UserCart is the persisted cart document, one per user.
type UserCart struct {
	UserID    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	CartData  json.RawMessage `gorm:"type:jsonb" json:"cart_data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserPurchase marks that a user has checked out a product at least once.
type UserPurchase struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscriber is a newsletter subscription.
type Subscriber struct {
	BaseModel
	Email string `gorm:"uniqueIndex" json:"email"`
}
