package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
)

const MaxFavorites = 500

// FavoriteProduct is a favourited product with its current price.
type FavoriteProduct struct {
	PricedProduct
	DateAdded time.Time `json:"date_added"`
}

// Favorites manages a user's favourite products, capped at MaxFavorites.
type Favorites struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFavorites(db *gorm.DB) *Favorites {
	return &Favorites{db: db, now: time.Now}
}

// Add favourites a product. Adding one that is already present succeeds
// without counting against the cap.
func (f *Favorites) Add(ctx context.Context, userID, productID uuid.UUID) (*FavoriteProduct, error) {
	var product models.Product
	err := f.db.WithContext(ctx).Preload("Discounts").First(&product, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	var fav models.Favorite
	err = f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&fav, "user_id = ? AND product_id = ?", userID, productID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		if err := tx.Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count >= MaxFavorites {
			return ErrFavoritesLimit
		}

		fav = models.Favorite{UserID: userID, ProductID: productID, DateAdded: f.now()}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
	})
	if err != nil {
		return nil, err
	}

	return &FavoriteProduct{PricedProduct: PriceProduct(product, f.now()), DateAdded: fav.DateAdded}, nil
}

// Remove deletes a favourite; removing an absent one is not an error.
func (f *Favorites) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return f.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favorite{}).Error
}

// List pages through favourites, most recently added first.
func (f *Favorites) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]FavoriteProduct, error) {
	var favs []models.Favorite
	if err := f.db.WithContext(ctx).
		Preload("Product.Discounts").
		Where("user_id = ?", userID).
		Order("date_added DESC").
		Limit(limit).Offset(offset).
		Find(&favs).Error; err != nil {
		return nil, err
	}

	now := f.now()
	out := make([]FavoriteProduct, 0, len(favs))
	for _, fav := range favs {
		if fav.Product == nil {
			continue
		}
		out = append(out, FavoriteProduct{PricedProduct: PriceProduct(*fav.Product, now), DateAdded: fav.DateAdded})
	}
	return out, nil
}

// Count returns how many favourites the user has.
func (f *Favorites) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := f.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
