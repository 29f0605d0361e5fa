package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

const MaxReviewMedia = 10

// ReviewInput is a new review before it is stored.
type ReviewInput struct {
	UserID    uuid.UUID `json:"-"`
	ProductID uuid.UUID `json:"-"`
	Text      string    `validate:"max=5000"`
	Rating    int       `validate:"required,min=1,max=5"`
	MediaURLs []string
}

// ReviewStats summarises the reviews of one product.
type ReviewStats struct {
	ReviewCount   int64   `json:"review_count"`
	AverageRating float64 `json:"average_rating"`
}

// ReviewView is a review with its author.
type ReviewView struct {
	models.Review
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar"`
}

// Reviews stores product reviews. Only customers with a delivered order
// containing the product may review it, once.
type Reviews struct {
	db *gorm.DB
}

func NewReviews(db *gorm.DB) *Reviews {
	return &Reviews{db: db}
}

// HasDelivered reports whether the user has a delivered order containing
// the product.
func (r *Reviews) HasDelivered(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Joins("JOIN orders o ON o.id = order_items.order_id").
		Where("o.user_id = ? AND order_items.product_id = ? AND o.status = ?", userID, productID, models.OrderStatusDelivered).
		Count(&count).Error
	return count > 0, err
}

// Add stores a review after checking eligibility.
func (r *Reviews) Add(ctx context.Context, in ReviewInput) (*models.Review, error) {
	if len(in.MediaURLs) > MaxReviewMedia {
		return nil, ErrTooManyMedia
	}

	var product models.Product
	err := r.db.WithContext(ctx).Select("id").First(&product, "id = ?", in.ProductID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	ok, err := r.HasDelivered(ctx, in.UserID, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReviewNotAllowed
	}

	var existing int64
	if err := r.db.WithContext(ctx).Model(&models.Review{}).
		Where("user_id = ? AND product_id = ?", in.UserID, in.ProductID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyReviewed
	}

	review := models.Review{
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Text:      in.Text,
		Rating:    in.Rating,
		MediaURLs: in.MediaURLs,
	}
	if review.MediaURLs == nil {
		review.MediaURLs = []string{}
	}
	if err := r.db.WithContext(ctx).Create(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// List returns reviews of a product, newest first.
func (r *Reviews) List(ctx context.Context, productID uuid.UUID) ([]ReviewView, error) {
	var reviews []models.Review
	if err := r.db.WithContext(ctx).Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}

	out := make([]ReviewView, 0, len(reviews))
	for _, rv := range reviews {
		view := ReviewView{Review: rv}
		if rv.User != nil {
			view.UserName = rv.User.Name
			view.UserAvatar = rv.User.Avatar
			view.Review.User = nil
		}
		out = append(out, view)
	}
	return out, nil
}

// Stats returns the count and mean rating of a product's reviews.
func (r *Reviews) Stats(ctx context.Context, productID uuid.UUID) (ReviewStats, error) {
	var stats ReviewStats
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS review_count, COALESCE(AVG(rating), 0) AS average_rating").
		Where("product_id = ?", productID).
		Scan(&stats).Error
	return stats, err
}

// SubmittedReview is a review shown in the author's profile.
type SubmittedReview struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	Text         string    `json:"text"`
	Rating       int       `json:"rating"`
	MediaURLs    []string  `json:"media_urls"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingReview is an ordered product the user has not reviewed yet.
type PendingReview struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	ProductImage string    `json:"product_image"`
	PurchaseDate time.Time `json:"purchase_date"`
	OrderStatus  string    `json:"order_status"`
	CanReview    bool      `json:"can_review"`
}

// History splits the user's products into reviewed and still reviewable.
func (r *Reviews) History(ctx context.Context, userID uuid.UUID) ([]SubmittedReview, []PendingReview, error) {
	var reviews []models.Review
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, nil, err
	}

	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, nil, err
	}

	titles := map[uuid.UUID]string{}
	for _, o := range orders {
		for _, it := range o.Items {
			if it.Product != nil {
				titles[it.ProductID] = it.Product.Title
			}
		}
	}

	reviewed := make(map[uuid.UUID]bool, len(reviews))
	submitted := make([]SubmittedReview, 0, len(reviews))
	for _, rv := range reviews {
		reviewed[rv.ProductID] = true
		submitted = append(submitted, SubmittedReview{
			ID:           rv.ID,
			ProductID:    rv.ProductID,
			ProductTitle: titles[rv.ProductID],
			Text:         rv.Text,
			Rating:       rv.Rating,
			MediaURLs:    rv.MediaURLs,
			CreatedAt:    rv.CreatedAt,
		})
	}

	delivered := map[uuid.UUID]bool{}
	for _, o := range orders {
		if o.Status != models.OrderStatusDelivered {
			continue
		}
		for _, it := range o.Items {
			delivered[it.ProductID] = true
		}
	}

	seen := map[uuid.UUID]bool{}
	pending := []PendingReview{}
	for _, o := range orders {
		for _, it := range o.Items {
			if reviewed[it.ProductID] || seen[it.ProductID] {
				continue
			}
			seen[it.ProductID] = true
			p := PendingReview{
				ProductID:    it.ProductID,
				PurchaseDate: o.CreatedAt,
				OrderStatus:  o.Status,
				CanReview:    delivered[it.ProductID],
			}
			if it.Product != nil {
				p.ProductTitle = it.Product.Title
				if len(it.Product.Images) > 0 {
					p.ProductImage = it.Product.Images[0]
				}
			}
			pending = append(pending, p)
		}
	}
	return submitted, pending, nil
}
