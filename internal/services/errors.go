package services

import "errors"

var (
	ErrZoneNotFound        = errors.New("delivery zone not found")
	ErrPointNotFound       = errors.New("delivery point not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidDeliveryMode = errors.New("invalid delivery mode")
	ErrInvalidOrderStatus  = errors.New("invalid order status")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrFavoritesLimit      = errors.New("favorites limit reached")
	ErrAlreadyReviewed     = errors.New("product already reviewed")
	ErrReviewNotAllowed    = errors.New("product must be delivered before it can be reviewed")
	ErrTrackingNotFound    = errors.New("tracking not found")
	ErrTrackingDisabled    = errors.New("tracking provider is not configured")
	ErrTooManyMedia        = errors.New("too many media files")
)

// Outcome is the result of a best-effort call. A soft failure carries the
// error for logging; callers never propagate it.
type Outcome struct {
	Err error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func softFailure(err error) Outcome { return Outcome{Err: err} }
