package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/storefront/internal/models"
)

// ShipmentItem is one line of a shipment summary.
type ShipmentItem struct {
	Title    string
	Quantity int
}

// Customer is the contact attached to a shipment.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// ShipmentRequest registers a shipment with the carrier tracking provider.
type ShipmentRequest struct {
	TrackingNumber string
	OrderID        string
	OrderNumber    int64
	DeliverySpeed  string
	PostalCode     string
	Items          []ShipmentItem
	Customer       Customer
}

// TrackingInfo is the provider's view of a shipment.
type TrackingInfo struct {
	TrackingNumber string          `json:"tracking_number"`
	CourierCode    string          `json:"courier_code"`
	DeliveryStatus string          `json:"delivery_status"`
	Title          string          `json:"title"`
	Raw            json.RawMessage `json:"-"`
}

// Tracker is the carrier tracking provider.
type Tracker interface {
	CourierCode() string
	Create(ctx context.Context, req ShipmentRequest) (*TrackingInfo, error)
	Get(ctx context.Context, trackingNumber string) (*TrackingInfo, error)
	UpdateStatus(ctx context.Context, trackingNumber, status string) Outcome
}

// MapTrackingStatus translates a provider delivery status onto the order
// status vocabulary. Unknown values map to "new".
func MapTrackingStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending":
		return models.OrderStatusNew
	case "in_transit", "pickup":
		return models.OrderStatusInTransit
	case "delivered":
		return models.OrderStatusDelivered
	case "expired", "undelivered":
		return models.OrderStatusExpired
	case "cancelled":
		return models.OrderStatusCancelled
	default:
		return models.OrderStatusNew
	}
}

// StatusNote is the human readable note sent with a status change.
func StatusNote(status string) string {
	switch status {
	case models.OrderStatusNew:
		return "Заказ создан"
	case models.OrderStatusInTransit:
		return "Заказ в пути"
	case models.OrderStatusDelivered:
		return "Заказ доставлен"
	case models.OrderStatusCancelled:
		return "Заказ отменен клиентом"
	case models.OrderStatusExpired:
		return "Срок заказа истек"
	default:
		return "Статус обновлен"
	}
}

// TrackingMoreClient talks to the TrackingMore v4 REST API.
type TrackingMoreClient struct {
	baseURL     string
	apiKey      string
	courierCode string
	httpClient  *http.Client
	now         func() time.Time
}

func NewTrackingMoreClient(baseURL, apiKey, courierCode string) *TrackingMoreClient {
	return &TrackingMoreClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		courierCode: courierCode,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		now:         time.Now,
	}
}

func (c *TrackingMoreClient) CourierCode() string { return c.courierCode }

type trackingMoreEnvelope struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type trackingMoreCreate struct {
	TrackingNumber         string `json:"tracking_number"`
	CourierCode            string `json:"courier_code"`
	OrderNumber            string `json:"order_number,omitempty"`
	OrderID                string `json:"order_id,omitempty"`
	OrderDate              string `json:"order_date,omitempty"`
	CustomerName           string `json:"customer_name"`
	CustomerEmail          string `json:"customer_email,omitempty"`
	CustomerSMS            string `json:"customer_sms,omitempty"`
	Title                  string `json:"title"`
	DestinationCountryISO2 string `json:"destination_country_iso2"`
	OriginCountryISO2      string `json:"origin_country_iso2"`
	LogisticsChannel       string `json:"logistics_channel,omitempty"`
	RecipientPostcode      string `json:"recipient_postcode,omitempty"`
	Language               string `json:"language,omitempty"`
	Note                   string `json:"note,omitempty"`
}

// Create registers a shipment. Errors are returned; the caller decides
// whether they are fatal.
func (c *TrackingMoreClient) Create(ctx context.Context, req ShipmentRequest) (*TrackingInfo, error) {
	if c.apiKey == "" {
		return nil, ErrTrackingDisabled
	}

	summary := shipmentSummary(req.Items)
	customer := req.Customer.Name
	if customer == "" {
		customer = "Customer"
	}
	channel := "Обычная доставка"
	if req.DeliverySpeed == models.DeliverySpeedFast {
		channel = "Быстрая доставка"
	}

	title := fmt.Sprintf("Заказ #%d", req.OrderNumber)
	if summary != "" {
		title += ": " + summary
	}

	payload := trackingMoreCreate{
		TrackingNumber:         req.TrackingNumber,
		CourierCode:            c.courierCode,
		OrderNumber:            fmt.Sprintf("%d", req.OrderNumber),
		OrderID:                req.OrderID,
		OrderDate:              c.now().UTC().Format(time.RFC3339),
		CustomerName:           customer,
		CustomerEmail:          req.Customer.Email,
		CustomerSMS:            req.Customer.Phone,
		Title:                  title,
		DestinationCountryISO2: "RU",
		OriginCountryISO2:      "CN",
		LogisticsChannel:       channel,
		RecipientPostcode:      req.PostalCode,
		Language:               "ru",
		Note:                   "Товары: " + summary,
	}

	var info TrackingInfo
	if err := c.do(ctx, http.MethodPost, "/trackings/create", nil, payload, &info); err != nil {
		return nil, fmt.Errorf("create tracking %s: %w", req.TrackingNumber, err)
	}
	if info.TrackingNumber == "" {
		info.TrackingNumber = req.TrackingNumber
	}
	return &info, nil
}

// Get fetches a shipment; ErrTrackingNotFound when the provider does not
// know the number.
func (c *TrackingMoreClient) Get(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	if c.apiKey == "" {
		return nil, ErrTrackingDisabled
	}

	query := url.Values{}
	query.Set("tracking_numbers", trackingNumber)
	query.Set("courier_code", c.courierCode)

	var items []TrackingInfo
	if err := c.do(ctx, http.MethodGet, "/trackings/get", query, nil, &items); err != nil {
		return nil, fmt.Errorf("get tracking %s: %w", trackingNumber, err)
	}
	if len(items) == 0 {
		return nil, ErrTrackingNotFound
	}
	return &items[0], nil
}

// UpdateStatus annotates the shipment with a note for the new order status.
// It never returns an error; failures come back as a soft Outcome.
func (c *TrackingMoreClient) UpdateStatus(ctx context.Context, trackingNumber, status string) Outcome {
	info, err := c.Get(ctx, trackingNumber)
	if err != nil {
		return softFailure(err)
	}

	note := StatusNote(status)
	title := note
	if info.Title != "" {
		title = info.Title + " - " + note
	}

	body := map[string]string{
		"courier_code": c.courierCode,
		"note":         fmt.Sprintf("%s (%s)", note, c.now().Format("02.01.2006 15:04")),
		"title":        title,
	}
	path := "/trackings/modify-courier/" + url.PathEscape(trackingNumber)
	if err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return softFailure(fmt.Errorf("modify tracking %s: %w", trackingNumber, err))
	}
	return Outcome{}
}

func (c *TrackingMoreClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tracking-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrTrackingNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var env trackingMoreEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if info, ok := out.(*TrackingInfo); ok {
		info.Raw = env.Data
	}
	return nil
}

func shipmentSummary(items []ShipmentItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s (%d шт.)", it.Title, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

// IsTrackingNotFound reports whether err means the provider has no record.
func IsTrackingNotFound(err error) bool {
	return errors.Is(err, ErrTrackingNotFound)
}
