package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/example/storefront/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	apiBase     string
	botToken    string
	adminChatID string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log *slog.Logger) *TelegramService {
	return &TelegramService{
		log:         log.With("component", "telegram"),
		apiBase:     telegramAPIBase,
		botToken:    botToken,
		adminChatID: adminChatID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the service at a different Bot API host.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		s.log.Warn("bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.log.Warn("send message failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("unexpected status", "status", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		s.log.Warn("admin chat id not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// OrderNotification contains order data for Telegram notification.
type OrderNotification struct {
	OrderID        string
	OrderNumber    string
	Items          []OrderItemNotification
	TotalAmount    float64
	Currency       string
	DeliveryMode   string
	TrackingNumber string
	Status         string
}

// OrderItemNotification contains order item data.
type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
	Currency string
}

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders an amount with thousand separators, two decimals and
// the currency code.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = defaultCurrency
	}
	return pricePrinter.Sprintf("%.2f %s", amount, currency)
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		currency := item.Currency
		if currency == "" {
			currency = order.Currency
		}
		itemTotal := LineTotal(item.Price, item.Quantity).InexactFloat64()
		fmt.Fprintf(&itemsList, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.Price, currency),
			FormatPrice(itemTotal, currency),
		)
	}

	deliveryText := "Самовывоз"
	if order.DeliveryMode == models.DeliveryModeCourier {
		deliveryText = "Курьер"
	}

	text := fmt.Sprintf(`<b>🛒 НОВЫЙ ЗАКАЗ!</b>
<b>📋 Заказ:</b> #%s
<b>📦 Товары:</b>
%s
<b>💰 Итого:</b> %s
<b>🚚 Доставка:</b> %s
<b>🔎 Трек-номер:</b> %s
<b>📍 Статус:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderNumber,
		itemsList.String(),
		FormatPrice(order.TotalAmount, order.Currency),
		deliveryText,
		order.TrackingNumber,
		StatusNote(order.Status),
	)

	return s.SendToAdmin(strings.TrimSpace(text))
}
