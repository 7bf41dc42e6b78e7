// README: Outbound notification event shapes.
package notify

import (
	"time"

	"waycart/internal/types"
)

type Kind string

const (
	KindQuoteRequest  Kind = "quote_request"            // to a candidate vendor
	KindQuoteReceived Kind = "quote_received"           // to the customer
	KindConfirmed     Kind = "order_confirmed"          // to the winning vendor
	KindLost          Kind = "order_fulfilled_by_other" // to losing vendors
	KindStatusChanged Kind = "order_status_changed"     // to the customer
)

// OrderSummary is the minimal order view sent to vendors with a quote
// request; items travel so the vendor can price without a follow-up call.
type OrderSummary struct {
	OrderID       types.ID   `json:"order_id"`
	ItemCount     int        `json:"item_count"`
	Items         []ItemLine `json:"items"`
	DetourKm      float64    `json:"detour_km"`
	QuoteDeadline time.Time  `json:"quote_deadline"`
}

type ItemLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

// QuoteSummary is the customer-facing view of a vendor's quote.
type QuoteSummary struct {
	VendorID           types.ID  `json:"vendor_id"`
	Status             string    `json:"status"`
	TotalPrice         string    `json:"total_price"`
	EstimatedReadyTime time.Time `json:"estimated_ready_time"`
}

// Envelope is the wire format on the notification queue.
type Envelope struct {
	Kind      Kind          `json:"kind"`
	VendorID  types.ID      `json:"vendor_id,omitempty"`
	UserID    types.ID      `json:"user_id,omitempty"`
	OrderID   types.ID      `json:"order_id"`
	Order     *OrderSummary `json:"order,omitempty"`
	Quote     *QuoteSummary `json:"quote,omitempty"`
	Status    string        `json:"status,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
