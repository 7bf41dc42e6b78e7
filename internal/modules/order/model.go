// README: Order aggregate, quote, and status definitions.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"waycart/internal/modules/discovery"
	"waycart/internal/types"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusPendingQuotes  Status = "pending_quotes"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusPickedUp       Status = "picked_up"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// AllowedTransitions represents the order state flow as code. Fulfilment
// moves strictly forward, one step at a time; cancellation is reachable from
// every non-terminal state.
var AllowedTransitions = map[Status][]Status{
	StatusPendingQuotes:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:       {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// fulfilmentStatuses are the targets a vendor may advance to. Confirmation
// happens only through selection, cancellation only through Cancel.
var fulfilmentStatuses = map[Status]struct{}{
	StatusPreparing:      {},
	StatusReadyForPickup: {},
	StatusPickedUp:       {},
	StatusCompleted:      {},
}

func FulfilmentStatus(s Status) bool {
	_, ok := fulfilmentStatuses[s]
	return ok
}

type QuoteStatus string

const (
	QuoteAccepted     QuoteStatus = "accepted"
	QuoteRejected     QuoteStatus = "rejected"
	QuoteCounterOffer QuoteStatus = "counter_offer"
)

func ValidQuoteStatus(s QuoteStatus) bool {
	switch s {
	case QuoteAccepted, QuoteRejected, QuoteCounterOffer:
		return true
	}
	return false
}

// Item is one line of the customer's shopping list. Immutable after creation.
type Item struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

// Quote is a vendor's response to an order. Exactly one per (order, vendor);
// resubmission replaces the previous one.
type Quote struct {
	OrderID            types.ID        `json:"order_id"`
	VendorID           types.ID        `json:"vendor_id"`
	Status             QuoteStatus     `json:"status"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	EstimatedReadyTime time.Time       `json:"estimated_ready_time"`
	Notes              string          `json:"notes,omitempty"`
	SubmittedAt        time.Time       `json:"submitted_at"`
}

type Order struct {
	ID                 types.ID              `json:"id"`
	UserID             types.ID              `json:"user_id"`
	Items              []Item                `json:"items"`
	Route              discovery.Route       `json:"route"`
	Prefs              discovery.Preferences `json:"preferences"`
	CandidateVendorIDs []types.ID            `json:"candidate_vendor_ids"`
	Quotes             map[types.ID]Quote    `json:"quotes"`
	SelectedVendorID   *types.ID             `json:"selected_vendor_id,omitempty"`
	Status             Status                `json:"status"`
	StatusVersion      int                   `json:"status_version"`
	QuoteDeadline      time.Time             `json:"quote_deadline"`
	CancelReason       *string               `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// IsCandidate reports whether the vendor was asked to quote this order.
func (o *Order) IsCandidate(vendorID types.ID) bool {
	for _, id := range o.CandidateVendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}
