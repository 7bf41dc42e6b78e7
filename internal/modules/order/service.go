// README: Order service implements quote collection, selection, and fulfilment transitions.
package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"waycart/internal/modules/discovery"
	"waycart/internal/modules/notify"
	"waycart/internal/types"
)

var (
	ErrBadRequest            = errors.New("bad request")
	ErrNotFound              = errors.New("order not found")
	ErrUnknownQuote          = errors.New("no quote from this vendor")
	ErrVendorNotCandidate    = errors.New("vendor is not a candidate for this order")
	ErrOrderTerminal         = errors.New("order no longer accepts this operation")
	ErrAlreadySelected       = errors.New("another vendor was already selected")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrNoVendorsAvailable    = errors.New("no vendors available for this route")
	ErrConflict              = errors.New("order state conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// CandidateFinder is the discovery surface the order flow needs.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, route discovery.Route, prefs discovery.Preferences) ([]discovery.Candidate, error)
}

type Service struct {
	store       *Store
	finder      CandidateFinder
	dispatcher  notify.Dispatcher
	quoteWindow time.Duration
}

func NewService(store *Store, finder CandidateFinder, dispatcher notify.Dispatcher, quoteWindow time.Duration) *Service {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	if quoteWindow <= 0 {
		quoteWindow = 5 * time.Minute
	}
	return &Service{store: store, finder: finder, dispatcher: dispatcher, quoteWindow: quoteWindow}
}

type CreateCommand struct {
	UserID types.ID
	Items  []Item
	Route  discovery.Route
	Prefs  discovery.Preferences
}

type SubmitQuoteCommand struct {
	OrderID            types.ID
	VendorID           types.ID
	Status             QuoteStatus
	TotalPrice         decimal.Decimal
	EstimatedReadyTime time.Time
	Notes              string
}

type SelectCommand struct {
	OrderID  types.ID
	VendorID types.ID
}

type AdvanceCommand struct {
	OrderID  types.ID
	VendorID types.ID
	Next     Status
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string // "customer" or "system"
	Reason    string
}

// Create validates the request, discovers candidate vendors, persists the
// order in pending_quotes, and asks each candidate for a quote. An empty
// candidate set rejects the order with ErrNoVendorsAvailable; no row is
// written in that case.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	candidates, err := s.finder.FindCandidates(ctx, cmd.Route, cmd.Prefs)
	if err != nil {
		if errors.Is(err, discovery.ErrBadRequest) {
			return nil, ErrBadRequest
		}
		return nil, depWrap(err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoVendorsAvailable
	}

	now := time.Now().UTC()
	o := &Order{
		ID:            newID(),
		UserID:        cmd.UserID,
		Items:         cmd.Items,
		Route:         cmd.Route,
		Prefs:         cmd.Prefs,
		Status:        StatusPendingQuotes,
		StatusVersion: 0,
		Quotes:        map[types.ID]Quote{},
		QuoteDeadline: now.Add(s.quoteWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	o.CandidateVendorIDs = make([]types.ID, len(candidates))
	for i, c := range candidates {
		o.CandidateVendorIDs[i] = c.Vendor.ID
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, depWrap(err)
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPendingQuotes,
		ActorType:  "customer",
		ActorID:    &cmd.UserID,
		CreatedAt:  now,
	})

	summaryItems := make([]notify.ItemLine, len(o.Items))
	for i, it := range o.Items {
		summaryItems[i] = notify.ItemLine{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit}
	}
	for _, c := range candidates {
		s.dispatcher.VendorOrderRequested(ctx, c.Vendor.ID, notify.OrderSummary{
			OrderID:       o.ID,
			ItemCount:     len(o.Items),
			Items:         summaryItems,
			DetourKm:      c.DetourKm,
			QuoteDeadline: o.QuoteDeadline,
		})
	}
	return o, nil
}

// SubmitQuote records a vendor's response. Idempotent per vendor: a
// resubmission replaces the stored quote, never duplicates it. Quotes are
// accepted only while the order is pending_quotes.
func (s *Service) SubmitQuote(ctx context.Context, cmd SubmitQuoteCommand) error {
	if cmd.OrderID == "" || cmd.VendorID == "" || !ValidQuoteStatus(cmd.Status) {
		return ErrBadRequest
	}
	if cmd.TotalPrice.IsNegative() {
		return ErrBadRequest
	}

	q := &Quote{
		OrderID:            cmd.OrderID,
		VendorID:           cmd.VendorID,
		Status:             cmd.Status,
		TotalPrice:         cmd.TotalPrice,
		EstimatedReadyTime: cmd.EstimatedReadyTime,
		Notes:              cmd.Notes,
		SubmittedAt:        time.Now().UTC(),
	}
	userID, err := s.store.SubmitQuote(ctx, q)
	if err != nil {
		return depWrap(err)
	}

	s.dispatcher.CustomerQuoteReceived(ctx, userID, cmd.OrderID, notify.QuoteSummary{
		VendorID:           cmd.VendorID,
		Status:             string(cmd.Status),
		TotalPrice:         cmd.TotalPrice.StringFixed(2),
		EstimatedReadyTime: cmd.EstimatedReadyTime,
	})
	return nil
}

// SelectVendor commits the customer to one vendor's quote. At most one
// selection ever succeeds per order; a retry with the winning vendor is a
// no-op success.
func (s *Service) SelectVendor(ctx context.Context, cmd SelectCommand) error {
	if cmd.OrderID == "" || cmd.VendorID == "" {
		return ErrBadRequest
	}

	ok, err := s.store.SelectVendor(ctx, cmd.OrderID, cmd.VendorID)
	if err != nil {
		return depWrap(err)
	}
	if !ok {
		return s.classifySelectFailure(ctx, cmd)
	}

	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    cmd.OrderID,
		FromStatus: StatusPendingQuotes,
		ToStatus:   StatusConfirmed,
		ActorType:  "customer",
		ActorID:    nil,
		CreatedAt:  time.Now().UTC(),
	})

	// Losing vendors keep their quotes on record but hear the order closed.
	if o, err := s.store.Get(ctx, cmd.OrderID); err == nil {
		s.dispatcher.VendorConfirmed(ctx, cmd.VendorID, cmd.OrderID)
		var losers []types.ID
		for vid := range o.Quotes {
			if vid != cmd.VendorID {
				losers = append(losers, vid)
			}
		}
		if len(losers) > 0 {
			s.dispatcher.VendorsLost(ctx, cmd.OrderID, losers)
		}
	}
	return nil
}

func (s *Service) classifySelectFailure(ctx context.Context, cmd SelectCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return depWrap(err)
	}
	if o.SelectedVendorID != nil && *o.SelectedVendorID == cmd.VendorID {
		return nil // idempotent retry with the winner
	}
	if o.Status == StatusCancelled {
		return ErrOrderTerminal
	}
	if _, has := o.Quotes[cmd.VendorID]; !has {
		return ErrUnknownQuote
	}
	if o.SelectedVendorID != nil {
		return ErrAlreadySelected
	}
	if Terminal(o.Status) {
		return ErrOrderTerminal
	}
	return ErrConflict
}

// AdvanceStatus moves a confirmed order one step along the fulfilment
// sequence. Only the selected vendor may advance, and never by skipping.
func (s *Service) AdvanceStatus(ctx context.Context, cmd AdvanceCommand) error {
	if cmd.OrderID == "" || cmd.VendorID == "" {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return depWrap(err)
	}
	if Terminal(o.Status) {
		return ErrOrderTerminal
	}
	if !FulfilmentStatus(cmd.Next) {
		return ErrInvalidTransition
	}
	if o.SelectedVendorID == nil || *o.SelectedVendorID != cmd.VendorID {
		return ErrInvalidTransition
	}
	if !CanTransition(o.Status, cmd.Next) {
		return ErrInvalidTransition
	}

	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.Next, o.StatusVersion)
	if err != nil {
		return depWrap(err)
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   cmd.Next,
		ActorType:  "vendor",
		ActorID:    &cmd.VendorID,
		CreatedAt:  time.Now().UTC(),
	})
	s.dispatcher.OrderStatusChanged(ctx, o.UserID, o.ID, string(cmd.Next))
	return nil
}

// Cancel preempts any non-terminal order. After it succeeds, every late
// quote, selection, or advance observes ErrOrderTerminal.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if cmd.OrderID == "" {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return depWrap(err)
	}
	if Terminal(o.Status) {
		return ErrOrderTerminal
	}

	ok, err := s.store.Cancel(ctx, cmd.OrderID, cmd.Reason)
	if err != nil {
		return depWrap(err)
	}
	if !ok {
		// Raced with a concurrent transition; the order either became
		// terminal or moved on. Re-read to report the right conflict.
		cur, err := s.store.Get(ctx, cmd.OrderID)
		if err != nil {
			return depWrap(err)
		}
		if Terminal(cur.Status) {
			return ErrOrderTerminal
		}
		return ErrConflict
	}

	actorType := cmd.ActorType
	if actorType == "" {
		actorType = "customer"
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusCancelled,
		ActorType:  actorType,
		CreatedAt:  time.Now().UTC(),
	})
	s.dispatcher.OrderStatusChanged(ctx, o.UserID, o.ID, string(StatusCancelled))
	if o.SelectedVendorID != nil {
		s.dispatcher.VendorsLost(ctx, o.ID, []types.ID{*o.SelectedVendorID})
	} else if o.Status == StatusPendingQuotes {
		s.dispatcher.VendorsLost(ctx, o.ID, o.CandidateVendorIDs)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, depWrap(err)
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]Order, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, depWrap(err)
	}
	return out, nil
}

func (s *Service) ListByVendor(ctx context.Context, vendorID types.ID) ([]Order, error) {
	if vendorID == "" {
		return nil, ErrBadRequest
	}
	out, err := s.store.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, depWrap(err)
	}
	return out, nil
}

func validateCreate(cmd CreateCommand) error {
	if cmd.UserID == "" || len(cmd.Items) == 0 {
		return ErrBadRequest
	}
	for _, it := range cmd.Items {
		if it.Name == "" || it.Quantity <= 0 {
			return ErrBadRequest
		}
	}
	if !cmd.Route.Valid() || cmd.Prefs.MaxDetourKm <= 0 {
		return ErrBadRequest
	}
	return nil
}

// depWrap keeps domain sentinels as-is and marks everything else (pool
// exhaustion, network, SQL failures) as a dependency problem.
func depWrap(err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrOrderTerminal),
		errors.Is(err, ErrVendorNotCandidate):
		return err
	}
	return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
