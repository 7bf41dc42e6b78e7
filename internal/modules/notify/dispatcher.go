// README: Dispatcher boundary; delivery is fire-and-forget for the core.
package notify

import (
	"context"

	"waycart/internal/types"
)

// Dispatcher is the outbound notification boundary. Implementations must
// never block order-state correctness: failures are logged, not returned.
type Dispatcher interface {
	VendorOrderRequested(ctx context.Context, vendorID types.ID, summary OrderSummary)
	CustomerQuoteReceived(ctx context.Context, userID, orderID types.ID, quote QuoteSummary)
	VendorConfirmed(ctx context.Context, vendorID, orderID types.ID)
	VendorsLost(ctx context.Context, orderID types.ID, vendorIDs []types.ID)
	OrderStatusChanged(ctx context.Context, userID, orderID types.ID, status string)
}

// Nop discards every notification. Used when no broker is configured.
type Nop struct{}

func (Nop) VendorOrderRequested(context.Context, types.ID, OrderSummary)       {}
func (Nop) CustomerQuoteReceived(context.Context, types.ID, types.ID, QuoteSummary) {}
func (Nop) VendorConfirmed(context.Context, types.ID, types.ID)                {}
func (Nop) VendorsLost(context.Context, types.ID, []types.ID)                  {}
func (Nop) OrderStatusChanged(context.Context, types.ID, types.ID, string)     {}
