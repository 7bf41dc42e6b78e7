// README: Route, detour preferences, and ranked candidate types.
package discovery

import (
	"time"

	"waycart/internal/modules/vendor"
	"waycart/internal/types"
)

// Route is the trip the customer is about to take. Immutable once attached
// to an order.
type Route struct {
	Start         types.Coordinate `json:"start"`
	End           types.Coordinate `json:"end"`
	DepartureTime time.Time        `json:"departure_time"`
}

func (r Route) Valid() bool {
	return r.Start.Valid() && r.End.Valid()
}

// Preferences drive candidate filtering. SingleVendorPreferred is a ranking
// hint: full-range (grocery-enabled) vendors win cost ties.
type Preferences struct {
	MaxDetourKm           float64           `json:"max_detour_km"`
	Categories            []vendor.Category `json:"categories,omitempty"`
	SingleVendorPreferred bool              `json:"single_vendor_preferred,omitempty"`
}

// Candidate is a vendor that qualifies for a route, with its detour cost.
type Candidate struct {
	Vendor   vendor.Vendor `json:"vendor"`
	DetourKm float64       `json:"detour_km"`
}
