// README: Order handlers: create, read, quote, select, advance, cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"waycart/internal/modules/discovery"
	"waycart/internal/modules/order"
	"waycart/internal/modules/vendor"
	"waycart/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	UserID string       `json:"user_id"`
	Items  []order.Item `json:"items"`
	Route  routeReq     `json:"route"`
	Prefs  prefsReq     `json:"preferences"`
}

type routeReq struct {
	Start         types.Coordinate `json:"start"`
	End           types.Coordinate `json:"end"`
	DepartureTime time.Time        `json:"departure_time"`
}

type prefsReq struct {
	MaxDetourKm           float64  `json:"max_detour_km"`
	Categories            []string `json:"categories"`
	SingleVendorPreferred bool     `json:"single_vendor_preferred"`
}

func (r prefsReq) toPreferences() discovery.Preferences {
	cats := make([]vendor.Category, len(r.Categories))
	for i, c := range r.Categories {
		cats[i] = vendor.Category(c)
	}
	return discovery.Preferences{
		MaxDetourKm:           r.MaxDetourKm,
		Categories:            cats,
		SingleVendorPreferred: r.SingleVendorPreferred,
	}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		UserID: types.ID(req.UserID),
		Items:  req.Items,
		Route: discovery.Route{
			Start:         req.Route.Start,
			End:           req.Route.End,
			DepartureTime: req.Route.DepartureTime,
		},
		Prefs: req.Prefs.toPreferences(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// List serves the customer history (?user_id=) and the vendor work feed
// (?vendor_id=). Exactly one of the two must be present.
func (h *OrderHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	vendorID := c.Query("vendor_id")
	if (userID == "") == (vendorID == "") {
		writeError(c, http.StatusBadRequest, "exactly one of user_id or vendor_id is required")
		return
	}

	var (
		orders []order.Order
		err    error
	)
	if userID != "" {
		orders, err = h.order.ListByUser(c.Request.Context(), types.ID(userID))
	} else {
		orders, err = h.order.ListByVendor(c.Request.Context(), types.ID(vendorID))
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

type submitQuoteReq struct {
	VendorID           string          `json:"vendor_id"`
	Status             string          `json:"status"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	EstimatedReadyTime time.Time       `json:"estimated_ready_time"`
	Notes              string          `json:"notes"`
}

func (h *OrderHandler) SubmitQuote(c *gin.Context) {
	var req submitQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.SubmitQuote(c.Request.Context(), order.SubmitQuoteCommand{
		OrderID:            types.ID(c.Param("id")),
		VendorID:           types.ID(req.VendorID),
		Status:             order.QuoteStatus(req.Status),
		TotalPrice:         req.TotalPrice,
		EstimatedReadyTime: req.EstimatedReadyTime,
		Notes:              req.Notes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "quote_recorded"})
}

type selectVendorReq struct {
	VendorID string `json:"vendor_id"`
}

func (h *OrderHandler) SelectVendor(c *gin.Context) {
	var req selectVendorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.SelectVendor(c.Request.Context(), order.SelectCommand{
		OrderID:  types.ID(c.Param("id")),
		VendorID: types.ID(req.VendorID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": string(order.StatusConfirmed)})
}

type advanceReq struct {
	VendorID string `json:"vendor_id"`
	Next     string `json:"next_status"`
}

func (h *OrderHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.AdvanceStatus(c.Request.Context(), order.AdvanceCommand{
		OrderID:  types.ID(c.Param("id")),
		VendorID: types.ID(req.VendorID),
		Next:     order.Status(req.Next),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Next})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req) // reason is optional

	err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   types.ID(c.Param("id")),
		ActorType: "customer",
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": string(order.StatusCancelled)})
}
