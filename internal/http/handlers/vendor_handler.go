// README: Vendor handlers: nearby lookup + admin upsert/activation.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"waycart/internal/modules/vendor"
	"waycart/internal/types"
)

type VendorHandler struct {
	vendors *vendor.Service
}

func NewVendorHandler(svc *vendor.Service) *VendorHandler {
	return &VendorHandler{vendors: svc}
}

// Nearby serves GET /api/vendors/nearby?lat=&lng=&radius_km=&categories=a,b
func (h *VendorHandler) Nearby(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radiusKm := 5.0
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radiusKm = r
	}
	var categories []vendor.Category
	if raw := c.Query("categories"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			categories = append(categories, vendor.Category(strings.TrimSpace(part)))
		}
	}

	found, err := h.vendors.FindWithinRadius(c.Request.Context(), types.Coordinate{Lat: lat, Lng: lng}, radiusKm, categories)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if found == nil {
		found = []vendor.Vendor{}
	}
	writeJSON(c, http.StatusOK, gin.H{"vendors": found})
}

type upsertVendorReq struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Location       *types.Coordinate `json:"location"`
	IsActive       bool              `json:"is_active"`
	Categories     []string          `json:"categories"`
	GroceryEnabled bool              `json:"grocery_enabled"`
	Address        string            `json:"address"`
	Phone          string            `json:"phone"`
	Rating         float64           `json:"rating"`
}

func (h *VendorHandler) Upsert(c *gin.Context) {
	var req upsertVendorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cats := make([]vendor.Category, len(req.Categories))
	for i, raw := range req.Categories {
		cats[i] = vendor.Category(raw)
	}
	now := time.Now().UTC()
	v := &vendor.Vendor{
		ID:             types.ID(req.ID),
		Name:           req.Name,
		Location:       req.Location,
		IsActive:       req.IsActive,
		Categories:     cats,
		GroceryEnabled: req.GroceryEnabled,
		Address:        req.Address,
		Phone:          req.Phone,
		Rating:         req.Rating,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.vendors.Upsert(c.Request.Context(), v); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

type setActiveReq struct {
	Active bool `json:"active"`
}

func (h *VendorHandler) SetActive(c *gin.Context) {
	var req setActiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.vendors.SetActive(c.Request.Context(), types.ID(c.Param("id")), req.Active); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "active": req.Active})
}
