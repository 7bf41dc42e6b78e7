// README: Trip handlers: vendor discovery along a planned route.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waycart/internal/modules/discovery"
)

type TripHandler struct {
	discovery *discovery.Service
}

func NewTripHandler(svc *discovery.Service) *TripHandler {
	return &TripHandler{discovery: svc}
}

type discoverReq struct {
	Route routeReq `json:"route"`
	Prefs prefsReq `json:"preferences"`
}

func (h *TripHandler) Discover(c *gin.Context) {
	var req discoverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	candidates, err := h.discovery.FindCandidates(c.Request.Context(), discovery.Route{
		Start:         req.Route.Start,
		End:           req.Route.End,
		DepartureTime: req.Route.DepartureTime,
	}, req.Prefs.toPreferences())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if candidates == nil {
		candidates = []discovery.Candidate{}
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": candidates})
}
