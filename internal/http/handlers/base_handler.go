// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"waycart/internal/modules/discovery"
	"waycart/internal/modules/order"
	"waycart/internal/modules/vendor"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, discovery.ErrBadRequest),
		errors.Is(err, vendor.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrUnknownQuote),
		errors.Is(err, order.ErrVendorNotCandidate),
		errors.Is(err, vendor.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNoVendorsAvailable),
		errors.Is(err, order.ErrAlreadySelected),
		errors.Is(err, order.ErrOrderTerminal),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrDependencyUnavailable):
		writeError(c, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
