// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"waycart/internal/http/handlers"
	"waycart/internal/http/middleware"
	"waycart/internal/modules/discovery"
	"waycart/internal/modules/order"
	"waycart/internal/modules/vendor"
)

func NewRouter(
	log *zap.Logger,
	orderService *order.Service,
	discoveryService *discovery.Service,
	vendorService *vendor.Service,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	orderHandler := handlers.NewOrderHandler(orderService)
	r.POST("/api/orders", orderHandler.Create)
	r.GET("/api/orders", orderHandler.List)
	r.GET("/api/orders/:id", orderHandler.Get)
	r.POST("/api/orders/:id/quotes", orderHandler.SubmitQuote)
	r.POST("/api/orders/:id/select", orderHandler.SelectVendor)
	r.POST("/api/orders/:id/advance", orderHandler.Advance)
	r.POST("/api/orders/:id/cancel", orderHandler.Cancel)

	tripHandler := handlers.NewTripHandler(discoveryService)
	r.POST("/api/trips/discover", tripHandler.Discover)

	vendorHandler := handlers.NewVendorHandler(vendorService)
	r.GET("/api/vendors/nearby", vendorHandler.Nearby)
	r.POST("/api/admin/vendors", vendorHandler.Upsert)
	r.POST("/api/admin/vendors/:id/activate", vendorHandler.SetActive)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
