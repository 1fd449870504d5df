package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"device-intake-backend/internal/mw"
)

// RouterOptions tunes the middleware around the API.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	ReportDir       string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	// Uploaded photos and exported reports are served statically.
	if h.photoDir != "" {
		r.Static("/media", h.photoDir)
	}
	if opts.ReportDir != "" {
		r.Static("/reports", opts.ReportDir)
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)
		api.GET("/session", h.Session)

		api.GET("/conditions", caching, h.GetConditions)

		api.GET("/orders", caching, h.ListOrders)
		api.POST("/orders", caching, h.CreateOrder)
		api.GET("/orders/check-label/:label", h.CheckLabelNumber)
		api.GET("/orders/:id", h.GetOrder)
		api.DELETE("/orders/:id", caching, h.DeleteOrder)
		api.PATCH("/orders/:id/status", caching, h.UpdateOrderStatus)
		api.PATCH("/orders/:id/draft", caching, h.MarkOrderDraft)
		api.GET("/orders/:id/export", h.ExportReport)
		api.GET("/orders/:id/devices", h.ListOrderDevices)

		api.POST("/devices", caching, h.CreateDevice)
		api.GET("/devices/search", h.SearchDevices)
		api.GET("/devices/:id", h.GetDevice)
		api.POST("/devices/:id/photos/:side", caching, h.UploadDevicePhoto)

		api.GET("/lookup-imei/:imei", h.LookupIMEI)
		api.GET("/get-imei-result/:historyId", h.IMEIResult)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
