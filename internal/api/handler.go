package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"device-intake-backend/internal/auth"
	"device-intake-backend/internal/imei"
	"device-intake-backend/internal/notification"
	"device-intake-backend/internal/report"
	"device-intake-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	imei     *imei.Service
	reports  *report.Builder
	pool     *notification.WorkerPool
	sessions *auth.Holder
	photoDir string
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, imeiSvc *imei.Service, reports *report.Builder, pool *notification.WorkerPool, sessions *auth.Holder, photoDir string, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		imei:     imeiSvc,
		reports:  reports,
		pool:     pool,
		sessions: sessions,
		photoDir: photoDir,
		webpush:  webpushOptions,
	}
}
