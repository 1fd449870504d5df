package workflow

import (
	"context"
	"fmt"
	"strings"

	"device-intake-backend/internal/model"
)

// CreateOrderRequest carries the fields of the New Inspection form.
type CreateOrderRequest struct {
	CustomerName  string `json:"customerName"`
	LabelNumber   string `json:"labelNumber"`
	InspectorID   string `json:"inspectorId"`
	InspectorName string `json:"inspectorName"`
	SavedAsDraft  bool   `json:"savedAsDraft"`
}

// CreateDeviceRequest carries a Station 1 submission.
type CreateDeviceRequest struct {
	OrderID       string   `json:"orderId"`
	IMEI          string   `json:"imei"`
	SerialNumber  string   `json:"serialNumber"`
	Brand         string   `json:"brand"`
	Model         string   `json:"model"`
	Conditions    []string `json:"conditions"`
	InspectorName string   `json:"inspectorName"`
}

// DeviceIdentity is the outcome of an IMEI lookup.
type DeviceIdentity struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Valid bool   `json:"valid"`
}

// Repository is the capability set the intake workflows need from the
// order/device backend. The HTTP client and the in-memory fallback store
// both satisfy it.
type Repository interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error)
	FetchOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, idOrNumber string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	MarkOrderDraft(ctx context.Context, id string) (*model.Order, error)
	CheckLabelNumber(ctx context.Context, label string) (bool, error)
	ExportReport(ctx context.Context, orderID string) (string, error)

	CreateDevice(ctx context.Context, req CreateDeviceRequest) (*model.Device, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	DevicesByOrder(ctx context.Context, orderID string) ([]model.Device, error)
	SearchDevices(ctx context.Context, query string) ([]model.Device, error)
	UploadDeviceImage(ctx context.Context, deviceID, side, uri string) (*model.Device, error)
}

// IMEIResolver is the backend-dependent IMEI lookup pair. Unlike the
// Repository operations it has no offline fallback.
type IMEIResolver interface {
	LookupIMEI(ctx context.Context, imei string) (int64, error)
	IMEIResult(ctx context.Context, historyID int64) (*DeviceIdentity, error)
}

// ValidationError reports the required fields a form submission is missing.
// It never reaches the network layer.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}
