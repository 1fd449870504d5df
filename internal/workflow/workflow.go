// Package workflow drives an inspection order through its lifecycle:
// the New Inspection form, Station 1 device intake, Station 2 photo
// capture and report export.
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"device-intake-backend/internal/model"
)

// Stage identifies where in the intake sequence an order currently is.
type Stage int

const (
	// StageDrafting: the New Inspection form is open, no order exists yet.
	StageDrafting Stage = iota
	// StageDevices: the order exists and Station 1 accepts devices.
	StageDevices
	// StagePhotos: device details are in, Station 2 captures missing photos.
	StagePhotos
	// StageComplete: every device has both photos; export is permitted.
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageDrafting:
		return "drafting"
	case StageDevices:
		return "devices"
	case StagePhotos:
		return "photos"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ErrWrongStage is returned when an operation is invoked outside the
// stage it belongs to.
var ErrWrongStage = errors.New("operation not allowed in current stage")

// ErrNotReady is returned when export is requested before every device
// has both photos.
var ErrNotReady = errors.New("not all devices have both photos")

// Controller owns the transient state of one intake flow.
type Controller struct {
	repo Repository

	mu      sync.Mutex
	stage   Stage
	order   *model.Order
	devices []model.Device
}

// NewController creates a controller at the New Inspection form.
func NewController(repo Repository) *Controller {
	return &Controller{repo: repo, stage: StageDrafting}
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Order returns the active order, nil while drafting.
func (c *Controller) Order() *model.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// Devices returns the most recently loaded device list.
func (c *Controller) Devices() []model.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Device(nil), c.devices...)
}

func validateOrderForm(req CreateOrderRequest) error {
	var missing []string
	if strings.TrimSpace(req.CustomerName) == "" {
		missing = append(missing, "customerName")
	}
	if strings.TrimSpace(req.LabelNumber) == "" {
		missing = append(missing, "labelNumber")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// SubmitDraft validates the form and creates the order as a draft. The
// flow returns to the order list without advancing to device intake.
func (c *Controller) SubmitDraft(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != StageDrafting {
		return nil, ErrWrongStage
	}
	if err := validateOrderForm(req); err != nil {
		return nil, err
	}
	req.SavedAsDraft = true
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.LabelNumber = strings.TrimSpace(req.LabelNumber)
	return c.repo.CreateOrder(ctx, req)
}

// SubmitContinue validates the form, creates the order as Pending and
// advances to Station 1. A failed remote creation leaves the controller
// drafting with no partial order.
func (c *Controller) SubmitContinue(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != StageDrafting {
		return nil, ErrWrongStage
	}
	if err := validateOrderForm(req); err != nil {
		return nil, err
	}
	req.SavedAsDraft = false
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.LabelNumber = strings.TrimSpace(req.LabelNumber)

	order, err := c.repo.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	c.order = order
	c.devices = nil
	c.stage = StageDevices
	return order, nil
}

// Resume loads an existing order and its devices concurrently and places
// the controller at the stage matching their state. Either fetch failing
// fails the whole pair.
func (c *Controller) Resume(ctx context.Context, orderID string) error {
	var (
		wg       sync.WaitGroup
		order    *model.Order
		devices  []model.Device
		orderErr error
		devErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		order, orderErr = c.repo.GetOrder(ctx, orderID)
	}()
	go func() {
		defer wg.Done()
		devices, devErr = c.repo.DevicesByOrder(ctx, orderID)
	}()
	wg.Wait()
	if orderErr != nil {
		return orderErr
	}
	if devErr != nil {
		return devErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = order
	c.devices = devices
	c.stage = stageFor(devices)
	return nil
}

func stageFor(devices []model.Device) Stage {
	if len(devices) == 0 {
		return StageDevices
	}
	for _, d := range devices {
		if !d.FullyInspected() {
			return StagePhotos
		}
	}
	return StageComplete
}

// AddDevice registers one Station 1 submission against the active order.
// The caller loops here for as long as the inspector keeps adding devices.
func (c *Controller) AddDevice(ctx context.Context, req CreateDeviceRequest) (*model.Device, error) {
	c.mu.Lock()
	if c.stage != StageDevices || c.order == nil {
		c.mu.Unlock()
		return nil, ErrWrongStage
	}
	req.OrderID = c.order.ID
	c.mu.Unlock()

	device, err := c.repo.CreateDevice(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.devices = append(c.devices, *device)
	c.mu.Unlock()
	return device, nil
}

// FinishDevices ends Station 1. The flow completes when every device has
// both photos, otherwise it advances to Station 2 for the remaining
// captures.
func (c *Controller) FinishDevices(ctx context.Context) (Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != StageDevices || c.order == nil {
		return c.stage, ErrWrongStage
	}

	devices, err := c.repo.DevicesByOrder(ctx, c.order.ID)
	if err != nil {
		return c.stage, err
	}
	c.devices = devices
	c.stage = stageFor(devices)
	if c.stage == StageDevices {
		// No devices registered; stay at Station 1.
		return c.stage, nil
	}
	return c.stage, nil
}

// UploadPhoto records a Station 2 capture for one device side and moves
// to StageComplete once the last missing photo lands.
func (c *Controller) UploadPhoto(ctx context.Context, deviceID, side, uri string) (*model.Device, error) {
	c.mu.Lock()
	if c.stage != StagePhotos {
		c.mu.Unlock()
		return nil, ErrWrongStage
	}
	c.mu.Unlock()

	device, err := c.repo.UploadDeviceImage(ctx, deviceID, side, uri)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.devices {
		if c.devices[i].ID == device.ID {
			c.devices[i] = *device
		}
	}
	c.stage = stageFor(c.devices)
	return device, nil
}

// ExportReport produces the report locator. Permitted only once every
// device of the order has both photos.
func (c *Controller) ExportReport(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.order == nil {
		c.mu.Unlock()
		return "", ErrWrongStage
	}
	orderID := c.order.ID
	c.mu.Unlock()

	devices, err := c.repo.DevicesByOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if stageFor(devices) != StageComplete {
		return "", ErrNotReady
	}

	c.mu.Lock()
	c.devices = devices
	c.stage = StageComplete
	c.mu.Unlock()

	return c.repo.ExportReport(ctx, orderID)
}
