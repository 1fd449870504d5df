// Package memstore is the volatile in-memory shadow of the order/device
// backend. The remote client falls back to it when the network is
// unreachable; tests use it as the Repository fake. It is never a system
// of record and loses everything on process exit.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"device-intake-backend/internal/model"
	"device-intake-backend/internal/workflow"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("label number already exists")
	ErrInvalidState = errors.New("order is not ready for export")
	ErrInvalidSide  = errors.New("invalid photo side")
)

// Store holds the mock orders and devices.
type Store struct {
	mu      sync.Mutex
	orders  []model.Order
	devices []model.Device
	seq     int
}

// New creates an empty mock store.
func New() *Store {
	return &Store{}
}

var orderNumberPattern = regexp.MustCompile(`^ORD-(\d+)$`)

// newID builds a synthetic identifier from the tail of the current
// millisecond timestamp plus a sequence to keep rapid creations distinct.
func (s *Store) newID(prefix string) string {
	s.seq++
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return fmt.Sprintf("%s%s%03d", prefix, ts[len(ts)-4:], s.seq)
}

// NextOrderNumber scans mock order numbers matching ORD-<digits>, takes
// the maximum, increments and zero-pads to four digits.
func (s *Store) NextOrderNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextOrderNumberLocked()
}

func (s *Store) nextOrderNumberLocked() string {
	max := 0
	for _, order := range s.orders {
		m := orderNumberPattern.FindStringSubmatch(order.OrderNumber)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("ORD-%04d", max+1)
}

// CreateOrder appends a new mock order with plausible default fields.
func (s *Store) CreateOrder(ctx context.Context, req workflow.CreateOrderRequest) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.LabelNumber != "" {
		for _, order := range s.orders {
			if order.LabelNumber == req.LabelNumber {
				return nil, fmt.Errorf("label number %q: %w", req.LabelNumber, ErrConflict)
			}
		}
	}

	status := model.StatusPending
	if req.SavedAsDraft {
		status = model.StatusDraft
	}
	now := time.Now().UTC()
	order := model.Order{
		ID:             s.newID("ord"),
		OrderNumber:    s.nextOrderNumberLocked(),
		CustomerName:   req.CustomerName,
		LabelNumber:    req.LabelNumber,
		InspectorID:    req.InspectorID,
		InspectorName:  req.InspectorName,
		InspectionDate: now.Format("2006-01-02"),
		DeviceCount:    0,
		Status:         status,
		SavedAsDraft:   req.SavedAsDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.orders = append(s.orders, order)
	return &order, nil
}

// FetchOrders returns all mock orders.
func (s *Store) FetchOrders(ctx context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.orders...), nil
}

// GetOrder finds an order by id or order number.
func (s *Store) GetOrder(ctx context.Context, idOrNumber string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.findOrderLocked(idOrNumber)
	if order == nil {
		return nil, fmt.Errorf("order %q: %w", idOrNumber, ErrNotFound)
	}
	copied := *order
	return &copied, nil
}

func (s *Store) findOrderLocked(idOrNumber string) *model.Order {
	for i := range s.orders {
		if s.orders[i].ID == idOrNumber || s.orders[i].OrderNumber == idOrNumber {
			return &s.orders[i]
		}
	}
	return nil
}

// DeleteOrder removes an order and its devices by order id.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.orders {
		if s.orders[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("order %q: %w", id, ErrNotFound)
	}
	s.orders = append(s.orders[:idx], s.orders[idx+1:]...)

	kept := s.devices[:0]
	for _, device := range s.devices {
		if device.OrderID != id {
			kept = append(kept, device)
		}
	}
	s.devices = kept
	return nil
}

// MarkOrderDraft moves an order into the Draft side-state.
func (s *Store) MarkOrderDraft(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.findOrderLocked(id)
	if order == nil {
		return nil, fmt.Errorf("order %q: %w", id, ErrNotFound)
	}
	order.Status = model.StatusDraft
	order.SavedAsDraft = true
	order.UpdatedAt = time.Now().UTC()
	copied := *order
	return &copied, nil
}

// CheckLabelNumber reports whether a label number is already taken.
func (s *Store) CheckLabelNumber(ctx context.Context, label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.LabelNumber == label {
			return true, nil
		}
	}
	return false, nil
}

// ExportReport returns a mock report locator once every device of the
// order has both photos.
func (s *Store) ExportReport(ctx context.Context, orderID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.findOrderLocked(orderID)
	if order == nil {
		return "", fmt.Errorf("order %q: %w", orderID, ErrNotFound)
	}
	total, inspected := s.progressLocked(order.ID)
	if total == 0 || inspected < total {
		return "", fmt.Errorf("order %q has %d of %d devices photographed: %w", orderID, inspected, total, ErrInvalidState)
	}
	return "/reports/order-" + order.OrderNumber + ".json", nil
}

// CreateDevice appends a device and keeps the owning order's device
// count and status in line when the order is present in the mock store.
func (s *Store) CreateDevice(ctx context.Context, req workflow.CreateDeviceRequest) (*model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	device := model.Device{
		ID:             s.newID("dev"),
		OrderID:        req.OrderID,
		IMEI:           req.IMEI,
		SerialNumber:   req.SerialNumber,
		Brand:          req.Brand,
		Model:          req.Model,
		InspectorName:  req.InspectorName,
		InspectionDate: now.Format("2006-01-02"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	device.SetConditionIDs(req.Conditions)
	s.devices = append(s.devices, device)

	if order := s.findOrderLocked(req.OrderID); order != nil {
		order.DeviceCount++
	}
	return &device, nil
}

// GetDevice finds a device by id.
func (s *Store) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			copied := s.devices[i]
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("device %q: %w", id, ErrNotFound)
}

// DevicesByOrder returns the devices referencing an order id.
func (s *Store) DevicesByOrder(ctx context.Context, orderID string) ([]model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var devices []model.Device
	for _, device := range s.devices {
		if device.OrderID == orderID {
			devices = append(devices, device)
		}
	}
	return devices, nil
}

// SearchDevices matches the query case-insensitively as a substring of a
// device's IMEI, serial number, order id, order number or label number.
// An empty query matches nothing.
func (s *Store) SearchDevices(ctx context.Context, query string) ([]model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	matches := []model.Device{}
	if q == "" {
		return matches, nil
	}
	for _, device := range s.devices {
		order := s.findOrderLocked(device.OrderID)
		if containsFold(device.IMEI, q) ||
			containsFold(device.SerialNumber, q) ||
			containsFold(device.OrderID, q) ||
			(order != nil && containsFold(order.OrderNumber, q)) ||
			(order != nil && containsFold(order.LabelNumber, q)) {
			matches = append(matches, device)
		}
	}
	return matches, nil
}

func containsFold(s, lowered string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowered)
}

// UploadDeviceImage records the image reference for one side of a device,
// replacing any previous one. Flips the owning order to Completed once
// all of its devices carry both photos.
func (s *Store) UploadDeviceImage(ctx context.Context, deviceID, side, uri string) (*model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var device *model.Device
	for i := range s.devices {
		if s.devices[i].ID == deviceID {
			device = &s.devices[i]
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("device %q: %w", deviceID, ErrNotFound)
	}

	switch side {
	case model.SideFront:
		device.FrontImage = uri
	case model.SideBack:
		device.BackImage = uri
	default:
		return nil, fmt.Errorf("side %q: %w", side, ErrInvalidSide)
	}
	device.UpdatedAt = time.Now().UTC()

	if order := s.findOrderLocked(device.OrderID); order != nil && order.Status != model.StatusDraft {
		total, inspected := s.progressLocked(order.ID)
		if total > 0 && inspected == total {
			order.Status = model.StatusCompleted
		}
	}

	copied := *device
	return &copied, nil
}

func (s *Store) progressLocked(orderID string) (total, inspected int) {
	for _, device := range s.devices {
		if device.OrderID != orderID {
			continue
		}
		total++
		if device.FullyInspected() {
			inspected++
		}
	}
	return total, inspected
}
