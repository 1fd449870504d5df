package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"device-intake-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateOrder(ctx context.Context, order *model.Order) error
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, idOrNumber string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error)
	MarkOrderDraft(ctx context.Context, id string) (*model.Order, error)
	LabelNumberExists(ctx context.Context, label string) (bool, error)
	NextOrderNumber(ctx context.Context) (string, error)

	CreateDevice(ctx context.Context, device *model.Device) error
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	ListDevicesByOrder(ctx context.Context, orderID string) ([]model.Device, error)
	SearchDevices(ctx context.Context, query string) ([]model.Device, error)
	SetDeviceImage(ctx context.Context, deviceID, side, url string) (string, error)
	InspectionProgress(ctx context.Context, orderID string) (total, inspected int, err error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for components that need raw access.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

var orderNumberPattern = regexp.MustCompile(`^ORD-(\d+)$`)

// NextOrderNumber scans existing order numbers, takes the maximum sequence
// and returns the next one zero-padded to four digits.
func (s *gormStore) NextOrderNumber(ctx context.Context) (string, error) {
	var numbers []string
	if err := s.db.WithContext(ctx).Model(&model.Order{}).Pluck("order_number", &numbers).Error; err != nil {
		return "", fmt.Errorf("failed to list order numbers: %w", err)
	}
	return nextOrderNumber(numbers), nil
}

func nextOrderNumber(existing []string) string {
	max := 0
	for _, number := range existing {
		m := orderNumberPattern.FindStringSubmatch(number)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("ORD-%04d", max+1)
}

// CreateOrder assigns an id and sequential order number, enforces label
// uniqueness and persists the order. The incoming status decides between
// Draft and Pending; anything else defaults to Pending.
func (s *gormStore) CreateOrder(ctx context.Context, order *model.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.LabelNumber != "" {
			var count int64
			if err := tx.Model(&model.Order{}).Where("label_number = ?", order.LabelNumber).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check label number: %w", err)
			}
			if count > 0 {
				return fmt.Errorf("label number %q: %w", order.LabelNumber, ErrConflict)
			}
		}

		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		if order.Status != model.StatusDraft {
			order.Status = model.StatusPending
		}
		order.SavedAsDraft = order.Status == model.StatusDraft
		if order.InspectionDate == "" {
			order.InspectionDate = time.Now().UTC().Format("2006-01-02")
		}

		var numbers []string
		if err := tx.Model(&model.Order{}).Pluck("order_number", &numbers).Error; err != nil {
			return fmt.Errorf("failed to list order numbers: %w", err)
		}
		order.OrderNumber = nextOrderNumber(numbers)

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// ListOrders returns all orders, newest first.
func (s *gormStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder fetches an order by id or by its ORD-#### number.
func (s *gormStore) GetOrder(ctx context.Context, idOrNumber string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Where("id = ? OR order_number = ?", idOrNumber, idOrNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %q: %w", idOrNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %q: %w", idOrNumber, err)
	}
	return &order, nil
}

// DeleteOrder removes an order and, via the FK constraint, its devices.
func (s *gormStore) DeleteOrder(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&model.Order{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete order %q: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %q: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateOrderStatus applies a validated status transition. Completing an
// order additionally requires every device to have both photos.
func (s *gormStore) UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %q: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to fetch order %q: %w", id, err)
		}
		if !ValidTransition(order.Status, status) {
			return fmt.Errorf("order %q %s -> %s: %w", id, order.Status, status, ErrInvalidState)
		}
		if status == model.StatusCompleted {
			total, inspected, err := inspectionProgress(tx, id)
			if err != nil {
				return err
			}
			if total == 0 || inspected < total {
				return fmt.Errorf("order %q has %d of %d devices photographed: %w", id, inspected, total, ErrInvalidState)
			}
		}
		order.Status = status
		order.SavedAsDraft = status == model.StatusDraft
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("failed to update order %q: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrderDraft moves an order into the Draft side-state.
func (s *gormStore) MarkOrderDraft(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %q: %w", id, err)
	}
	order.Status = model.StatusDraft
	order.SavedAsDraft = true
	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to save order %q as draft: %w", id, err)
	}
	return &order, nil
}

// LabelNumberExists reports whether any order carries the given label number.
func (s *gormStore) LabelNumberExists(ctx context.Context, label string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).Where("label_number = ?", label).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check label number: %w", err)
	}
	return count > 0, nil
}

// CreateDevice persists a device and transactionally keeps the owning
// order's device count and status in line with it.
func (s *gormStore) CreateDevice(ctx context.Context, device *model.Device) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, "id = ?", device.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %q: %w", device.OrderID, ErrNotFound)
			}
			return fmt.Errorf("failed to fetch order %q: %w", device.OrderID, err)
		}

		if device.ID == "" {
			device.ID = uuid.NewString()
		}
		if device.InspectionDate == "" {
			device.InspectionDate = time.Now().UTC().Format("2006-01-02")
		}
		if err := tx.Create(device).Error; err != nil {
			return fmt.Errorf("failed to create device: %w", err)
		}

		// Registering devices never advances the status; In Progress is
		// an explicit transition made by the inspector.
		order.DeviceCount++
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("failed to update order %q: %w", order.ID, err)
		}
		return nil
	})
}

// GetDevice fetches a device by id.
func (s *gormStore) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := s.db.WithContext(ctx).First(&device, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device %q: %w", id, err)
	}
	return &device, nil
}

// ListDevicesByOrder returns an order's devices in creation order.
func (s *gormStore) ListDevicesByOrder(ctx context.Context, orderID string) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices for order %q: %w", orderID, err)
	}
	return devices, nil
}

// SearchDevices matches the query case-insensitively as a substring of a
// device's IMEI, serial number, order id, order number or label number.
// An empty query matches nothing.
func (s *gormStore) SearchDevices(ctx context.Context, query string) ([]model.Device, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.Device{}, nil
	}
	pattern := "%" + q + "%"

	var devices []model.Device
	err := s.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = devices.order_id").
		Where("LOWER(devices.imei) LIKE ? OR LOWER(devices.serial_number) LIKE ? OR LOWER(devices.order_id) LIKE ? OR LOWER(orders.order_number) LIKE ? OR LOWER(orders.label_number) LIKE ?",
			pattern, pattern, pattern, pattern, pattern).
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search devices: %w", err)
	}
	return devices, nil
}

// SetDeviceImage records the image reference for one side of a device,
// replacing any previous one. When the write makes every device of the
// owning order fully photographed, the order is flipped to Completed and
// its id is returned so the caller can dispatch notifications.
func (s *gormStore) SetDeviceImage(ctx context.Context, deviceID, side, url string) (string, error) {
	var completedOrderID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device model.Device
		if err := tx.First(&device, "id = ?", deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("device %q: %w", deviceID, ErrNotFound)
			}
			return fmt.Errorf("failed to fetch device %q: %w", deviceID, err)
		}

		switch side {
		case model.SideFront:
			device.FrontImage = url
		case model.SideBack:
			device.BackImage = url
		default:
			return fmt.Errorf("side %q: %w", side, ErrInvalidSide)
		}
		if err := tx.Save(&device).Error; err != nil {
			return fmt.Errorf("failed to update device %q: %w", deviceID, err)
		}

		total, inspected, err := inspectionProgress(tx, device.OrderID)
		if err != nil {
			return err
		}
		if total == 0 || inspected < total {
			return nil
		}

		var order model.Order
		if err := tx.First(&order, "id = ?", device.OrderID).Error; err != nil {
			return fmt.Errorf("failed to fetch order %q: %w", device.OrderID, err)
		}
		if ValidTransition(order.Status, model.StatusCompleted) {
			order.Status = model.StatusCompleted
			if err := tx.Save(&order).Error; err != nil {
				return fmt.Errorf("failed to complete order %q: %w", order.ID, err)
			}
			completedOrderID = order.ID
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return completedOrderID, nil
}

// InspectionProgress returns how many of an order's devices exist and how
// many of them have both photos.
func (s *gormStore) InspectionProgress(ctx context.Context, orderID string) (int, int, error) {
	return inspectionProgress(s.db.WithContext(ctx), orderID)
}

func inspectionProgress(tx *gorm.DB, orderID string) (int, int, error) {
	var total, inspected int64
	if err := tx.Model(&model.Device{}).Where("order_id = ?", orderID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count devices for order %q: %w", orderID, err)
	}
	if err := tx.Model(&model.Device{}).
		Where("order_id = ? AND front_image <> '' AND back_image <> ''", orderID).
		Count(&inspected).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count inspected devices for order %q: %w", orderID, err)
	}
	return int(total), int(inspected), nil
}
