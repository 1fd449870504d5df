// Package report renders inspection reports for completed orders.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"device-intake-backend/internal/model"
	"device-intake-backend/internal/store"
)

// Document is the exported report payload.
type Document struct {
	Order        model.Order   `json:"order"`
	Devices      []DeviceEntry `json:"devices"`
	TotalDevices int           `json:"totalDevices"`
	Inspected    int           `json:"inspectedDevices"`
	GeneratedAt  string        `json:"generatedAt"`
}

// DeviceEntry is a device row in the report, with condition labels resolved.
type DeviceEntry struct {
	model.Device
	ConditionLabels []string `json:"conditions"`
}

// Builder writes report documents to disk.
type Builder struct {
	store store.Store
	dir   string
}

// NewBuilder creates a report builder writing into dir.
func NewBuilder(s store.Store, dir string) *Builder {
	return &Builder{store: s, dir: dir}
}

// Export renders the order's report and returns its URL path. Export is
// refused until every device of the order has both photos.
func (b *Builder) Export(ctx context.Context, orderID string, generatedAt string) (string, error) {
	order, err := b.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	total, inspected, err := b.store.InspectionProgress(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if total == 0 || inspected < total {
		return "", fmt.Errorf("order %q has %d of %d devices photographed: %w",
			order.ID, inspected, total, store.ErrInvalidState)
	}

	devices, err := b.store.ListDevicesByOrder(ctx, order.ID)
	if err != nil {
		return "", err
	}

	doc := Document{
		Order:        *order,
		Devices:      make([]DeviceEntry, 0, len(devices)),
		TotalDevices: total,
		Inspected:    inspected,
		GeneratedAt:  generatedAt,
	}
	for _, d := range devices {
		doc.Devices = append(doc.Devices, DeviceEntry{
			Device:          d,
			ConditionLabels: conditionLabels(d.ConditionIDs()),
		})
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("order-%s.json", order.OrderNumber)
	path := filepath.Join(b.dir, name)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	return "/reports/" + name, nil
}

func conditionLabels(ids []string) []string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		label := id
		for _, tag := range model.ConditionCatalog {
			if tag.ID == id {
				label = tag.Label
				break
			}
		}
		labels = append(labels, label)
	}
	return labels
}
