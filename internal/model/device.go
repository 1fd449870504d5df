package model

import (
	"strings"
	"time"
)

// Photo sides accepted by the upload endpoints.
const (
	SideFront = "front"
	SideBack  = "back"
)

// Device represents a single inspected device belonging to an order.
type Device struct {
	ID             string `gorm:"primaryKey;size:64" json:"id"`
	OrderID        string `gorm:"index;size:64;not null" json:"orderId"`
	IMEI           string `gorm:"size:32;index" json:"imei"`
	SerialNumber   string `gorm:"size:32;index" json:"serialNumber"`
	Brand          string `gorm:"size:128" json:"brand"`
	Model          string `gorm:"size:128" json:"model"`
	Conditions     string `gorm:"size:512" json:"-"`
	FrontImage     string `gorm:"size:512" json:"frontImage"`
	BackImage      string `gorm:"size:512" json:"backImage"`
	InspectorName  string `gorm:"size:128" json:"inspectorName"`
	InspectionDate string `gorm:"size:10" json:"inspectionDate"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Order Order `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ConditionIDs returns the device's condition tag ids as a slice.
// Conditions are stored comma-joined; the empty string means no tags.
func (d *Device) ConditionIDs() []string {
	if d.Conditions == "" {
		return nil
	}
	return strings.Split(d.Conditions, ",")
}

// SetConditionIDs stores the given tag ids on the device.
func (d *Device) SetConditionIDs(ids []string) {
	d.Conditions = strings.Join(ids, ",")
}

// FullyInspected reports whether both photo sides have been captured.
func (d *Device) FullyInspected() bool {
	return d.FrontImage != "" && d.BackImage != ""
}
