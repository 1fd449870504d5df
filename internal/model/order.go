package model

import "time"

// Order statuses. An order is created as Draft or Pending, may be moved
// to In Progress explicitly while inspection is underway, and reaches
// Completed only once every device has both photos.
const (
	StatusDraft      = "Draft"
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

// Order represents a single inspection order.
type Order struct {
	ID             string `gorm:"primaryKey;size:64" json:"id"`
	OrderNumber    string `gorm:"uniqueIndex;size:16;not null" json:"orderNumber"`
	CustomerName   string `gorm:"size:256;not null" json:"customerName"`
	LabelNumber    string `gorm:"size:64;index" json:"labelNumber"`
	InspectorID    string `gorm:"size:64" json:"inspectorId"`
	InspectorName  string `gorm:"size:128" json:"inspectorName"`
	InspectionDate string `gorm:"size:10" json:"inspectionDate"`
	DeviceCount    int    `gorm:"not null" json:"deviceCount"`
	Status         string `gorm:"size:16;not null" json:"status"`
	SavedAsDraft   bool   `json:"savedAsDraft"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Devices []Device `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}
