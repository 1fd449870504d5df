package model

// ConditionTag is an immutable catalog entry describing a device defect.
type ConditionTag struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ConditionCatalog is the fixed vocabulary of condition tags. Devices
// reference entries by id; the catalog itself is never persisted.
var ConditionCatalog = []ConditionTag{
	{ID: "front_cracked", Label: "Front Cracked Screen", Description: "The front screen has visible cracks or damage"},
	{ID: "back_cracked", Label: "Back Cracked Screen", Description: "The back panel has visible cracks or damage"},
	{ID: "no_power", Label: "No Power", Description: "Device does not power on or hold charge"},
	{ID: "battery_swollen", Label: "Swollen Battery", Description: "The battery shows visible swelling or deformation"},
	{ID: "water_damage", Label: "Water Damage", Description: "Indicators show liquid exposure"},
	{ID: "buttons_faulty", Label: "Faulty Buttons", Description: "One or more physical buttons do not respond"},
}

// ValidConditionID reports whether the id names a catalog entry.
func ValidConditionID(id string) bool {
	for _, tag := range ConditionCatalog {
		if tag.ID == id {
			return true
		}
	}
	return false
}
