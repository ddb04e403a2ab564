package models

// KioskItem is one collectible held in a kiosk, as returned by the holdings provider.
// Display and Content are the nested metadata maps; Data is the flat fallback used when
// the provider could not split them.
type KioskItem struct {
	ObjectID string         `json:"objectId"`
	Type     string         `json:"type"`
	Display  map[string]any `json:"display,omitempty"`
	Content  map[string]any `json:"content,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	IsListed bool           `json:"isListed"`
	// Price is the listing price in MIST, set only for listed items.
	Price *uint64 `json:"price,omitempty"`
}

// ParsedObjectProperties is a per-object transform record decoded from a contract return value.
type ParsedObjectProperties struct {
	Displayed bool    `json:"displayed"`
	Position  Vector3 `json:"position"`
	Rotation  Vector3 `json:"rotation"`
	Scale     float64 `json:"scale"`
	UpdatedAt uint64  `json:"updated_at"`
}
