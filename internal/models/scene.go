package models

// Vector3 is a 3-component vector in scene units. Rotation vectors hold Euler angles in radians.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SceneObject is one collectible's placement in the 3D scene.
type SceneObject struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Type      ResourceType `json:"type"`
	Displayed bool         `json:"displayed"`
	Position  Vector3      `json:"position"`
	Rotation  Vector3      `json:"rotation"`
	// Scale is uniform; per-axis scale is not representable.
	Scale     float64   `json:"scale"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// SceneMetadata carries provenance only and is never used for access control.
type SceneMetadata struct {
	KioskID     string `json:"kioskId,omitempty"`
	Creator     string `json:"creator,omitempty"`
	Description string `json:"description"`
}

// SceneConfig is the canonical in-memory description of what is in a kiosk's scene.
type SceneConfig struct {
	Objects   []SceneObject `json:"objects"`
	Metadata  SceneMetadata `json:"metadata"`
	CreatedAt Timestamp     `json:"createdAt"`
	UpdatedAt Timestamp     `json:"updatedAt"`
}

// Clone returns a deep copy of the config so callers can mutate it freely.
func (c *SceneConfig) Clone() *SceneConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Objects = make([]SceneObject, len(c.Objects))
	copy(out.Objects, c.Objects)
	return &out
}

// Transform is the panel-facing placement of a single item.
type Transform struct {
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// SceneStats aggregates a config for diagnostics.
type SceneStats struct {
	TotalObjects     int                  `json:"totalObjects"`
	DisplayedObjects int                  `json:"displayedObjects"`
	ObjectTypes      map[ResourceType]int `json:"objectTypes"`
}
