package models

// CompactSceneVersion is written into every compact blob.
const CompactSceneVersion = 1

// CompactSceneConfig is the short-keyed, fixed-point wire form of SceneConfig that is
// persisted on chain. Numeric transform fields are round(value * 1000).
type CompactSceneConfig struct {
	Version   int                  `json:"v,omitempty"`
	Objects   []CompactSceneObject `json:"o"`
	Metadata  CompactMetadata      `json:"m"`
	CreatedAt int64                `json:"c,omitempty"`
	UpdatedAt int64                `json:"u,omitempty"`
}

// CompactSceneObject is the wire form of a SceneObject. Rotation is radians * 1000.
type CompactSceneObject struct {
	ID        string   `json:"id"`
	Type      string   `json:"t"`
	Displayed bool     `json:"d"`
	Position  [3]int64 `json:"p"`
	Rotation  [3]int64 `json:"r"`
	Scale     int64    `json:"s"`
	UpdatedAt int64    `json:"u,omitempty"`
}

type CompactMetadata struct {
	KioskID     string `json:"k,omitempty"`
	Creator     string `json:"c,omitempty"`
	Description string `json:"d,omitempty"`
}
