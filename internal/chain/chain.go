// Package chain talks to the chain node over JSON-RPC: it reads the stored scene config and
// kiosk holdings, dry-runs property getters, and builds the unsigned transactions that a
// wallet signs to persist scene changes.
package chain

import (
	"context"
	"errors"

	"gallery-service/internal/models"
)

// ErrNotFound is returned when a requested chain object does not exist.
var ErrNotFound = errors.New("chain object not found")

// ConfigReader reads what the gallery contract stores for a kiosk.
type ConfigReader interface {
	// GetSceneConfigJSON returns the stored scene config string and whether one exists.
	GetSceneConfigJSON(ctx context.Context, kioskID string) (string, bool, error)
	// DevInspectObjectProperties dry-runs the per-object property getter and returns the
	// raw BCS return value.
	DevInspectObjectProperties(ctx context.Context, kioskID, objectID string) ([]byte, error)
}

// HoldingsProvider lists the collectibles held in a kiosk.
type HoldingsProvider interface {
	GetKioskItems(ctx context.Context, kioskID string) ([]models.KioskItem, error)
}

// Gallery contract entry points.
const (
	GalleryModule         = "gallery"
	FnSetSceneConfig      = "set_scene_config"
	FnSetObjectProperties = "set_object_properties"
	FnGetObjectProperties = "get_object_properties"
	SceneConfigKeyStruct  = "SceneConfigKey"
)
