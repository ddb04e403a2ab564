// Package scene holds the scene config constructors, the wire-format validators and the
// helpers that reconcile a stored config with current kiosk holdings.
package scene

import (
	"gallery-service/internal/classifier"
	"gallery-service/internal/models"
	"gallery-service/internal/utils"
)

// NewSceneConfig stamps a config with the current time. Duplicate ids are not removed;
// use DuplicateIDs to check.
func NewSceneConfig(objects []models.SceneObject, metadata models.SceneMetadata) *models.SceneConfig {
	now := models.Now()
	if objects == nil {
		objects = []models.SceneObject{}
	}
	return &models.SceneConfig{
		Objects:   objects,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSceneObjectFromKioskItem builds a hidden, unit-scale object at the default grid slot
// for index.
func NewSceneObjectFromKioskItem(item models.KioskItem, index int) models.SceneObject {
	res := classifier.Classify(item)
	return models.SceneObject{
		ID:        item.ObjectID,
		Name:      classifier.ResolveName(item, index),
		Type:      res.Type,
		Displayed: false,
		Position:  utils.GridPosition(index),
		Rotation:  models.Vector3{},
		Scale:     1,
		UpdatedAt: models.Now(),
	}
}

// DuplicateIDs returns every id that occurs more than once, in first-seen order.
func DuplicateIDs(cfg *models.SceneConfig) []string {
	seen := make(map[string]int, len(cfg.Objects))
	var dups []string
	for _, obj := range cfg.Objects {
		seen[obj.ID]++
		if seen[obj.ID] == 2 {
			dups = append(dups, obj.ID)
		}
	}
	return dups
}

// HeldIDs indexes items by object id.
func HeldIDs(items []models.KioskItem) map[string]int {
	held := make(map[string]int, len(items))
	for i, item := range items {
		if _, ok := held[item.ObjectID]; !ok {
			held[item.ObjectID] = i
		}
	}
	return held
}

// PruneOrphans returns a copy of cfg without objects whose id is not among items, and
// the number of objects dropped.
func PruneOrphans(cfg *models.SceneConfig, items []models.KioskItem) (*models.SceneConfig, int) {
	held := HeldIDs(items)
	out := cfg.Clone()
	out.Objects = out.Objects[:0]
	for _, obj := range cfg.Objects {
		if _, ok := held[obj.ID]; ok {
			out.Objects = append(out.Objects, obj)
		}
	}
	return out, len(cfg.Objects) - len(out.Objects)
}

// MergeWithHoldings prunes orphans from cfg, fills in names from holdings and appends a
// default object for every held item the config does not mention yet. New objects take
// their grid slot from their position in items.
func MergeWithHoldings(cfg *models.SceneConfig, items []models.KioskItem) *models.SceneConfig {
	out, _ := PruneOrphans(cfg, items)
	present := make(map[string]bool, len(out.Objects))
	held := HeldIDs(items)
	for i := range out.Objects {
		obj := &out.Objects[i]
		present[obj.ID] = true
		if obj.Name == "" {
			idx := held[obj.ID]
			obj.Name = classifier.ResolveName(items[idx], idx)
		}
	}
	for i, item := range items {
		if present[item.ObjectID] {
			continue
		}
		present[item.ObjectID] = true
		out.Objects = append(out.Objects, NewSceneObjectFromKioskItem(item, i))
	}
	return out
}
