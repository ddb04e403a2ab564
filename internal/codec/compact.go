package codec

import "gallery-service/internal/models"

// Compress converts a config to its compact persisted form.
func Compress(cfg *models.SceneConfig) *models.CompactSceneConfig {
	out := &models.CompactSceneConfig{
		Version: models.CompactSceneVersion,
		Objects: make([]models.CompactSceneObject, 0, len(cfg.Objects)),
		Metadata: models.CompactMetadata{
			KioskID:     cfg.Metadata.KioskID,
			Creator:     cfg.Metadata.Creator,
			Description: cfg.Metadata.Description,
		},
		CreatedAt: cfg.CreatedAt.Millis(),
		UpdatedAt: cfg.UpdatedAt.Millis(),
	}
	for _, obj := range cfg.Objects {
		out.Objects = append(out.Objects, models.CompactSceneObject{
			ID:        obj.ID,
			Type:      obj.Type.Code(),
			Displayed: obj.Displayed,
			Position:  vecToMilli(obj.Position),
			Rotation:  vecToMilli(obj.Rotation),
			Scale:     ToMilli(obj.Scale),
			UpdatedAt: obj.UpdatedAt.Millis(),
		})
	}
	return out
}

// Decompress is the inverse of Compress. Names are not persisted and come back empty;
// they are derived from holdings when the config is projected.
func Decompress(c *models.CompactSceneConfig) *models.SceneConfig {
	out := &models.SceneConfig{
		Objects: make([]models.SceneObject, 0, len(c.Objects)),
		Metadata: models.SceneMetadata{
			KioskID:     c.Metadata.KioskID,
			Creator:     c.Metadata.Creator,
			Description: c.Metadata.Description,
		},
		CreatedAt: models.TimestampFromMillis(c.CreatedAt),
		UpdatedAt: models.TimestampFromMillis(c.UpdatedAt),
	}
	for _, obj := range c.Objects {
		out.Objects = append(out.Objects, models.SceneObject{
			ID:        obj.ID,
			Type:      models.ResourceTypeFromCode(obj.Type),
			Displayed: obj.Displayed,
			Position:  vecFromMilli(obj.Position),
			Rotation:  vecFromMilli(obj.Rotation),
			Scale:     FromMilli(obj.Scale),
			UpdatedAt: models.TimestampFromMillis(obj.UpdatedAt),
		})
	}
	return out
}
