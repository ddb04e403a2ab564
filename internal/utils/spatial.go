package utils

import "gallery-service/internal/models"

// Default layout for items that have no stored placement yet.
const (
	GridColumns    = 5
	GridSpacing    = 3.0
	GridRowHeight  = 2.0
	GridRowDepth   = 3.0
	gridHalfColumn = (GridColumns - 1) / 2.0
)

// GridPosition lays items out in rows of GridColumns centred on x = 0. Each further row is
// raised by GridRowHeight and pushed back by GridRowDepth so rows never overlap.
func GridPosition(index int) models.Vector3 {
	if index < 0 {
		index = 0
	}
	row := index / GridColumns
	col := index % GridColumns
	return models.Vector3{
		X: (float64(col) - gridHalfColumn) * GridSpacing,
		Y: float64(row) * GridRowHeight,
		Z: float64(-row) * GridRowDepth,
	}
}
