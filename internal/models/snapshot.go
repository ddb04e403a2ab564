package models

import (
	"time"

	"github.com/google/uuid"
)

// SceneSnapshot records a compact scene config that was handed out for saving.
type SceneSnapshot struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	KioskID        string    `gorm:"index;not null" json:"kiosk_id"`
	Digest         string    `gorm:"index;not null" json:"digest"`
	ObjectCount    int       `json:"object_count"`
	DisplayedCount int       `json:"displayed_count"`
	Size           int64     `json:"size"`
	StorageKey     string    `json:"storage_key"`
	Payload        string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}
