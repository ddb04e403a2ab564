package repository

import (
	"gorm.io/gorm"

	"gallery-service/internal/models"
)

// SnapshotRepository defines methods for scene snapshot history
type SnapshotRepository interface {
	Create(snapshot *models.SceneSnapshot) error
	FindByDigest(kioskID, digest string) (*models.SceneSnapshot, error)
	ListByKiosk(kioskID string, limit int) ([]models.SceneSnapshot, error)
}

// SnapshotRepositoryImpl provides methods to interact with the SceneSnapshot model in the database.
type SnapshotRepositoryImpl struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepositoryImpl with the provided GORM database connection.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepositoryImpl {
	return &SnapshotRepositoryImpl{db: db}
}

// Create inserts a new snapshot row.
func (r *SnapshotRepositoryImpl) Create(snapshot *models.SceneSnapshot) error {
	return r.db.Create(snapshot).Error
}

// FindByDigest retrieves the newest snapshot of a kiosk with the given digest.
func (r *SnapshotRepositoryImpl) FindByDigest(kioskID, digest string) (*models.SceneSnapshot, error) {
	var snapshot models.SceneSnapshot
	err := r.db.Where("kiosk_id = ? AND digest = ?", kioskID, digest).
		Order("created_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListByKiosk returns a kiosk's snapshots, newest first, without payloads.
func (r *SnapshotRepositoryImpl) ListByKiosk(kioskID string, limit int) ([]models.SceneSnapshot, error) {
	var snapshots []models.SceneSnapshot
	q := r.db.Omit("payload").Where("kiosk_id = ?", kioskID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&snapshots).Error
	return snapshots, err
}
