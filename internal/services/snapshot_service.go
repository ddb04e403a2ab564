package services

import (
	"context"
	"fmt"
	"log"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"gallery-service/internal/metrics"
	"gallery-service/internal/models"
	"gallery-service/internal/repository"
	"gallery-service/internal/scene"
)

// ErrSnapshotNotFound is returned when no snapshot matches a kiosk and digest.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// BlobStore is the archive the snapshot payloads are written to.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// SnapshotService records every scene config handed out for saving, keeps its history in the
// database and archives the payload zstd-compressed.
type SnapshotService struct {
	repo    repository.SnapshotRepository
	blobs   BlobStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSnapshotService creates a SnapshotService. blobs may be nil to keep payloads in the
// database only.
func NewSnapshotService(repo repository.SnapshotRepository, blobs BlobStore) (*SnapshotService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd encoder")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd decoder")
	}
	return &SnapshotService{repo: repo, blobs: blobs, encoder: encoder, decoder: decoder}, nil
}

// Digest identifies a stored payload.
func Digest(payload []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}

// StorageKey is the archive key of a kiosk snapshot.
func StorageKey(kioskID, digest string) string {
	return fmt.Sprintf("kiosks/%s/%s.json.zst", kioskID, digest)
}

// Record stores payload, the compact encoding of cfg, unless the kiosk already has a snapshot
// with the same digest; in that case the existing row is returned.
func (s *SnapshotService) Record(ctx context.Context, kioskID string, cfg *models.SceneConfig, payload []byte) (*models.SceneSnapshot, error) {
	digest := Digest(payload)
	existing, err := s.repo.FindByDigest(kioskID, digest)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "failed to look up snapshot")
	}

	snapshot := &models.SceneSnapshot{
		ID:      uuid.New(),
		KioskID: kioskID,
		Digest:  digest,
		Size:    int64(len(payload)),
		Payload: string(payload),
	}
	stats := sceneStats(cfg)
	snapshot.ObjectCount = stats.TotalObjects
	snapshot.DisplayedCount = stats.DisplayedObjects

	if s.blobs != nil {
		compressed := s.encoder.EncodeAll(payload, nil)
		key := StorageKey(kioskID, digest)
		if err := s.blobs.Put(ctx, key, compressed, "application/zstd"); err != nil {
			log.Printf("Error archiving snapshot: kiosk=%s, digest=%s, Error=%v", kioskID, digest, err)
		} else {
			snapshot.StorageKey = key
			metrics.SnapshotBytes.Observe(float64(len(compressed)))
		}
	}

	if err := s.repo.Create(snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to save snapshot")
	}
	return snapshot, nil
}

// List returns a kiosk's snapshot history, newest first.
func (s *SnapshotService) List(kioskID string, limit int) ([]models.SceneSnapshot, error) {
	return s.repo.ListByKiosk(kioskID, limit)
}

// Load returns the config stored in a snapshot. The database payload is used when present,
// the archive otherwise.
func (s *SnapshotService) Load(ctx context.Context, kioskID, digest string) (*models.SceneConfig, *models.SceneSnapshot, error) {
	snapshot, err := s.repo.FindByDigest(kioskID, digest)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to look up snapshot")
	}

	payload := []byte(snapshot.Payload)
	if len(payload) == 0 {
		if s.blobs == nil || snapshot.StorageKey == "" {
			return nil, nil, errors.Errorf("snapshot %s has no payload", digest)
		}
		compressed, err := s.blobs.Get(ctx, snapshot.StorageKey)
		if err != nil {
			return nil, nil, err
		}
		payload, err = s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to decompress snapshot")
		}
	}

	decoded, err := scene.DetectFormat(payload)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to decode snapshot")
	}
	return decoded.Config(), snapshot, nil
}
