package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gallery-service/internal/models"
)

type memorySnapshots struct {
	rows []models.SceneSnapshot
}

func (r *memorySnapshots) Create(s *models.SceneSnapshot) error {
	r.rows = append(r.rows, *s)
	return nil
}

func (r *memorySnapshots) FindByDigest(kioskID, digest string) (*models.SceneSnapshot, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].KioskID == kioskID && r.rows[i].Digest == digest {
			row := r.rows[i]
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memorySnapshots) ListByKiosk(kioskID string, limit int) ([]models.SceneSnapshot, error) {
	var out []models.SceneSnapshot
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].KioskID == kioskID {
			out = append(out, r.rows[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryBlobs struct {
	data   map[string][]byte
	putErr error
}

func (b *memoryBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.data[key] = data
	return nil
}

func (b *memoryBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	d, ok := b.data[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return d, nil
}

func savedConfig(t *testing.T) (*models.SceneConfig, []byte) {
	t.Helper()
	m := NewSceneManager(&fakeReader{}, "0xpkg", nil)
	cfg := m.CreateSceneConfigFromKioskItems(heldItems("0xa", "0xb"), "0xk", "")
	cfg.Objects[0].Displayed = true
	payload, err := m.EncodeForStorage(cfg)
	require.NoError(t, err)
	return cfg, payload
}

func TestSnapshotRecordAndLoad(t *testing.T) {
	repo := &memorySnapshots{}
	blobs := &memoryBlobs{data: map[string][]byte{}}
	s, err := NewSnapshotService(repo, blobs)
	require.NoError(t, err)
	cfg, payload := savedConfig(t)

	snap, err := s.Record(context.Background(), "0xk", cfg, payload)
	require.NoError(t, err)
	assert.Equal(t, Digest(payload), snap.Digest)
	assert.Equal(t, 2, snap.ObjectCount)
	assert.Equal(t, 1, snap.DisplayedCount)
	assert.Equal(t, StorageKey("0xk", snap.Digest), snap.StorageKey)
	require.Contains(t, blobs.data, snap.StorageKey)
	assert.NotEqual(t, payload, blobs.data[snap.StorageKey], "archive is compressed")

	again, err := s.Record(context.Background(), "0xk", cfg, payload)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, again.ID)
	assert.Len(t, repo.rows, 1)

	loaded, row, err := s.Load(context.Background(), "0xk", snap.Digest)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, row.ID)
	require.Len(t, loaded.Objects, 2)
	assert.True(t, loaded.Objects[0].Displayed)
}

func TestSnapshotLoadFromArchive(t *testing.T) {
	repo := &memorySnapshots{}
	blobs := &memoryBlobs{data: map[string][]byte{}}
	s, err := NewSnapshotService(repo, blobs)
	require.NoError(t, err)
	cfg, payload := savedConfig(t)

	snap, err := s.Record(context.Background(), "0xk", cfg, payload)
	require.NoError(t, err)
	repo.rows[0].Payload = ""

	loaded, _, err := s.Load(context.Background(), "0xk", snap.Digest)
	require.NoError(t, err)
	assert.Len(t, loaded.Objects, 2)
}

func TestSnapshotArchiveFailureKeepsRow(t *testing.T) {
	repo := &memorySnapshots{}
	s, err := NewSnapshotService(repo, &memoryBlobs{putErr: errors.New("minio down")})
	require.NoError(t, err)
	cfg, payload := savedConfig(t)

	snap, err := s.Record(context.Background(), "0xk", cfg, payload)
	require.NoError(t, err)
	assert.Empty(t, snap.StorageKey)
	assert.Len(t, repo.rows, 1)
}

func TestSnapshotLoadMissing(t *testing.T) {
	s, err := NewSnapshotService(&memorySnapshots{}, nil)
	require.NoError(t, err)
	_, _, err = s.Load(context.Background(), "0xk", "deadbeef")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotList(t *testing.T) {
	repo := &memorySnapshots{}
	s, err := NewSnapshotService(repo, nil)
	require.NoError(t, err)
	cfg, payload := savedConfig(t)
	_, err = s.Record(context.Background(), "0xk", cfg, payload)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), "0xk", cfg, append(payload, ' '))
	require.NoError(t, err)
	_, err = s.Record(context.Background(), "0xother", cfg, payload)
	require.NoError(t, err)

	list, err := s.List("0xk", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	list, err = s.List("0xk", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
