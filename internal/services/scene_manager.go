package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"gallery-service/internal/chain"
	"gallery-service/internal/codec"
	"gallery-service/internal/metrics"
	"gallery-service/internal/models"
	"gallery-service/internal/scene"
	"gallery-service/internal/scenegraph"
)

// ErrNoScene is returned by operations that need a live scene when none is attached.
var ErrNoScene = errors.New("no live scene attached")

// SceneManager builds, loads, captures and applies kiosk scene configs. The live scene is
// optional; without one, capture and apply are no-ops.
type SceneManager struct {
	client  chain.ConfigReader
	builder *chain.Builder
	scene   scenegraph.Scene
}

// NewSceneManager creates a SceneManager. scene may be nil.
func NewSceneManager(client chain.ConfigReader, packageID string, scene scenegraph.Scene) *SceneManager {
	return &SceneManager{
		client:  client,
		builder: chain.NewBuilder(packageID),
		scene:   scene,
	}
}

// WithScene returns a manager sharing m's chain access but bound to s.
func (m *SceneManager) WithScene(s scenegraph.Scene) *SceneManager {
	return &SceneManager{client: m.client, builder: m.builder, scene: s}
}

// CreateSceneConfigFromKioskItems builds the default layout for a kiosk's holdings.
func (m *SceneManager) CreateSceneConfigFromKioskItems(items []models.KioskItem, kioskID, creator string) *models.SceneConfig {
	objects := make([]models.SceneObject, 0, len(items))
	for i, item := range items {
		objects = append(objects, scene.NewSceneObjectFromKioskItem(item, i))
	}
	return scene.NewSceneConfig(objects, models.SceneMetadata{
		KioskID:     kioskID,
		Creator:     creator,
		Description: fmt.Sprintf("Gallery scene with %d items", len(items)),
	})
}

// CaptureCurrentSceneState reads transforms and visibility back from the live scene. Objects
// not among items are left as they are; held objects with no node are marked hidden.
func (m *SceneManager) CaptureCurrentSceneState(base *models.SceneConfig, items []models.KioskItem) *models.SceneConfig {
	if m.scene == nil || base == nil {
		return base
	}
	rm := metrics.NewReconcileMetrics("capture")
	held := scene.HeldIDs(items)
	now := models.Now()

	out := base.Clone()
	for i := range out.Objects {
		obj := &out.Objects[i]
		if _, ok := held[obj.ID]; !ok {
			rm.Skip()
			continue
		}
		node, ok := scenegraph.Find(m.scene, obj.ID)
		if !ok {
			rm.Miss()
			obj.Displayed = false
			continue
		}
		rm.Hit()
		pose := node.Pose()
		obj.Displayed = node.Visible()
		obj.Position = fromVec(pose.Position)
		obj.Rotation = fromVec(pose.Rotation)
		obj.Scale = pose.Scale.X()
		obj.UpdatedAt = now
	}
	out.UpdatedAt = now
	rm.Finish()
	log.Println(rm.GetSummary())
	return out
}

// ApplySceneConfig writes the config onto the live scene and returns how many objects found
// a node.
func (m *SceneManager) ApplySceneConfig(cfg *models.SceneConfig) int {
	if m.scene == nil || cfg == nil {
		return 0
	}
	rm := metrics.NewReconcileMetrics("apply")
	applied := 0
	for _, obj := range cfg.Objects {
		node, ok := scenegraph.Find(m.scene, obj.ID)
		if !ok {
			rm.Miss()
			continue
		}
		rm.Hit()
		node.SetPose(scenegraph.Pose{
			Position: toVec(obj.Position),
			Rotation: toVec(obj.Rotation),
			Scale:    mgl64.Vec3{obj.Scale, obj.Scale, obj.Scale},
		})
		node.SetVisible(obj.Displayed)
		applied++
	}
	rm.Finish()
	log.Println(rm.GetSummary())
	return applied
}

// LoadSceneConfig reads and decodes the stored config. A missing, unparsable or unrecognised
// value yields (nil, nil); only chain failures are returned as errors.
func (m *SceneManager) LoadSceneConfig(ctx context.Context, kioskID string) (*models.SceneConfig, error) {
	timings := metrics.TimingsFrom(ctx)
	timings.Start("load")
	defer timings.End("load")

	raw, ok, err := m.client.GetSceneConfigJSON(ctx, kioskID)
	if err != nil {
		metrics.SceneLoadsTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, "failed to read scene config")
	}
	if !ok || strings.TrimSpace(raw) == "" {
		metrics.SceneLoadsTotal.WithLabelValues("absent").Inc()
		return nil, nil
	}
	decoded, err := scene.DetectFormat([]byte(raw))
	if err != nil {
		metrics.SceneLoadsTotal.WithLabelValues("invalid").Inc()
		log.Printf("Error decoding stored scene config: kiosk=%s, Error=%v", kioskID, err)
		return nil, nil
	}
	metrics.SceneLoadsTotal.WithLabelValues(decoded.Format.String()).Inc()
	timings.SetFormat(decoded.Format.String())
	return decoded.Config(), nil
}

// LoadSceneConfigForHoldings loads the stored config and reconciles it with items. When
// nothing usable is stored a default layout is returned and stored is false.
func (m *SceneManager) LoadSceneConfigForHoldings(ctx context.Context, kioskID string, items []models.KioskItem) (cfg *models.SceneConfig, stored bool, err error) {
	loaded, err := m.LoadSceneConfig(ctx, kioskID)
	if err != nil {
		return nil, false, err
	}
	if loaded == nil {
		return m.CreateSceneConfigFromKioskItems(items, kioskID, ""), false, nil
	}
	merged := scene.MergeWithHoldings(loaded, items)
	if merged.Metadata.KioskID == "" {
		merged.Metadata.KioskID = kioskID
	}
	if dups := scene.DuplicateIDs(merged); len(dups) > 0 {
		log.Printf("Stored scene config has duplicate objects: kiosk=%s, ids=%v", kioskID, dups)
	}
	return merged, true, nil
}

// EncodeForStorage returns the compact JSON that a save transaction carries.
func (m *SceneManager) EncodeForStorage(cfg *models.SceneConfig) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scene config is required")
	}
	return json.Marshal(codec.Compress(cfg))
}

// CreateSaveTransaction builds the transaction that stores cfg in its compact form. The
// encoded payload carried by the transaction is returned with it.
func (m *SceneManager) CreateSaveTransaction(cfg *models.SceneConfig, kioskID, capID string) (*chain.Transaction, []byte, error) {
	payload, err := m.EncodeForStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	tx, err := m.builder.SetSceneConfig(kioskID, capID, string(payload))
	if err != nil {
		return nil, nil, err
	}
	metrics.TransactionsBuilt.WithLabelValues("scene").Inc()
	return tx, payload, nil
}

// CreateObjectPropertiesTransaction builds the per-object property write for obj.
func (m *SceneManager) CreateObjectPropertiesTransaction(kioskID, capID string, obj models.SceneObject) (*chain.Transaction, error) {
	tx, err := m.builder.SetObjectProperties(kioskID, capID, obj.ID, codec.EncodeContractTransform(obj))
	if err != nil {
		return nil, err
	}
	metrics.TransactionsBuilt.WithLabelValues("object_properties").Inc()
	return tx, nil
}

// LoadObjectProperties reads one object's stored transform. A none or malformed return value
// yields (nil, nil).
func (m *SceneManager) LoadObjectProperties(ctx context.Context, kioskID, objectID string) (*models.ParsedObjectProperties, error) {
	raw, err := m.client.DevInspectObjectProperties(ctx, kioskID, objectID)
	if err != nil {
		return nil, err
	}
	props, ok := codec.DecodeObjectProperties(raw)
	if !ok {
		if len(raw) > 0 && raw[0] != 0 {
			log.Printf("Error decoding object properties: kiosk=%s, object=%s, bytes=%d", kioskID, objectID, len(raw))
		}
		return nil, nil
	}
	return props, nil
}

// ConvertSceneConfigToPanelState projects cfg onto the held items for the editing panel.
func (m *SceneManager) ConvertSceneConfigToPanelState(cfg *models.SceneConfig, items []models.KioskItem) models.PanelState {
	state := models.NewPanelState()
	if cfg == nil {
		return state
	}
	held := scene.HeldIDs(items)
	for _, obj := range cfg.Objects {
		if _, ok := held[obj.ID]; !ok {
			continue
		}
		state.Transforms[obj.ID] = models.Transform{
			Position: obj.Position,
			Rotation: obj.Rotation,
			Scale:    obj.Scale,
		}
		if obj.Displayed {
			state.DisplayedItems[obj.ID] = struct{}{}
		}
	}
	return state
}

// GetSceneStats counts objects overall, displayed and per resource type.
func (m *SceneManager) GetSceneStats(cfg *models.SceneConfig) models.SceneStats {
	return sceneStats(cfg)
}

func sceneStats(cfg *models.SceneConfig) models.SceneStats {
	stats := models.SceneStats{ObjectTypes: make(map[models.ResourceType]int)}
	if cfg == nil {
		return stats
	}
	for _, obj := range cfg.Objects {
		stats.TotalObjects++
		if obj.Displayed {
			stats.DisplayedObjects++
		}
		stats.ObjectTypes[obj.Type]++
	}
	return stats
}

// WaitForScene blocks until the attached scene reports ready.
func (m *SceneManager) WaitForScene(ctx context.Context) error {
	if m.scene == nil {
		return ErrNoScene
	}
	return scenegraph.WaitReady(ctx, m.scene)
}

func toVec(v models.Vector3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromVec(v mgl64.Vec3) models.Vector3 {
	return models.Vector3{X: v.X(), Y: v.Y(), Z: v.Z()}
}
