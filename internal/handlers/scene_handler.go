package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"gallery-service/internal/archive"
	"gallery-service/internal/chain"
	"gallery-service/internal/live"
	"gallery-service/internal/metrics"
	"gallery-service/internal/models"
	"gallery-service/internal/scene"
	"gallery-service/internal/scenegraph"
	"gallery-service/internal/services"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// LiveScenes exposes the graphs mirrored from connected viewers.
type LiveScenes interface {
	Scene(kioskID string) (*scenegraph.Graph, bool)
	Broadcast(kioskID string, v any) int
}

// SceneHandler serves kiosk holdings and scene configs.
type SceneHandler struct {
	manager   *services.SceneManager
	holdings  *services.HoldingsService
	snapshots *services.SnapshotService
	live      LiveScenes

	maxImportSize int64
	captureWait   time.Duration
}

// NewSceneHandler creates a new scene handler. snapshots and liveScenes may be nil.
func NewSceneHandler(manager *services.SceneManager, holdings *services.HoldingsService, snapshots *services.SnapshotService, liveScenes LiveScenes, maxImportSize int64) *SceneHandler {
	return &SceneHandler{
		manager:       manager,
		holdings:      holdings,
		snapshots:     snapshots,
		live:          liveScenes,
		maxImportSize: maxImportSize,
		captureWait:   3 * time.Second,
	}
}

// SaveSceneRequest is the body of the scene transaction and apply endpoints.
type SaveSceneRequest struct {
	CapID  string              `json:"capId"`
	Config *models.SceneConfig `json:"config"`
}

// CreateSceneRequest is the body of the default scene endpoint.
type CreateSceneRequest struct {
	Creator string `json:"creator"`
}

// ObjectTransactionRequest is the body of the per-object transaction endpoint.
type ObjectTransactionRequest struct {
	CapID     string         `json:"capId"`
	Displayed bool           `json:"displayed"`
	Position  models.Vector3 `json:"position"`
	Rotation  models.Vector3 `json:"rotation"`
	Scale     float64        `json:"scale"`
}

// SceneResponse is a scene config with its panel projection.
type SceneResponse struct {
	Config     *models.SceneConfig `json:"config"`
	PanelState models.PanelState   `json:"panelState"`
	Stored     bool                `json:"stored"`
}

func (h *SceneHandler) begin(c *fiber.Ctx, kioskID string) (context.Context, *metrics.StageTimings) {
	m := metrics.NewStageTimings(kioskID)
	return metrics.WithTimings(c.UserContext(), m), m
}

func setTimingHeaders(c *fiber.Ctx, m *metrics.StageTimings) {
	m.Finalize()
	for k, v := range m.GetHeaders() {
		c.Set(k, v)
	}
}

// chainError maps a chain read failure onto an HTTP response.
func chainError(c *fiber.Ctx, err error) error {
	if errors.Is(err, chain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Kiosk not found",
		})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error":   true,
			"message": "Chain request timed out",
		})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error":   true,
		"message": "Chain request failed",
		"details": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// ListItems handles GET /kiosks/:kioskId/items
// @Summary List kiosk items
// @Description Returns the kiosk's holdings with display names and rendering strategy
// @Tags kiosks
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Success 200 {array} services.ItemView
// @Failure 404 {object} map[string]interface{} "Kiosk not found"
// @Failure 502 {object} map[string]interface{} "Chain request failed"
// @Router /kiosks/{kioskId}/items [get]
func (h *SceneHandler) ListItems(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	ctx, timings := h.begin(c, kioskID)

	items, err := h.holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		log.Printf("Error listing kiosk items: kiosk=%s, Error=%v", kioskID, err)
		return chainError(c, err)
	}
	timings.SetObjectCount(len(items))
	setTimingHeaders(c, timings)
	return c.JSON(services.DescribeItems(items))
}

// GetScene handles GET /kiosks/:kioskId/scene
// @Summary Get a kiosk scene
// @Description Loads the stored scene config reconciled with current holdings, or the default layout when none is stored
// @Tags scenes
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Success 200 {object} SceneResponse
// @Failure 404 {object} map[string]interface{} "Kiosk not found"
// @Failure 502 {object} map[string]interface{} "Chain request failed"
// @Router /kiosks/{kioskId}/scene [get]
func (h *SceneHandler) GetScene(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	ctx, timings := h.begin(c, kioskID)

	items, err := h.holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		log.Printf("Error loading holdings: kiosk=%s, Error=%v", kioskID, err)
		return chainError(c, err)
	}
	cfg, stored, err := h.manager.LoadSceneConfigForHoldings(ctx, kioskID, items)
	if err != nil {
		log.Printf("Error loading scene: kiosk=%s, Error=%v", kioskID, err)
		return chainError(c, err)
	}
	timings.SetObjectCount(len(cfg.Objects))
	setTimingHeaders(c, timings)
	return c.JSON(SceneResponse{
		Config:     cfg,
		PanelState: h.manager.ConvertSceneConfigToPanelState(cfg, items),
		Stored:     stored,
	})
}

// GetSceneStats handles GET /kiosks/:kioskId/scene/stats
// @Summary Get scene statistics
// @Tags scenes
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Success 200 {object} models.SceneStats
// @Failure 502 {object} map[string]interface{} "Chain request failed"
// @Router /kiosks/{kioskId}/scene/stats [get]
func (h *SceneHandler) GetSceneStats(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	ctx, timings := h.begin(c, kioskID)

	items, err := h.holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		return chainError(c, err)
	}
	cfg, _, err := h.manager.LoadSceneConfigForHoldings(ctx, kioskID, items)
	if err != nil {
		return chainError(c, err)
	}
	setTimingHeaders(c, timings)
	return c.JSON(h.manager.GetSceneStats(cfg))
}

// CreateScene handles POST /kiosks/:kioskId/scene
// @Summary Create a default scene
// @Description Lays out every held item on the default grid. Nothing is written to chain.
// @Tags scenes
// @Accept json
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param request body CreateSceneRequest false "Scene creator"
// @Success 201 {object} SceneResponse
// @Failure 502 {object} map[string]interface{} "Chain request failed"
// @Router /kiosks/{kioskId}/scene [post]
func (h *SceneHandler) CreateScene(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	log.Printf("[SCENE] Creating default scene: kiosk=%s", kioskID)
	var req CreateSceneRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request format")
		}
	}
	ctx, timings := h.begin(c, kioskID)

	items, err := h.holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		return chainError(c, err)
	}
	cfg := h.manager.CreateSceneConfigFromKioskItems(items, kioskID, req.Creator)
	timings.SetObjectCount(len(cfg.Objects))
	setTimingHeaders(c, timings)
	return c.Status(fiber.StatusCreated).JSON(SceneResponse{
		Config:     cfg,
		PanelState: h.manager.ConvertSceneConfigToPanelState(cfg, items),
	})
}

// CaptureScene handles POST /kiosks/:kioskId/scene/capture
// @Summary Capture the live scene
// @Description Reads transforms and visibility back from the kiosk's connected viewer
// @Tags scenes
// @Accept json
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param request body SaveSceneRequest false "Base config; the stored scene is used when omitted"
// @Success 200 {object} SceneResponse
// @Failure 409 {object} map[string]interface{} "No ready viewer"
// @Failure 502 {object} map[string]interface{} "Chain request failed"
// @Router /kiosks/{kioskId}/scene/capture [post]
func (h *SceneHandler) CaptureScene(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	var req SaveSceneRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request format")
		}
	}
	manager, ok := h.liveManager(kioskID)
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "No viewer connected for kiosk",
		})
	}
	ctx, timings := h.begin(c, kioskID)

	waitCtx, cancel := context.WithTimeout(ctx, h.captureWait)
	err := manager.WaitForScene(waitCtx)
	cancel()
	if err != nil {
		log.Printf("Live scene not ready: kiosk=%s, Error=%v", kioskID, err)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "Viewer has not finished loading",
		})
	}

	items, err := h.holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		return chainError(c, err)
	}
	base := req.Config
	stored := false
	if base == nil {
		base, stored, err = h.manager.LoadSceneConfigForHoldings(ctx, kioskID, items)
		if err != nil {
			return chainError(c, err)
		}
	} else {
		base = scene.MergeWithHoldings(base, items)
	}
	timings.Start("capture")
	captured := manager.CaptureCurrentSceneState(base, items)
	timings.End("capture")
	timings.SetObjectCount(len(captured.Objects))
	setTimingHeaders(c, timings)
	return c.JSON(SceneResponse{
		Config:     captured,
		PanelState: h.manager.ConvertSceneConfigToPanelState(captured, items),
		Stored:     stored,
	})
}

// ApplyScene handles POST /kiosks/:kioskId/scene/apply
// @Summary Apply a scene to connected viewers
// @Tags scenes
// @Accept json
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param request body SaveSceneRequest true "Config to apply"
// @Success 200 {object} map[string]interface{} "Applied"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 409 {object} map[string]interface{} "No viewer connected"
// @Router /kiosks/{kioskId}/scene/apply [post]
func (h *SceneHandler) ApplyScene(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	var req SaveSceneRequest
	if err := c.BodyParser(&req); err != nil || req.Config == nil {
		return badRequest(c, "A scene config is required")
	}
	manager, ok := h.liveManager(kioskID)
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "No viewer connected for kiosk",
		})
	}
	applied := manager.ApplySceneConfig(req.Config)
	viewers := h.live.Broadcast(kioskID, live.NewApplyMsg(req.Config))
	log.Printf("[SCENE] Applied scene: kiosk=%s, objects=%d, viewers=%d", kioskID, applied, viewers)
	return c.JSON(fiber.Map{
		"applied": applied,
		"viewers": viewers,
	})
}

// BuildSaveTransaction handles POST /kiosks/:kioskId/scene/transaction
// @Summary Build a scene save transaction
// @Description Encodes the config in compact form and returns the unsigned transaction that stores it
// @Tags transactions
// @Accept json
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param request body SaveSceneRequest true "Config and owner cap"
// @Success 200 {object} map[string]interface{} "Transaction"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /kiosks/{kioskId}/scene/transaction [post]
func (h *SceneHandler) BuildSaveTransaction(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	log.Printf("[SCENE] Building save transaction: kiosk=%s", kioskID)
	var req SaveSceneRequest
	if err := c.BodyParser(&req); err != nil || req.Config == nil {
		return badRequest(c, "A scene config is required")
	}
	if req.CapID == "" {
		return badRequest(c, "capId is required")
	}
	if dups := scene.DuplicateIDs(req.Config); len(dups) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      true,
			"message":    "Scene config has duplicate objects",
			"duplicates": dups,
		})
	}
	if req.Config.Metadata.KioskID == "" {
		req.Config.Metadata.KioskID = kioskID
	}

	tx, payload, err := h.manager.CreateSaveTransaction(req.Config, kioskID, req.CapID)
	if err != nil {
		log.Printf("Error building save transaction: kiosk=%s, Error=%v", kioskID, err)
		return badRequest(c, err.Error())
	}
	resp := fiber.Map{
		"transaction": tx,
		"size":        len(payload),
		"digest":      services.Digest(payload),
	}
	if h.snapshots != nil {
		if _, err := h.snapshots.Record(c.UserContext(), kioskID, req.Config, payload); err != nil {
			log.Printf("Error recording snapshot: kiosk=%s, Error=%v", kioskID, err)
		}
	}
	h.holdings.Invalidate(kioskID)
	return c.JSON(resp)
}

// ImportScene handles POST /kiosks/:kioskId/scene/import
// @Summary Import a scene config
// @Description Accepts a JSON file or an archive containing one, in either format, and reconciles it with current holdings
// @Tags scenes
// @Accept multipart/form-data
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param file formData file true "Scene config or bundle"
// @Param capId formData string false "Owner cap; a save transaction is built when set"
// @Success 200 {object} map[string]interface{} "Imported scene"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 413 {object} map[string]interface{} "Too large"
// @Failure 422 {object} map[string]interface{} "No usable scene config"
// @Router /kiosks/{kioskId}/scene/import [post]
func (h *SceneHandler) ImportScene(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	log.Printf("[SCENE] Importing scene: kiosk=%s", kioskID)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Printf("Error getting uploaded file: %v", err)
		return badRequest(c, "No file uploaded")
	}
	ctx, timings := h.begin(c, kioskID)

	timings.Start("extract")
	source, data, err := archive.FindSceneConfigInUpload(ctx, fileHeader, h.maxImportSize)
	timings.End("extract")
	switch {
	case errors.Is(err, archive.ErrTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error":   true,
			"message": "Scene config is too large",
		})
	case errors.Is(err, archive.ErrNoSceneConfig):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   true,
			"message": "No scene config found in upload",
		})
	case err != nil:
		log.Printf("Error reading upload: kiosk=%s, file=%s, Error=%v", kioskID, fileHeader.Filename, err)
		return badRequest(c, "Unreadable upload")
	}

	decoded, err := scene.DetectFormat(data)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   true,
			"message": "Scene config matches no known format",
		})
	}
	timings.SetFormat(decoded.Format.String())

	items, err := h.holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		return chainError(c, err)
	}
	cfg := scene.MergeWithHoldings(decoded.Config(), items)
	cfg.Metadata.KioskID = kioskID
	timings.SetObjectCount(len(cfg.Objects))

	resp := fiber.Map{
		"config":     cfg,
		"panelState": h.manager.ConvertSceneConfigToPanelState(cfg, items),
		"format":     decoded.Format.String(),
		"source":     source,
	}
	if capID := c.FormValue("capId"); capID != "" {
		tx, _, err := h.manager.CreateSaveTransaction(cfg, kioskID, capID)
		if err != nil {
			return badRequest(c, err.Error())
		}
		resp["transaction"] = tx
	}
	setTimingHeaders(c, timings)
	return c.JSON(resp)
}

// ListHistory handles GET /kiosks/:kioskId/scene/history
// @Summary List saved scene snapshots
// @Tags history
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} models.SceneSnapshot
// @Failure 503 {object} map[string]interface{} "History disabled"
// @Router /kiosks/{kioskId}/scene/history [get]
func (h *SceneHandler) ListHistory(c *fiber.Ctx) error {
	if h.snapshots == nil {
		return historyDisabled(c)
	}
	kioskID := c.Params("kioskId")
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		return badRequest(c, "Invalid limit")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	snapshots, err := h.snapshots.List(kioskID, limit)
	if err != nil {
		log.Printf("Error listing snapshots: kiosk=%s, Error=%v", kioskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list snapshots",
		})
	}
	return c.JSON(snapshots)
}

// GetHistory handles GET /kiosks/:kioskId/scene/history/:digest
// @Summary Get a saved scene snapshot
// @Tags history
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param digest path string true "Snapshot digest"
// @Success 200 {object} map[string]interface{} "Snapshot and config"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /kiosks/{kioskId}/scene/history/{digest} [get]
func (h *SceneHandler) GetHistory(c *fiber.Ctx) error {
	if h.snapshots == nil {
		return historyDisabled(c)
	}
	kioskID := c.Params("kioskId")
	digest := c.Params("digest")
	cfg, snapshot, err := h.snapshots.Load(c.UserContext(), kioskID, digest)
	if errors.Is(err, services.ErrSnapshotNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Snapshot not found",
		})
	}
	if err != nil {
		log.Printf("Error loading snapshot: kiosk=%s, digest=%s, Error=%v", kioskID, digest, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load snapshot",
		})
	}
	return c.JSON(fiber.Map{
		"snapshot": snapshot,
		"config":   cfg,
	})
}

// GetObjectProperties handles GET /kiosks/:kioskId/objects/:objectId/properties
// @Summary Get stored object properties
// @Tags objects
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param objectId path string true "Object ID"
// @Success 200 {object} models.ParsedObjectProperties
// @Failure 404 {object} map[string]interface{} "No properties stored"
// @Failure 502 {object} map[string]interface{} "Chain request failed"
// @Router /kiosks/{kioskId}/objects/{objectId}/properties [get]
func (h *SceneHandler) GetObjectProperties(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	objectID := c.Params("objectId")
	ctx, timings := h.begin(c, kioskID)

	props, err := h.manager.LoadObjectProperties(ctx, kioskID, objectID)
	if err != nil {
		log.Printf("Error loading object properties: kiosk=%s, object=%s, Error=%v", kioskID, objectID, err)
		return chainError(c, err)
	}
	setTimingHeaders(c, timings)
	if props == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "No properties stored for object",
		})
	}
	return c.JSON(props)
}

// BuildObjectTransaction handles POST /kiosks/:kioskId/objects/:objectId/transaction
// @Summary Build an object properties transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param kioskId path string true "Kiosk object ID"
// @Param objectId path string true "Object ID"
// @Param request body ObjectTransactionRequest true "Object placement"
// @Success 200 {object} map[string]interface{} "Transaction"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /kiosks/{kioskId}/objects/{objectId}/transaction [post]
func (h *SceneHandler) BuildObjectTransaction(c *fiber.Ctx) error {
	kioskID := c.Params("kioskId")
	objectID := c.Params("objectId")
	var req ObjectTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if req.CapID == "" {
		return badRequest(c, "capId is required")
	}
	if req.Scale == 0 {
		req.Scale = 1
	}
	tx, err := h.manager.CreateObjectPropertiesTransaction(kioskID, req.CapID, models.SceneObject{
		ID:        objectID,
		Displayed: req.Displayed,
		Position:  req.Position,
		Rotation:  req.Rotation,
		Scale:     req.Scale,
		UpdatedAt: models.Now(),
	})
	if err != nil {
		log.Printf("Error building object transaction: kiosk=%s, object=%s, Error=%v", kioskID, objectID, err)
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"transaction": tx})
}

// liveManager returns a manager bound to the kiosk's live graph.
func (h *SceneHandler) liveManager(kioskID string) (*services.SceneManager, bool) {
	if h.live == nil {
		return nil, false
	}
	graph, ok := h.live.Scene(kioskID)
	if !ok {
		return nil, false
	}
	return h.manager.WithScene(graph), true
}

func historyDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   true,
		"message": "Scene history is not configured",
	})
}
