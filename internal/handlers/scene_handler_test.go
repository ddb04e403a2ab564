package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gallery-service/internal/chain"
	"gallery-service/internal/codec"
	"gallery-service/internal/models"
	"gallery-service/internal/scenegraph"
	"gallery-service/internal/services"
	"gallery-service/internal/services/caches"
)

const (
	kioskA = "0x00000000000000000000000000000000000000000000000000000000000000aa"
	itemA  = "0x0000000000000000000000000000000000000000000000000000000000000a01"
	itemB  = "0x0000000000000000000000000000000000000000000000000000000000000b02"
	capA   = "0x00000000000000000000000000000000000000000000000000000000000000c1"
)

type chainStub struct {
	items     map[string][]models.KioskItem
	config    string
	hasConfig bool
	props     []byte
}

func (s *chainStub) GetSceneConfigJSON(ctx context.Context, kioskID string) (string, bool, error) {
	return s.config, s.hasConfig, nil
}

func (s *chainStub) DevInspectObjectProperties(ctx context.Context, kioskID, objectID string) ([]byte, error) {
	return s.props, nil
}

func (s *chainStub) GetKioskItems(ctx context.Context, kioskID string) ([]models.KioskItem, error) {
	items, ok := s.items[kioskID]
	if !ok {
		return nil, chain.ErrNotFound
	}
	return items, nil
}

type snapshotRows struct {
	rows []models.SceneSnapshot
}

func (r *snapshotRows) Create(s *models.SceneSnapshot) error {
	r.rows = append(r.rows, *s)
	return nil
}

func (r *snapshotRows) FindByDigest(kioskID, digest string) (*models.SceneSnapshot, error) {
	for i := range r.rows {
		if r.rows[i].KioskID == kioskID && r.rows[i].Digest == digest {
			row := r.rows[i]
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *snapshotRows) ListByKiosk(kioskID string, limit int) ([]models.SceneSnapshot, error) {
	var out []models.SceneSnapshot
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].KioskID == kioskID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

type liveStub struct {
	graphs    map[string]*scenegraph.Graph
	broadcast []any
}

func (l *liveStub) Scene(kioskID string) (*scenegraph.Graph, bool) {
	g, ok := l.graphs[kioskID]
	return g, ok
}

func (l *liveStub) Broadcast(kioskID string, v any) int {
	l.broadcast = append(l.broadcast, v)
	return 1
}

func testItems() []models.KioskItem {
	return []models.KioskItem{
		{ObjectID: itemA, Type: "0x9::art::Piece", Display: map[string]any{"name": "Vase", "image_url": "https://img/a.png"}},
		{ObjectID: itemB, Type: "0x9::art::Piece", Display: map[string]any{"name": "Bust"}},
	}
}

func newTestApp(t *testing.T, stub *chainStub, liveScenes LiveScenes) *fiber.App {
	t.Helper()
	if stub.items == nil {
		stub.items = map[string][]models.KioskItem{kioskA: testItems()}
	}
	mc := caches.NewMemoryCache(1<<20, 0)
	t.Cleanup(mc.Close)
	holdings := services.NewHoldingsService(stub, mc)
	snapshots, err := services.NewSnapshotService(&snapshotRows{}, nil)
	require.NoError(t, err)
	manager := services.NewSceneManager(stub, "0x2a", nil)

	app := fiber.New()
	api := app.Group("/api/gallery")
	RegisterRoutes(api, NewSceneHandler(manager, holdings, snapshots, liveScenes, 1<<20), NewCacheHandler(holdings))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func sceneObjects(t *testing.T, body map[string]any) []any {
	t.Helper()
	cfg, ok := body["config"].(map[string]any)
	require.True(t, ok, "response has a config")
	objects, _ := cfg["objects"].([]any)
	return objects
}

func TestListItems(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/items", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Latency-Total-Ms"))

	var items []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, "Vase", items[0]["name"])
	resource := items[0]["resource"].(map[string]any)
	assert.Equal(t, string(models.ResourceImage), resource["type"])

	resp, body := doJSON(t, app, http.MethodGet, "/api/gallery/kiosks/0xmissing/items", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, true, body["error"])
}

func TestGetSceneDefaultsWhenNothingStored(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/scene", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["stored"])
	assert.Len(t, sceneObjects(t, body), 2)
	assert.Equal(t, "2", resp.Header.Get("X-Scene-Objects"))
}

func TestGetSceneUsesStoredConfig(t *testing.T) {
	stored := &models.SceneConfig{
		Objects: []models.SceneObject{
			{ID: itemA, Type: models.ResourceImage, Displayed: true, Position: models.Vector3{X: 4, Y: 1}, Scale: 2},
		},
		Metadata: models.SceneMetadata{KioskID: kioskA},
	}
	raw, err := json.Marshal(codec.Compress(stored))
	require.NoError(t, err)
	app := newTestApp(t, &chainStub{config: string(raw), hasConfig: true}, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/scene", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["stored"])
	assert.Equal(t, "compact", resp.Header.Get("X-Scene-Format"))

	objects := sceneObjects(t, body)
	require.Len(t, objects, 2, "unplaced holdings are appended")
	first := objects[0].(map[string]any)
	assert.Equal(t, itemA, first["id"])
	assert.Equal(t, true, first["displayed"])
	assert.Equal(t, 4.0, first["position"].(map[string]any)["x"])

	panel := body["panelState"].(map[string]any)
	assert.Equal(t, []any{itemA}, panel["displayedItems"])

	resp, stats := doJSON(t, app, http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/scene/stats", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, stats["totalObjects"])
	assert.Equal(t, 1.0, stats["displayedObjects"])
}

func TestCreateScene(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene", CreateSceneRequest{Creator: "0xowner"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	cfg := body["config"].(map[string]any)
	assert.Equal(t, "0xowner", cfg["metadata"].(map[string]any)["creator"])
	assert.Len(t, sceneObjects(t, body), 2)
}

func TestBuildSaveTransactionRecordsHistory(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)
	cfg := &models.SceneConfig{Objects: []models.SceneObject{
		{ID: itemA, Type: models.ResourceImage, Displayed: true, Scale: 1},
	}}
	path := "/api/gallery/kiosks/" + kioskA + "/scene/transaction"

	resp, _ := doJSON(t, app, http.MethodPost, path, SaveSceneRequest{Config: cfg})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "capId is required")

	resp, body := doJSON(t, app, http.MethodPost, path, SaveSceneRequest{CapID: capA, Config: cfg})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	digest, _ := body["digest"].(string)
	require.Len(t, digest, 16)
	tx := body["transaction"].(map[string]any)
	calls := tx["calls"].([]any)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]any)
	assert.Contains(t, call["target"], "::gallery::")
	carried := call["arguments"].([]any)[2].(map[string]any)["value"].(string)
	assert.Equal(t, services.Digest([]byte(carried)), digest, "digest covers the payload the transaction carries")
	assert.Equal(t, float64(len(carried)), body["size"])

	req := httptest.NewRequest(http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/scene/history", nil)
	histResp, err := app.Test(req, -1)
	require.NoError(t, err)
	var history []map[string]any
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, digest, history[0]["digest"])
	assert.Equal(t, 1.0, history[0]["displayed_count"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/scene/history/"+digest, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, sceneObjects(t, body), 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/gallery/kiosks/"+kioskA+"/scene/history/ffffffffffffffff", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBuildSaveTransactionRejectsDuplicates(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)
	cfg := &models.SceneConfig{Objects: []models.SceneObject{{ID: itemA, Scale: 1}, {ID: itemA, Scale: 1}}}

	resp, body := doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/transaction", SaveSceneRequest{CapID: capA, Config: cfg})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []any{itemA}, body["duplicates"])
}

func uploadRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestImportScene(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)
	path := "/api/gallery/kiosks/" + kioskA + "/scene/import"
	data := []byte(`{"o":[{"id":"` + itemB + `","t":"g","d":true,"p":[1000,0,-2000],"r":[0,0,0],"s":1500}],"m":{"k":"0xother"}}`)

	resp, err := app.Test(uploadRequest(t, path, "scene.json", data, map[string]string{"capId": capA}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "compact", body["format"])
	assert.Equal(t, "scene.json", body["source"])
	assert.NotNil(t, body["transaction"])

	objects := sceneObjects(t, body)
	require.Len(t, objects, 2)
	first := objects[0].(map[string]any)
	assert.Equal(t, itemB, first["id"])
	assert.Equal(t, 1.5, first["scale"])
	assert.Equal(t, kioskA, body["config"].(map[string]any)["metadata"].(map[string]any)["kioskId"])

	resp, err = app.Test(uploadRequest(t, path, "scene.json", []byte(`{"foo":1}`), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, path, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file uploaded", body["message"])
}

func TestCaptureAndApplyNeedLiveViewer(t *testing.T) {
	app := newTestApp(t, &chainStub{}, &liveStub{graphs: map[string]*scenegraph.Graph{}})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/capture", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	cfg := &models.SceneConfig{Objects: []models.SceneObject{{ID: itemA, Displayed: true, Scale: 1}}}
	resp, _ = doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/apply", SaveSceneRequest{Config: cfg})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestCaptureScene(t *testing.T) {
	graph := scenegraph.NewGraph()
	node := graph.AddObjectNode(nil, itemA)
	node.SetPose(scenegraph.Pose{
		Position: mgl64.Vec3{5, 1, -2},
		Scale:    mgl64.Vec3{3, 3, 3},
	})
	graph.MarkReady()
	app := newTestApp(t, &chainStub{}, &liveStub{graphs: map[string]*scenegraph.Graph{kioskA: graph}})

	resp, body := doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/capture", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	objects := sceneObjects(t, body)
	require.Len(t, objects, 2)

	a := objects[0].(map[string]any)
	assert.Equal(t, itemA, a["id"])
	assert.Equal(t, true, a["displayed"])
	assert.Equal(t, 5.0, a["position"].(map[string]any)["x"])
	assert.Equal(t, 3.0, a["scale"])

	b := objects[1].(map[string]any)
	assert.Equal(t, false, b["displayed"], "held items without a node are hidden")
}

func TestCaptureSceneWaitsForReady(t *testing.T) {
	graph := scenegraph.NewGraph()
	stub := &chainStub{}
	app := newTestApp(t, stub, &liveStub{graphs: map[string]*scenegraph.Graph{kioskA: graph}})

	req := httptest.NewRequest(http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/capture", nil)
	go func() {
		graph.MarkReady()
	}()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestApplyScene(t *testing.T) {
	graph := scenegraph.NewGraph()
	node := graph.AddObjectNode(nil, itemA)
	liveScenes := &liveStub{graphs: map[string]*scenegraph.Graph{kioskA: graph}}
	app := newTestApp(t, &chainStub{}, liveScenes)

	cfg := &models.SceneConfig{Objects: []models.SceneObject{
		{ID: itemA, Displayed: false, Position: models.Vector3{X: 9}, Scale: 2},
		{ID: itemB, Displayed: true, Scale: 1},
	}}
	resp, body := doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/apply", SaveSceneRequest{Config: cfg})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["applied"])
	assert.Equal(t, 1.0, body["viewers"])
	assert.Len(t, liveScenes.broadcast, 1)
	assert.False(t, node.Visible())
	assert.Equal(t, 9.0, node.Pose().Position.X())

	resp, _ = doJSON(t, app, http.MethodPost, "/api/gallery/kiosks/"+kioskA+"/scene/apply", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestObjectProperties(t *testing.T) {
	stub := &chainStub{}
	app := newTestApp(t, stub, nil)
	path := "/api/gallery/kiosks/" + kioskA + "/objects/" + itemA + "/properties"

	resp, _ := doJSON(t, app, http.MethodGet, path, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	stub.props = codec.EncodeObjectProperties(&models.ParsedObjectProperties{
		Displayed: true,
		Position:  models.Vector3{X: -1.5, Y: 2},
		Scale:     1,
		UpdatedAt: 42,
	})
	resp, body := doJSON(t, app, http.MethodGet, path, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["displayed"])
	assert.Equal(t, -1.5, body["position"].(map[string]any)["x"])
	assert.Equal(t, 42.0, body["updated_at"])
}

func TestBuildObjectTransaction(t *testing.T) {
	app := newTestApp(t, &chainStub{}, nil)
	path := "/api/gallery/kiosks/" + kioskA + "/objects/" + itemA + "/transaction"

	resp, _ := doJSON(t, app, http.MethodPost, path, ObjectTransactionRequest{Displayed: true})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, path, ObjectTransactionRequest{
		CapID:     capA,
		Displayed: true,
		Position:  models.Vector3{X: -1},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	calls := body["transaction"].(map[string]any)["calls"].([]any)
	require.Len(t, calls, 1)
	args := calls[0].(map[string]any)["arguments"].([]any)
	scale := args[len(args)-1].(map[string]any)
	assert.Equal(t, "1000", scale["value"], "zero scale defaults to 1")
}

func TestCacheEndpoints(t *testing.T) {
	stub := &chainStub{items: map[string][]models.KioskItem{kioskA: testItems(), "0xk2": nil}}
	app := newTestApp(t, stub, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/gallery/cache/preload", PreloadRequest{KioskIDs: []string{kioskA, "0xk2", kioskA}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["loaded"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/gallery/cache/preload", PreloadRequest{KioskIDs: []string{"0xmissing"}})
	assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)
	assert.True(t, strings.Contains(body["error"].(string), "0xmissing"))

	resp, body = doJSON(t, app, http.MethodGet, "/api/gallery/cache/stats", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["objects"])

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/gallery/cache/kiosks/"+kioskA, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/gallery/cache/clear", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, body = doJSON(t, app, http.MethodGet, "/api/gallery/cache/stats", nil)
	assert.Equal(t, 0.0, body["objects"])
}
