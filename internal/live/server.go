package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gallery-service/internal/models"
	"gallery-service/internal/scenegraph"
	"gallery-service/internal/services"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	readyTimeout     = 15 * time.Second
	sendQueue        = 16
)

// SceneSource supplies the config applied to a viewer once it reports ready.
type SceneSource interface {
	ViewerScene(ctx context.Context, kioskID string) (*models.SceneConfig, error)
}

type Server struct {
	hub     *Hub
	manager *services.SceneManager
	source  SceneSource

	upgrader websocket.Upgrader
}

// NewServer creates the live websocket server. source may be nil, in which case nothing is
// applied when a viewer becomes ready.
func NewServer(hub *Hub, manager *services.SceneManager, source SceneSource) *Server {
	return &Server{
		hub:     hub,
		manager: manager,
		source:  source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		kioskID, ok := s.handshake(conn)
		if !ok {
			return
		}
		sessionID := uuid.NewString()
		out := make(chan []byte, sendQueue)
		graph := s.hub.join(kioskID, sessionID, out)
		defer s.hub.leave(kioskID, sessionID)

		if err := writeJSON(conn, WelcomeMsg{
			Type:            TypeWelcome,
			ProtocolVersion: ProtocolVersion,
			SessionID:       sessionID,
			KioskID:         kioskID,
		}); err != nil {
			return
		}
		log.Printf("Live session opened: kiosk=%s, session=%s", kioskID, sessionID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handle(ctx, kioskID, graph, out, msg)
		}
		log.Printf("Live session closed: kiosk=%s, session=%s", kioskID, sessionID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}
	base, err := DecodeBase(msg)
	if err != nil || base.Type != TypeHello {
		closeWith(conn, "expected HELLO")
		return "", false
	}
	var hello HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != ProtocolVersion {
		closeWith(conn, "bad protocol_version")
		return "", false
	}
	kioskID := strings.TrimSpace(hello.KioskID)
	if kioskID == "" {
		closeWith(conn, "missing kiosk_id")
		return "", false
	}
	return kioskID, true
}

func (s *Server) handle(ctx context.Context, kioskID string, graph *scenegraph.Graph, out chan []byte, msg []byte) {
	base, err := DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case TypeSpawn:
		var spawn SpawnMsg
		if err := json.Unmarshal(msg, &spawn); err != nil || spawn.ObjectID == "" {
			return
		}
		graph.AddObjectNode(nil, spawn.ObjectID)
	case TypeDespawn:
		var despawn DespawnMsg
		if err := json.Unmarshal(msg, &despawn); err != nil {
			return
		}
		graph.RemoveObjectNode(despawn.ObjectID)
	case TypePose:
		var pose PoseMsg
		if err := json.Unmarshal(msg, &pose); err != nil {
			return
		}
		applyPose(graph, pose)
	case TypeReady:
		graph.MarkReady()
		s.applyStored(ctx, kioskID, graph, out)
	default:
		queue(out, ErrorMsg{Type: TypeError, Message: "unknown message type " + base.Type})
	}
}

func applyPose(graph *scenegraph.Graph, pose PoseMsg) {
	node, ok := graph.Lookup(pose.ObjectID)
	if !ok {
		return
	}
	scale := mgl64.Vec3(pose.Scale)
	if scale == (mgl64.Vec3{}) {
		scale = mgl64.Vec3{1, 1, 1}
	}
	node.SetPose(scenegraph.Pose{
		Position: mgl64.Vec3(pose.Position),
		Rotation: mgl64.Vec3(pose.Rotation),
		Scale:    scale,
	})
	if pose.Visible != nil {
		node.SetVisible(*pose.Visible)
	}
}

// applyStored loads the kiosk's scene, writes it onto the graph and tells the viewer.
func (s *Server) applyStored(ctx context.Context, kioskID string, graph *scenegraph.Graph, out chan []byte) {
	if s.source == nil || s.manager == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	cfg, err := s.source.ViewerScene(ctx, kioskID)
	if err != nil {
		log.Printf("Error loading scene for live session: kiosk=%s, Error=%v", kioskID, err)
		queue(out, ErrorMsg{Type: TypeError, Message: "scene unavailable"})
		return
	}
	s.manager.WithScene(graph).ApplySceneConfig(cfg)
	queue(out, NewApplyMsg(cfg))
}

func queue(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
