// Package live mirrors the viewer's scene graph over a websocket so the service can capture
// and apply scene state. The viewer announces its kiosk, spawns one node per rendered item,
// streams poses and reports ready once its initial load is done.
package live

import (
	"encoding/json"

	"gallery-service/internal/models"
)

const ProtocolVersion = 1

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeSpawn   = "SPAWN"
	TypeDespawn = "DESPAWN"
	TypePose    = "POSE"
	TypeReady   = "READY"
	TypeApply   = "APPLY"
	TypeError   = "ERROR"
)

type BaseMsg struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMsg, error) {
	var base BaseMsg
	err := json.Unmarshal(b, &base)
	return base, err
}

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
	KioskID         string `json:"kiosk_id"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	KioskID         string `json:"kiosk_id"`
}

// SpawnMsg and DespawnMsg announce that the viewer created or removed the node for an object.
type SpawnMsg struct {
	Type     string `json:"type"`
	ObjectID string `json:"object_id"`
}

type DespawnMsg struct {
	Type     string `json:"type"`
	ObjectID string `json:"object_id"`
}

// PoseMsg carries a node's local transform. Rotation is Euler radians.
type PoseMsg struct {
	Type     string     `json:"type"`
	ObjectID string     `json:"object_id"`
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
	Visible  *bool      `json:"visible,omitempty"`
}

type ReadyMsg struct {
	Type string `json:"type"`
}

// ApplyMsg tells the viewer where to put its nodes.
type ApplyMsg struct {
	Type    string        `json:"type"`
	Objects []ApplyObject `json:"objects"`
}

type ApplyObject struct {
	ObjectID string         `json:"object_id"`
	Visible  bool           `json:"visible"`
	Position models.Vector3 `json:"position"`
	Rotation models.Vector3 `json:"rotation"`
	Scale    float64        `json:"scale"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewApplyMsg converts a scene config into the viewer's apply message.
func NewApplyMsg(cfg *models.SceneConfig) ApplyMsg {
	msg := ApplyMsg{Type: TypeApply, Objects: []ApplyObject{}}
	if cfg == nil {
		return msg
	}
	for _, obj := range cfg.Objects {
		msg.Objects = append(msg.Objects, ApplyObject{
			ObjectID: obj.ID,
			Visible:  obj.Displayed,
			Position: obj.Position,
			Rotation: obj.Rotation,
			Scale:    obj.Scale,
		})
	}
	return msg
}
