package live

import (
	"encoding/json"
	"log"
	"sync"

	"gallery-service/internal/metrics"
	"gallery-service/internal/scenegraph"
)

// Hub tracks the live scene of every kiosk with at least one connected viewer. Viewers of the
// same kiosk share one graph.
type Hub struct {
	mu     sync.RWMutex
	kiosks map[string]*kioskScene
}

type kioskScene struct {
	graph    *scenegraph.Graph
	sessions map[string]chan []byte
}

func NewHub() *Hub {
	return &Hub{kiosks: make(map[string]*kioskScene)}
}

// join registers a session and returns the kiosk's graph.
func (h *Hub) join(kioskID, sessionID string, out chan []byte) *scenegraph.Graph {
	h.mu.Lock()
	defer h.mu.Unlock()
	ks, ok := h.kiosks[kioskID]
	if !ok {
		ks = &kioskScene{graph: scenegraph.NewGraph(), sessions: make(map[string]chan []byte)}
		h.kiosks[kioskID] = ks
	}
	ks.sessions[sessionID] = out
	metrics.LiveSessions.Inc()
	return ks.graph
}

// leave drops a session; the kiosk's graph goes with its last viewer.
func (h *Hub) leave(kioskID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ks, ok := h.kiosks[kioskID]
	if !ok {
		return
	}
	if _, ok := ks.sessions[sessionID]; !ok {
		return
	}
	delete(ks.sessions, sessionID)
	metrics.LiveSessions.Dec()
	if len(ks.sessions) == 0 {
		delete(h.kiosks, kioskID)
	}
}

// Scene returns the live graph of a kiosk, if a viewer is connected.
func (h *Hub) Scene(kioskID string) (*scenegraph.Graph, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ks, ok := h.kiosks[kioskID]
	if !ok {
		return nil, false
	}
	return ks.graph, true
}

// Sessions returns the number of viewers connected for a kiosk.
func (h *Hub) Sessions(kioskID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ks, ok := h.kiosks[kioskID]; ok {
		return len(ks.sessions)
	}
	return 0
}

// Broadcast queues v for every viewer of a kiosk and returns how many accepted it. A viewer
// whose queue is full misses the message.
func (h *Hub) Broadcast(kioskID string, v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding live message: kiosk=%s, Error=%v", kioskID, err)
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	ks, ok := h.kiosks[kioskID]
	if !ok {
		return 0
	}
	sent := 0
	for id, out := range ks.sessions {
		select {
		case out <- b:
			sent++
		default:
			log.Printf("Live session queue full: kiosk=%s, session=%s", kioskID, id)
		}
	}
	return sent
}
