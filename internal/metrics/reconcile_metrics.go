package metrics

import (
	"fmt"
	"time"
)

// ReconcileMetrics tracks one pass that matched scene objects against live nodes
type ReconcileMetrics struct {
	StartTime   time.Time `json:"-"`
	Operation   string    `json:"operation"`
	LatencyMs   float64   `json:"latencyMs"`
	ObjectCount int       `json:"objectCount"`
	Found       int       `json:"found"`
	Missing     int       `json:"missing"`
	Skipped     int       `json:"skipped"`
}

// NewReconcileMetrics starts timing a capture or apply pass
func NewReconcileMetrics(operation string) *ReconcileMetrics {
	return &ReconcileMetrics{StartTime: time.Now(), Operation: operation}
}

// Hit counts an object whose node was found
func (rm *ReconcileMetrics) Hit() {
	rm.ObjectCount++
	rm.Found++
	ReconcileTotal.WithLabelValues(rm.Operation, "hit").Inc()
}

// Miss counts an object with no node in the scene
func (rm *ReconcileMetrics) Miss() {
	rm.ObjectCount++
	rm.Missing++
	ReconcileTotal.WithLabelValues(rm.Operation, "miss").Inc()
}

// Skip counts an object left untouched because it is not held
func (rm *ReconcileMetrics) Skip() {
	rm.ObjectCount++
	rm.Skipped++
}

// Finish records the pass latency
func (rm *ReconcileMetrics) Finish() {
	rm.LatencyMs = float64(time.Since(rm.StartTime).Microseconds()) / 1000.0
}

// GetSummary returns a human-readable summary of the pass
func (rm *ReconcileMetrics) GetSummary() string {
	return fmt.Sprintf(
		"%s summary: %d objects, %d found, %d missing, %d skipped, Duration: %.2f ms",
		rm.Operation, rm.ObjectCount, rm.Found, rm.Missing, rm.Skipped, rm.LatencyMs,
	)
}
