package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StageTimings holds latency measurements for one scene request
type StageTimings struct {
	mu sync.RWMutex

	TotalStartTime time.Time `json:"-"`
	TotalLatencyMs float64   `json:"totalLatencyMs"`

	// Chain calls
	ChainCalls     int     `json:"chainCalls"`
	ChainLatencyMs float64 `json:"chainLatencyMs"`

	// Scene metadata
	KioskID     string `json:"kioskId"`
	Format      string `json:"format,omitempty"`
	ObjectCount int    `json:"objectCount"`

	// Per-stage breakdown, keyed by stage name
	Timings map[string]float64 `json:"timings"`

	starts map[string]time.Time
}

// NewStageTimings creates a new timing collector
func NewStageTimings(kioskID string) *StageTimings {
	return &StageTimings{
		TotalStartTime: time.Now(),
		KioskID:        kioskID,
		Timings:        make(map[string]float64),
		starts:         make(map[string]time.Time),
	}
}

type timingsKey struct{}

// WithTimings attaches m to ctx so lower layers can record into it
func WithTimings(ctx context.Context, m *StageTimings) context.Context {
	return context.WithValue(ctx, timingsKey{}, m)
}

// TimingsFrom returns the collector attached to ctx, or nil. All methods accept a nil receiver.
func TimingsFrom(ctx context.Context) *StageTimings {
	m, _ := ctx.Value(timingsKey{}).(*StageTimings)
	return m
}

// Start marks the start of a stage
func (m *StageTimings) Start(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts[stage] = time.Now()
}

// End marks the end of a stage started with Start
func (m *StageTimings) End(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if start, ok := m.starts[stage]; ok {
		m.Timings[stage] = sinceMs(start)
		delete(m.starts, stage)
	}
}

// RecordChainCall adds one chain round trip
func (m *StageTimings) RecordChainCall(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChainCalls++
	m.ChainLatencyMs += float64(d.Microseconds()) / 1000.0
}

// SetFormat records the detected stored format
func (m *StageTimings) SetFormat(format string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Format = format
}

// SetObjectCount records how many scene objects the request produced
func (m *StageTimings) SetObjectCount(n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ObjectCount = n
}

// Finalize calculates the total latency
func (m *StageTimings) Finalize() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.TotalStartTime.IsZero() {
		m.TotalLatencyMs = sinceMs(m.TotalStartTime)
		m.Timings["total"] = m.TotalLatencyMs
	}
}

// GetHeaders returns HTTP headers with the collected timings
func (m *StageTimings) GetHeaders() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	headers := make(map[string]string)
	headers["X-Latency-Total-Ms"] = formatFloat(m.TotalLatencyMs)
	headers["X-Chain-Calls"] = fmt.Sprintf("%d", m.ChainCalls)
	if m.ChainCalls > 0 {
		headers["X-Latency-Chain-Ms"] = formatFloat(m.ChainLatencyMs)
	}
	if m.Format != "" {
		headers["X-Scene-Format"] = m.Format
	}
	headers["X-Scene-Objects"] = fmt.Sprintf("%d", m.ObjectCount)

	stages := make([]string, 0, len(m.Timings))
	for stage := range m.Timings {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	parts := make([]string, 0, len(stages))
	for _, stage := range stages {
		parts = append(parts, stage+"="+formatFloat(m.Timings[stage]))
	}
	headers["X-Scene-Timings"] = strings.Join(parts, ";")
	return headers
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
