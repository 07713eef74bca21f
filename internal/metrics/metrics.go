// Package metrics tracks monitor counters and writes the status.json snapshot
// that `focusd status` reads.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/norm/focusd/internal/ledger"
	"github.com/norm/focusd/internal/verdict"
)

// FileName is the snapshot file inside the state directory.
const FileName = "status.json"

// Metrics tracks monitor operational counters. Counters are safe to bump from
// dispatcher goroutines; SetState is called by the loop.
type Metrics struct {
	mu sync.RWMutex

	// Cycle metrics
	Cycles             atomic.Int64
	ProductiveCycles   atomic.Int64
	UnproductiveCycles atomic.Int64
	UnknownCycles      atomic.Int64

	// Failure metrics
	SamplingFailures     atomic.Int64
	JudgeFailures        atomic.Int64
	PresentationFailures atomic.Int64

	// Intervention metrics
	Breaks     atomic.Int64
	dispatches map[string]int64
	responses  map[string]int64

	// Judge latency (nanoseconds)
	lastJudgeLatencyNs  atomic.Int64
	totalJudgeLatencyNs atomic.Int64
	judgeLatencyCount   atomic.Int64

	// Loop state
	runID     string
	mode      string
	stage     string
	totals    ledger.Totals
	startTime time.Time
	stateDir  string
}

// New creates a metrics tracker that saves into stateDir. An empty stateDir
// disables Save.
func New(stateDir, runID string) *Metrics {
	return &Metrics{
		dispatches: make(map[string]int64),
		responses:  make(map[string]int64),
		runID:      runID,
		mode:       "running",
		stage:      "none",
		startTime:  time.Now(),
		stateDir:   stateDir,
	}
}

// RecordCycle counts one completed check.
func (m *Metrics) RecordCycle(v verdict.Verdict) {
	m.Cycles.Add(1)
	switch v {
	case verdict.Productive:
		m.ProductiveCycles.Add(1)
	case verdict.Unproductive:
		m.UnproductiveCycles.Add(1)
	default:
		m.UnknownCycles.Add(1)
	}
}

func (m *Metrics) RecordSamplingFailure() { m.SamplingFailures.Add(1) }

func (m *Metrics) RecordJudgeFailure() { m.JudgeFailures.Add(1) }

func (m *Metrics) RecordPresentationFailure() { m.PresentationFailures.Add(1) }

func (m *Metrics) RecordBreak() { m.Breaks.Add(1) }

// RecordJudgeLatency records how long one judge call took.
func (m *Metrics) RecordJudgeLatency(d time.Duration) {
	m.lastJudgeLatencyNs.Store(d.Nanoseconds())
	m.totalJudgeLatencyNs.Add(d.Nanoseconds())
	m.judgeLatencyCount.Add(1)
}

// RecordDispatch counts an intervention for stage.
func (m *Metrics) RecordDispatch(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches[stage]++
}

// RecordResponse counts a prompt answer. An empty response is a dismissal.
func (m *Metrics) RecordResponse(response string) {
	if response == "" {
		response = "none"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[response]++
}

// SetState records the loop's current mode, stage and ledger totals.
func (m *Metrics) SetState(mode, stage string, totals ledger.Totals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	m.stage = stage
	m.totals = totals
}

// Snapshot is the JSON form of the metrics.
type Snapshot struct {
	SnapshotTimeMs int64  `json:"snapshot_time_ms"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	RunID          string `json:"run_id,omitempty"`
	PID            int    `json:"pid"`

	Mode   string        `json:"mode"`
	Stage  string        `json:"stage"`
	Totals ledger.Totals `json:"totals"`

	Cycles             int64 `json:"cycles"`
	ProductiveCycles   int64 `json:"productive_cycles"`
	UnproductiveCycles int64 `json:"unproductive_cycles"`
	UnknownCycles      int64 `json:"unknown_cycles"`

	SamplingFailures     int64 `json:"sampling_failures"`
	JudgeFailures        int64 `json:"judge_failures"`
	PresentationFailures int64 `json:"presentation_failures"`

	Breaks     int64            `json:"breaks"`
	Dispatches map[string]int64 `json:"dispatches,omitempty"`
	Responses  map[string]int64 `json:"responses,omitempty"`

	LastJudgeLatencyMs float64 `json:"last_judge_latency_ms"`
	AvgJudgeLatencyMs  float64 `json:"avg_judge_latency_ms"`
}

// Snapshot returns current metrics.
func (m *Metrics) Snapshot() Snapshot {
	count := m.judgeLatencyCount.Load()
	var avg float64
	if count > 0 {
		avg = float64(m.totalJudgeLatencyNs.Load()) / float64(count) / 1e6
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		SnapshotTimeMs:       time.Now().UnixMilli(),
		UptimeSeconds:        int64(time.Since(m.startTime).Seconds()),
		RunID:                m.runID,
		PID:                  os.Getpid(),
		Mode:                 m.mode,
		Stage:                m.stage,
		Totals:               m.totals,
		Cycles:               m.Cycles.Load(),
		ProductiveCycles:     m.ProductiveCycles.Load(),
		UnproductiveCycles:   m.UnproductiveCycles.Load(),
		UnknownCycles:        m.UnknownCycles.Load(),
		SamplingFailures:     m.SamplingFailures.Load(),
		JudgeFailures:        m.JudgeFailures.Load(),
		PresentationFailures: m.PresentationFailures.Load(),
		Breaks:               m.Breaks.Load(),
		Dispatches:           copyCounts(m.dispatches),
		Responses:            copyCounts(m.responses),
		LastJudgeLatencyMs:   float64(m.lastJudgeLatencyNs.Load()) / 1e6,
		AvgJudgeLatencyMs:    avg,
	}
}

// Save persists the snapshot to <stateDir>/status.json.
func (m *Metrics) Save() error {
	if m.stateDir == "" {
		return nil
	}

	path := filepath.Join(m.stateDir, FileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a saved snapshot from stateDir.
func Load(stateDir string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(filepath.Join(stateDir, FileName))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return snap, nil
}

func copyCounts(src map[string]int64) map[string]int64 {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
