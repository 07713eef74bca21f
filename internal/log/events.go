package log

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventVersion is the current event schema version.
const EventVersion = 1

// Event captures one monitor activity record.
type Event struct {
	Version     int    `json:"v"`        // Schema version, always 1
	TimestampMs int64  `json:"ts_ms"`    // Unix milliseconds
	EventID     string `json:"event_id"` // "evt-abc123"
	Type        string `json:"type"`     // "cycle", "escalation", "dispatch", "response", ...
	Source      string `json:"source,omitempty"`

	Cycle     int     `json:"cycle,omitempty"`
	Verdict   string  `json:"verdict,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Response  string  `json:"response,omitempty"`
	Error     string  `json:"error,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Count     int     `json:"count,omitempty"`
}

// WithCycle sets the cycle number.
func (e Event) WithCycle(cycle int) Event {
	e.Cycle = cycle
	return e
}

// WithVerdict sets the verdict field.
func (e Event) WithVerdict(v string) Event {
	e.Verdict = v
	return e
}

// WithStage sets the escalation stage.
func (e Event) WithStage(stage string) Event {
	e.Stage = stage
	return e
}

// WithResponse sets the user response.
func (e Event) WithResponse(r string) Event {
	e.Response = r
	return e
}

// WithError sets the error field.
func (e Event) WithError(err string) Event {
	e.Error = err
	return e
}

// WithLatency sets the latency field in milliseconds.
func (e Event) WithLatency(latencyMs float64) Event {
	e.LatencyMs = latencyMs
	return e
}

// WithCount sets the count field.
func (e Event) WithCount(count int) Event {
	e.Count = count
	return e
}

const (
	EventTypeCycle             = "cycle"
	EventTypeEscalation        = "escalation"
	EventTypeDispatch          = "dispatch"
	EventTypeResponse          = "response"
	EventTypeBreakStart        = "break_start"
	EventTypeBreakEnd          = "break_end"
	EventTypeDisabled          = "disabled"
	EventTypeSampleError       = "sample_error"
	EventTypeJudgeError        = "judge_error"
	EventTypePresentationError = "presentation_error"
)

// GenerateEventID returns an evt- prefixed 8-hex identifier.
func GenerateEventID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		n := time.Now().UnixNano()
		buf[0] = byte(n)
		buf[1] = byte(n >> 8)
		buf[2] = byte(n >> 16)
		buf[3] = byte(n >> 24)
	}
	return "evt-" + hex.EncodeToString(buf)
}

// NewEvent creates a new event with schema defaults.
func NewEvent(eventType, source string) Event {
	return Event{
		Version:     EventVersion,
		TimestampMs: time.Now().UnixMilli(),
		EventID:     GenerateEventID(),
		Type:        eventType,
		Source:      source,
	}
}

// EventLog writes append-only JSONL logs. Safe for concurrent use; a nil
// *EventLog discards everything.
type EventLog struct {
	path string
	mu   sync.Mutex
}

func NewEventLog(logDir string) *EventLog {
	return &EventLog{path: filepath.Join(logDir, "events.jsonl")}
}

// Path returns the JSONL file path.
func (l *EventLog) Path() string {
	return l.path
}

func (l *EventLog) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Version == 0 {
		event.Version = EventVersion
	}
	if event.TimestampMs == 0 {
		event.TimestampMs = time.Now().UnixMilli()
	}
	if event.EventID == "" {
		event.EventID = GenerateEventID()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}
