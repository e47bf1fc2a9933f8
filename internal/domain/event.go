// Package domain defines the data model shared across the traffic service.
package domain

import "time"

// Tool identifies one of the wrapped traffic tools (or the credential session).
type Tool string

const (
	ToolThroughput Tool = "throughput" // iperf3
	ToolLatency    Tool = "latency"    // sockperf
	ToolPacketGen  Tool = "packetgen"  // mausezahn
	ToolVideo      Tool = "video"      // gstreamer
	ToolCredential Tool = "credential" // sudo session
)

// Tools lists the runner-backed tools in a stable order.
var Tools = []Tool{ToolThroughput, ToolLatency, ToolPacketGen, ToolVideo}

// EventKind is the lifecycle stage an event reports.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventStopped  EventKind = "stopped"
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is a single lifecycle notification fanned out to all observers.
// Events are immutable once constructed.
type Event struct {
	Type string         `json:"type"` // "<tool>_<kind>", e.g. "throughput_started"
	Tool Tool           `json:"tool"`
	Kind EventKind      `json:"kind"`
	Ts   int64          `json:"ts"` // Unix milliseconds
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event for the given tool and lifecycle stage.
func NewEvent(tool Tool, kind EventKind, data map[string]any) Event {
	return Event{
		Type: string(tool) + "_" + string(kind),
		Tool: tool,
		Kind: kind,
		Ts:   time.Now().UnixMilli(),
		Data: data,
	}
}
