package service

import (
	"encoding/json"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// toolRunner is the tool-agnostic slice of a runner used for dispatch.
type toolRunner interface {
	Running() bool
	Stats() domain.Stats
	Status() domain.ToolStatus
	Stop()
	Available() bool
}

func (s *Service) runnerFor(tool domain.Tool) (toolRunner, bool) {
	switch tool {
	case domain.ToolThroughput:
		return s.iperf, true
	case domain.ToolLatency:
		return s.sockperf, true
	case domain.ToolPacketGen:
		return s.mausezahn, true
	case domain.ToolVideo:
		return s.gstreamer, true
	}
	return nil, false
}

// StartTool decodes the parameter payload for the named tool and starts it.
// Synchronous failures (validation, already running, launch) come back as
// errors; everything after acceptance arrives on the event stream.
func (s *Service) StartTool(tool domain.Tool, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	switch tool {
	case domain.ToolThroughput:
		var p domain.ThroughputParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return domain.InvalidParams("malformed request body: %v", err)
		}
		return s.iperf.Start(p)
	case domain.ToolLatency:
		var p domain.LatencyParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return domain.InvalidParams("malformed request body: %v", err)
		}
		return s.sockperf.Start(p)
	case domain.ToolPacketGen:
		var p domain.PacketGenParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return domain.InvalidParams("malformed request body: %v", err)
		}
		return s.mausezahn.Start(p)
	case domain.ToolVideo:
		var p domain.VideoParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return domain.InvalidParams("malformed request body: %v", err)
		}
		return s.gstreamer.Start(p)
	}
	return ErrUnknownTool
}

// StopTool stops the named tool. Idempotent: stopping an idle tool is a no-op.
func (s *Service) StopTool(tool domain.Tool) error {
	r, ok := s.runnerFor(tool)
	if !ok {
		return ErrUnknownTool
	}
	r.Stop()
	return nil
}

// ToolStatus returns the run-state snapshot of one tool.
func (s *Service) ToolStatus(tool domain.Tool) (domain.ToolStatus, error) {
	r, ok := s.runnerFor(tool)
	if !ok {
		return domain.ToolStatus{}, ErrUnknownTool
	}
	return r.Status(), nil
}

// ToolStats returns a coherent copy of one tool's accumulated stats.
func (s *Service) ToolStats(tool domain.Tool) (domain.Stats, error) {
	r, ok := s.runnerFor(tool)
	if !ok {
		return nil, ErrUnknownTool
	}
	return r.Stats(), nil
}

// ToolAvailable reports whether the wrapped binary exists on this host.
func (s *Service) ToolAvailable(tool domain.Tool) (bool, error) {
	r, ok := s.runnerFor(tool)
	if !ok {
		return false, ErrUnknownTool
	}
	return r.Available(), nil
}

// Status snapshots every tool plus the credential session.
func (s *Service) Status() map[string]any {
	tools := make(map[string]domain.ToolStatus, len(domain.Tools))
	for _, tool := range domain.Tools {
		if r, ok := s.runnerFor(tool); ok {
			tools[string(tool)] = r.Status()
		}
	}
	return map[string]any{
		"tools": tools,
		"sudo":  s.session.Info(),
	}
}

// StatsAll returns every tool's stats, used by the websocket get_stats reply.
func (s *Service) StatsAll() map[string]domain.Stats {
	out := make(map[string]domain.Stats, len(domain.Tools))
	for _, tool := range domain.Tools {
		if r, ok := s.runnerFor(tool); ok {
			out[string(tool)] = r.Stats()
		}
	}
	return out
}
