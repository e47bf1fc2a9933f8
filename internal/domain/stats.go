package domain

import "time"

// Stats holds the accumulated statistics of a run as loosely typed values
// (numbers and strings scraped from tool output).
type Stats map[string]any

// Clone returns an independent copy so callers never observe a torn snapshot.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ToolStatus is a point-in-time snapshot of a runner's state.
type ToolStatus struct {
	Tool      Tool       `json:"tool"`
	Running   bool       `json:"running"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Stats     Stats      `json:"stats"`
}

// SessionInfo describes the credential session without exposing the credential.
type SessionInfo struct {
	Active        bool   `json:"active"`
	RemainingTime int    `json:"remaining_time"` // seconds until sliding expiry
	Token         string `json:"token,omitempty"`
}
