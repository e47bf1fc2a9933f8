// Package runner owns the lifecycle of subprocess-backed traffic test runs.
//
// Each tool gets one Core: at most one active run, a background monitor per
// run, and exactly one terminal event per run even when Stop races natural
// completion.
package runner

import (
	"bytes"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// Sink receives lifecycle events. The hub implements it; tests substitute a
// recorder.
type Sink interface {
	Publish(ev domain.Event)
}

const (
	// DefaultRunTimeout bounds a single subprocess; a run exceeding it is
	// killed and reported as an error with reason "timeout".
	DefaultRunTimeout = 300 * time.Second

	// DefaultStopGrace is how long Stop waits for voluntary exit after
	// SIGTERM before killing.
	DefaultStopGrace = 5 * time.Second

	// maxStderrLen bounds diagnostic text included in error events.
	maxStderrLen = 2048
)

// finishFunc turns a finished subprocess into final stats. exitErr is the
// error from Wait (nil on exit code 0). Returning an error yields an error
// event instead of complete.
type finishFunc func(stdout, stderr string, exitErr error) (domain.Stats, error)

// phase is one sub-test of a multi-phase run.
type phase struct {
	label  string
	build  func() *exec.Cmd
	finish finishFunc
}

// run is the per-run state shared between the monitor and Stop.
type run struct {
	cmd      *exec.Cmd // current subprocess; advances across phases
	exited   chan struct{}
	terminal atomic.Bool // CAS: whoever flips it emits the terminal event
	waitErr  error       // set by waitCurrent before exited closes
}

// Core implements the generic runner contract for one tool.
type Core struct {
	tool       domain.Tool
	sink       Sink
	runTimeout time.Duration
	stopGrace  time.Duration

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	endedAt   *time.Time
	stats     domain.Stats
	active    *run
}

func newCore(tool domain.Tool, sink Sink) *Core {
	return &Core{
		tool:       tool,
		sink:       sink,
		runTimeout: DefaultRunTimeout,
		stopGrace:  DefaultStopGrace,
		stats:      domain.Stats{},
	}
}

// SetRunTimeout overrides the per-subprocess ceiling. Zero disables it
// (used by the video runner, which streams until stopped).
func (c *Core) SetRunTimeout(d time.Duration) { c.runTimeout = d }

// Tool returns the tool this runner drives.
func (c *Core) Tool() domain.Tool { return c.tool }

// Running reports whether a run is active.
func (c *Core) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns a coherent copy of the accumulated statistics.
func (c *Core) Stats() domain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Clone()
}

// Status returns a consistent snapshot of the run state.
func (c *Core) Status() domain.ToolStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := domain.ToolStatus{
		Tool:    c.tool,
		Running: c.running,
		Stats:   c.stats.Clone(),
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		st.StartedAt = &t
	}
	if c.endedAt != nil {
		t := *c.endedAt
		st.EndedAt = &t
	}
	return st
}

// begin starts cmd as this tool's active run. The started event is emitted
// before begin returns, so callers observe start-before-lifecycle ordering.
func (c *Core) begin(cmd *exec.Cmd, base domain.Stats, startData map[string]any, finish finishFunc) error {
	return c.beginPhases([]phase{{build: func() *exec.Cmd { return cmd }, finish: finish}}, base, startData)
}

// beginPhases starts a single logical run that steps through the ordered
// phases, emitting one progress event per phase boundary. The run stays
// active until every phase finishes, fails, or Stop intervenes.
func (c *Core) beginPhases(phases []phase, base domain.Stats, startData map[string]any) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return domain.ErrAlreadyRunning
	}

	first, stdout, stderr := preparePhase(phases[0])
	if err := first.Start(); err != nil {
		// No state changed; the tool is immediately retryable.
		c.mu.Unlock()
		return &domain.LaunchError{Tool: c.tool, Err: err}
	}

	r := &run{cmd: first, exited: make(chan struct{})}
	c.active = r
	c.running = true
	c.startedAt = time.Now()
	c.endedAt = nil
	c.stats = base.Clone()
	c.mu.Unlock()

	c.sink.Publish(domain.NewEvent(c.tool, domain.EventStarted, startData))
	go c.monitor(r, phases, stdout, stderr)
	return nil
}

// Stop requests graceful termination of the active run. Idempotent; no-op
// when idle. State always converges to not-running even if signalling fails.
func (c *Core) Stop() {
	c.mu.Lock()
	if !c.running || c.active == nil {
		c.mu.Unlock()
		return
	}
	r := c.active
	c.mu.Unlock()

	if !r.terminal.CompareAndSwap(false, true) {
		return // natural completion won the race and already reported
	}

	// Read the subprocess only after winning the CAS, so a phase launched
	// concurrently by the monitor is the one that gets signalled.
	c.mu.Lock()
	cmd := r.cmd
	c.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Printf("WARN: %s: terminate signal failed: %v", c.tool, err)
		}
	}

	select {
	case <-r.exited:
	case <-time.After(c.stopGrace):
		if cmd != nil && cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				log.Printf("WARN: %s: kill failed: %v", c.tool, err)
			}
		}
		select {
		case <-r.exited:
		case <-time.After(time.Second):
			// Best effort; the state invariant still holds below.
		}
	}

	c.settle(nil)
	c.sink.Publish(domain.NewEvent(c.tool, domain.EventStopped, map[string]any{
		"message": string(c.tool) + " stopped",
	}))
}

// monitor drives the run's phases to a single terminal event.
func (c *Core) monitor(r *run, phases []phase, stdout, stderr *bytes.Buffer) {
	defer close(r.exited)

	total := len(phases)
	for i := 0; ; i++ {
		ph := phases[i]
		timedOut := c.waitCurrent(r)

		if timedOut {
			c.finishRun(r, nil, "timeout")
			return
		}
		if r.terminal.Load() {
			return // stopped while this phase was in flight
		}

		exitErr := r.waitErr
		stats, err := ph.finish(stdout.String(), stderr.String(), exitErr)
		if err != nil {
			c.finishRun(r, nil, truncate(firstNonEmpty(err.Error(), stderr.String()), maxStderrLen))
			return
		}

		c.mergeStats(stats)

		if i+1 >= total {
			c.finishRun(r, stats, "")
			return
		}

		// Phase boundary: report progress, then launch the next phase.
		if r.terminal.Load() {
			return
		}
		progress := map[string]any{
			"phase":  i + 1,
			"phases": total,
			"stats":  stats,
		}
		if ph.label != "" {
			progress["label"] = ph.label
		}
		c.sink.Publish(domain.NewEvent(c.tool, domain.EventProgress, progress))

		next, nextOut, nextErr := preparePhase(phases[i+1])
		c.mu.Lock()
		r.cmd = next
		c.mu.Unlock()
		if err := next.Start(); err != nil {
			c.finishRun(r, nil, (&domain.LaunchError{Tool: c.tool, Err: err}).Error())
			return
		}
		if r.terminal.Load() {
			// Stop claimed the run while this phase was launching and may
			// have signalled the previous subprocess; reap this one here.
			if next.Process != nil {
				_ = next.Process.Kill()
			}
			_ = next.Wait()
			return
		}
		stdout, stderr = nextOut, nextErr
	}
}

// waitCurrent waits for the current subprocess, enforcing the run ceiling.
// It reports whether the ceiling fired. The Wait error lands in r.waitErr.
func (c *Core) waitCurrent(r *run) (timedOut bool) {
	c.mu.Lock()
	cmd := r.cmd
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if c.runTimeout <= 0 {
		r.waitErr = <-done
		return false
	}
	select {
	case r.waitErr = <-done:
		return false
	case <-time.After(c.runTimeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		r.waitErr = <-done
		return true
	}
}

// finishRun emits the terminal event if this path wins the CAS. A non-empty
// reason yields an error event; otherwise complete with final stats.
func (c *Core) finishRun(r *run, final domain.Stats, reason string) {
	if !r.terminal.CompareAndSwap(false, true) {
		return
	}
	c.settle(final)
	if reason != "" {
		log.Printf("ERROR: %s run failed: %s", c.tool, reason)
		c.sink.Publish(domain.NewEvent(c.tool, domain.EventError, map[string]any{
			"error": reason,
		}))
		return
	}
	c.sink.Publish(domain.NewEvent(c.tool, domain.EventComplete, map[string]any{
		"stats": c.Stats(),
	}))
}

// settle transitions to not-running and finalizes duration bookkeeping.
func (c *Core) settle(final domain.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.running = false
	c.endedAt = &now
	for k, v := range final {
		c.stats[k] = v
	}
	if !c.startedAt.IsZero() {
		if _, ok := c.stats["duration"]; !ok {
			c.stats["duration"] = now.Sub(c.startedAt).Seconds()
		}
	}
}

func (c *Core) mergeStats(stats domain.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range stats {
		c.stats[k] = v
	}
}

func preparePhase(ph phase) (*exec.Cmd, *bytes.Buffer, *bytes.Buffer) {
	cmd := ph.build()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	return cmd, &stdout, &stderr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
