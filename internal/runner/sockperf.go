package runner

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// Sockperf drives sockperf latency runs: single ping-pong or under-load
// tests, and a multi-size mode that steps one logical run across several
// message sizes.
type Sockperf struct {
	*Core
	bin string
}

// NewSockperf creates the latency runner.
func NewSockperf(sink Sink) *Sockperf {
	return &Sockperf{Core: newCore(domain.ToolLatency, sink), bin: "sockperf"}
}

// Available reports whether the sockperf binary can be found.
func (t *Sockperf) Available() bool { return binAvailable(t.bin) }

// SetBinary overrides the sockperf executable (tests substitute a stub).
func (t *Sockperf) SetBinary(bin string) { t.bin = bin }

// Start launches a sockperf run.
func (t *Sockperf) Start(p domain.LatencyParams) error {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	base := domain.Stats{
		"host": p.Host,
		"port": p.Port,
		"mode": p.Mode,
	}
	start := map[string]any{
		"message":  fmt.Sprintf("sockperf %s started to %s:%d", p.Mode, p.Host, p.Port),
		"host":     p.Host,
		"port":     p.Port,
		"duration": p.Duration,
		"mode":     p.Mode,
	}

	if !p.MultiSize() {
		cmd := exec.Command(t.bin, t.buildArgs(p, p.MsgSize)...)
		base["msg_size"] = p.MsgSize
		return t.begin(cmd, base, start, func(stdout, stderr string, exitErr error) (domain.Stats, error) {
			return t.finishSize(p.MsgSize, stdout, stderr, exitErr)
		})
	}

	start["msg_sizes"] = p.MsgSizes
	start["message"] = fmt.Sprintf("sockperf multi-size test started to %s:%d", p.Host, p.Port)
	return t.beginPhases(t.buildPhases(p), base, start)
}

// buildPhases produces one sub-test per message size. Per-size results are
// accumulated so the terminal event carries the whole sequence.
func (t *Sockperf) buildPhases(p domain.LatencyParams) []phase {
	var results []domain.Stats
	phases := make([]phase, 0, len(p.MsgSizes))
	last := len(p.MsgSizes) - 1
	for i, size := range p.MsgSizes {
		size := size
		final := i == last
		phases = append(phases, phase{
			label: strconv.Itoa(size) + "B",
			build: func() *exec.Cmd {
				return exec.Command(t.bin, t.buildArgs(p, size)...)
			},
			finish: func(stdout, stderr string, exitErr error) (domain.Stats, error) {
				stats, err := t.finishSize(size, stdout, stderr, exitErr)
				if err != nil {
					return nil, err
				}
				results = append(results, stats.Clone())
				if final {
					stats["results"] = results
				}
				return stats, nil
			},
		})
	}
	return phases
}

func (t *Sockperf) buildArgs(p domain.LatencyParams, msgSize int) []string {
	sub := "ping-pong"
	if p.Mode == domain.LatencyModeUnderLoad {
		sub = "under-load"
	}
	args := []string{
		sub,
		"-i", p.Host,
		"-p", strconv.Itoa(p.Port),
		"-t", strconv.Itoa(p.Duration),
		"--msg-size", strconv.Itoa(msgSize),
	}
	if p.Mode == domain.LatencyModeUnderLoad {
		args = append(args, "--mps", strconv.Itoa(p.MPS))
	}
	return args
}

var (
	sockperfAvgRe = regexp.MustCompile(`Summary: Latency is ([\d.]+) usec`)
	sockperfP99Re = regexp.MustCompile(`percentile 99\.000\s*=\s*([\d.]+)`)
	sockperfMaxRe = regexp.MustCompile(`<MAX> observation\s*=\s*([\d.]+)`)
	sockperfMinRe = regexp.MustCompile(`<MIN> observation\s*=\s*([\d.]+)`)
)

// finishSize scrapes the terminal latency summary from sockperf output.
func (t *Sockperf) finishSize(msgSize int, stdout, stderr string, exitErr error) (domain.Stats, error) {
	if exitErr != nil {
		return nil, fmt.Errorf("sockperf exited: %v", exitErr)
	}
	stats := domain.Stats{"msg_size": msgSize}
	found := false
	for key, re := range map[string]*regexp.Regexp{
		"latency_avg_us": sockperfAvgRe,
		"latency_p99_us": sockperfP99Re,
		"latency_max_us": sockperfMaxRe,
		"latency_min_us": sockperfMinRe,
	} {
		if m := re.FindStringSubmatch(stdout); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				stats[key] = v
				found = true
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("no latency summary in sockperf output")
	}
	return stats, nil
}
