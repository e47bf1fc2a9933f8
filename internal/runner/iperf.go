package runner

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// Iperf drives iperf3 client runs for throughput testing.
type Iperf struct {
	*Core
	bin string
}

// NewIperf creates the throughput runner.
func NewIperf(sink Sink) *Iperf {
	return &Iperf{Core: newCore(domain.ToolThroughput, sink), bin: "iperf3"}
}

// Available reports whether the iperf3 binary can be found.
func (t *Iperf) Available() bool { return binAvailable(t.bin) }

// SetBinary overrides the iperf3 executable (tests substitute a stub).
func (t *Iperf) SetBinary(bin string) { t.bin = bin }

// Start launches an iperf3 client run.
func (t *Iperf) Start(p domain.ThroughputParams) error {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	cmd := exec.Command(t.bin, t.buildArgs(p)...)
	base := domain.Stats{
		"host":     p.Host,
		"port":     p.Port,
		"protocol": protoName(p.UDP),
	}
	start := map[string]any{
		"message":  fmt.Sprintf("iperf3 test started to %s:%d", p.Host, p.Port),
		"host":     p.Host,
		"port":     p.Port,
		"duration": p.Duration,
		"protocol": protoName(p.UDP),
	}
	return t.begin(cmd, base, start, t.finish)
}

func (t *Iperf) buildArgs(p domain.ThroughputParams) []string {
	args := []string{
		"-c", p.Host,
		"-p", strconv.Itoa(p.Port),
		"-t", strconv.Itoa(p.Duration),
		"-J",
	}
	if p.UDP {
		args = append(args, "-u", "-b", p.Bandwidth)
	}
	return args
}

// iperfReport is the subset of iperf3's JSON report this runner scrapes.
type iperfReport struct {
	End struct {
		SumSent struct {
			Bytes         float64 `json:"bytes"`
			BitsPerSecond float64 `json:"bits_per_second"`
			Seconds       float64 `json:"seconds"`
		} `json:"sum_sent"`
		SumReceived struct {
			Bytes         float64 `json:"bytes"`
			BitsPerSecond float64 `json:"bits_per_second"`
		} `json:"sum_received"`
		Sum struct {
			Bytes         float64 `json:"bytes"`
			BitsPerSecond float64 `json:"bits_per_second"`
			Seconds       float64 `json:"seconds"`
			JitterMs      float64 `json:"jitter_ms"`
			LostPercent   float64 `json:"lost_percent"`
		} `json:"sum"`
	} `json:"end"`
	Error string `json:"error"`
}

func (t *Iperf) finish(stdout, stderr string, exitErr error) (domain.Stats, error) {
	var report iperfReport
	parseErr := json.Unmarshal([]byte(stdout), &report)

	if exitErr != nil {
		// iperf3 reports its own failure reason inside the JSON document.
		if parseErr == nil && report.Error != "" {
			return nil, fmt.Errorf("%s", report.Error)
		}
		return nil, fmt.Errorf("iperf3 exited: %v", exitErr)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("unparseable iperf3 output: %v", parseErr)
	}

	stats := domain.Stats{}
	switch {
	case report.End.Sum.Seconds > 0: // UDP runs report a single sum
		stats["bytes_sent"] = report.End.Sum.Bytes
		stats["bits_per_second"] = report.End.Sum.BitsPerSecond
		stats["duration"] = report.End.Sum.Seconds
		stats["jitter_ms"] = report.End.Sum.JitterMs
		stats["lost_percent"] = report.End.Sum.LostPercent
	default:
		stats["bytes_sent"] = report.End.SumSent.Bytes
		stats["bytes_received"] = report.End.SumReceived.Bytes
		stats["bits_per_second"] = report.End.SumSent.BitsPerSecond
		stats["duration"] = report.End.SumSent.Seconds
	}
	return stats, nil
}

func protoName(udp bool) string {
	if udp {
		return "udp"
	}
	return "tcp"
}

func binAvailable(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}
