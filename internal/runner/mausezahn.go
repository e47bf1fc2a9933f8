package runner

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// Elevator prepares commands that run with elevated privileges. The sudo
// session implements it.
type Elevator interface {
	// IsValid reports whether a verified, unexpired credential is held.
	IsValid() bool
	// Command returns a ready-to-start elevated command for argv.
	Command(argv []string) (*exec.Cmd, error)
}

// Mausezahn drives VLAN-tagged or raw-hex packet generation. Raw packet
// injection needs elevated privileges: runs go through the credential
// session when one is valid, otherwise through non-interactive sudo.
type Mausezahn struct {
	*Core
	bin      string
	sudoPath string
	elevator Elevator
}

// NewMausezahn creates the packet generator runner.
func NewMausezahn(sink Sink, elev Elevator) *Mausezahn {
	return &Mausezahn{
		Core:     newCore(domain.ToolPacketGen, sink),
		bin:      "mausezahn",
		sudoPath: "sudo",
		elevator: elev,
	}
}

// Available reports whether the mausezahn binary can be found.
func (t *Mausezahn) Available() bool { return binAvailable(t.bin) }

// Start launches a packet generation run, in structured VLAN mode or raw
// hex mode depending on the parameters.
func (t *Mausezahn) Start(p domain.PacketGenParams) error {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	cmd, err := t.command(append([]string{t.bin}, t.buildArgs(p)...))
	if err != nil {
		return err
	}

	base := domain.Stats{
		"interface":    p.Interface,
		"packets_sent": 0,
		"bytes_sent":   0,
	}
	start := map[string]any{
		"interface": p.Interface,
		"pcp":       p.PCP,
		"count":     p.Count,
	}
	if p.VLANID != nil {
		start["vlan_id"] = *p.VLANID
	}
	if p.Custom() {
		start["custom"] = true
		start["message"] = fmt.Sprintf("mausezahn custom traffic started on %s", p.Interface)
	} else {
		start["packet_type"] = p.PacketType
		start["message"] = fmt.Sprintf("mausezahn started on %s (VLAN %d, PCP %d)", p.Interface, *p.VLANID, p.PCP)
	}

	return t.begin(cmd, base, start, func(stdout, stderr string, exitErr error) (domain.Stats, error) {
		return t.finish(p, stdout, stderr, exitErr)
	})
}

// command routes argv through the credential session when valid, falling
// back to non-interactive sudo (relies on the system's cached credential).
func (t *Mausezahn) command(argv []string) (*exec.Cmd, error) {
	if t.elevator != nil && t.elevator.IsValid() {
		return t.elevator.Command(argv)
	}
	args := append([]string{"-n"}, argv...)
	return exec.Command(t.sudoPath, args...), nil
}

func (t *Mausezahn) buildArgs(p domain.PacketGenParams) []string {
	args := []string{p.Interface}
	if p.VLANID != nil {
		args = append(args, "-Q", fmt.Sprintf("%d,%d", *p.VLANID, p.PCP))
	}
	if p.Custom() {
		args = append(args, "-c", strconv.Itoa(p.Count), "-d", p.Delay, p.PacketHex)
		return args
	}
	if p.SrcMAC != "" {
		args = append(args, "-a", p.SrcMAC)
	}
	if p.DestMAC != "" {
		args = append(args, "-b", p.DestMAC)
	}
	switch p.PacketType {
	case "udp":
		args = append(args, "-t", "udp", fmt.Sprintf("dp=%d,sp=5000", p.DestPort))
	case "tcp":
		args = append(args, "-t", "tcp", fmt.Sprintf("dp=%d,sp=5000", p.DestPort))
	case "icmp":
		args = append(args, "-t", "icmp", "type=8")
	}
	args = append(args,
		"-B", p.DestIP,
		"-P", strconv.Itoa(p.PacketSize),
		"-c", strconv.Itoa(p.Count),
		"-d", p.Delay,
	)
	return args
}

// finish computes final counters from the requested parameters; mausezahn
// itself prints no machine-readable summary.
func (t *Mausezahn) finish(p domain.PacketGenParams, stdout, stderr string, exitErr error) (domain.Stats, error) {
	if exitErr != nil {
		if stderr != "" {
			return nil, fmt.Errorf("%s", stderr)
		}
		return nil, fmt.Errorf("mausezahn exited: %v", exitErr)
	}
	return domain.Stats{
		"packets_sent": p.Count,
		"bytes_sent":   p.Count * p.PayloadBytes(),
	}, nil
}
