package domain

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// ThroughputParams configures an iperf3 client run.
type ThroughputParams struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Duration  int    `json:"duration"` // seconds
	UDP       bool   `json:"udp"`
	Bandwidth string `json:"bandwidth"` // e.g. "100M", UDP only
}

// ApplyDefaults fills unset fields with the tool defaults.
func (p *ThroughputParams) ApplyDefaults() {
	if p.Host == "" {
		p.Host = "127.0.0.1"
	}
	if p.Port == 0 {
		p.Port = 5201
	}
	if p.Duration == 0 {
		p.Duration = 10
	}
	if p.Bandwidth == "" {
		p.Bandwidth = "100M"
	}
}

func (p *ThroughputParams) Validate() error {
	if p.Host == "" {
		return InvalidParams("host is required")
	}
	if err := validatePort(p.Port); err != nil {
		return err
	}
	if p.Duration <= 0 {
		return InvalidParams("duration must be positive")
	}
	return nil
}

// Latency test modes.
const (
	LatencyModePingPong  = "pingpong"
	LatencyModeUnderLoad = "underload"
)

// LatencyParams configures a sockperf run. A non-empty MsgSizes selects the
// multi-size mode: one sub-test per size within a single logical run.
type LatencyParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Duration int    `json:"duration"` // seconds per sub-test
	Mode     string `json:"mode"`
	MsgSize  int    `json:"msg_size"`
	MPS      int    `json:"mps"`       // messages/sec, under-load mode only
	MsgSizes []int  `json:"msg_sizes"` // multi-size mode
}

func (p *LatencyParams) ApplyDefaults() {
	if p.Host == "" {
		p.Host = "127.0.0.1"
	}
	if p.Port == 0 {
		p.Port = 11111
	}
	if p.Duration == 0 {
		p.Duration = 10
	}
	if p.Mode == "" {
		p.Mode = LatencyModePingPong
	}
	if p.MsgSize == 0 {
		p.MsgSize = 64
	}
	if p.MPS == 0 {
		p.MPS = 10000
	}
}

func (p *LatencyParams) Validate() error {
	if p.Host == "" {
		return InvalidParams("host is required")
	}
	if err := validatePort(p.Port); err != nil {
		return err
	}
	if p.Duration <= 0 {
		return InvalidParams("duration must be positive")
	}
	if p.Mode != LatencyModePingPong && p.Mode != LatencyModeUnderLoad {
		return InvalidParams("mode must be %q or %q", LatencyModePingPong, LatencyModeUnderLoad)
	}
	if p.MsgSize <= 0 {
		return InvalidParams("msg_size must be positive")
	}
	for _, size := range p.MsgSizes {
		if size <= 0 {
			return InvalidParams("msg_sizes entries must be positive")
		}
	}
	return nil
}

// MultiSize reports whether the run steps across several message sizes.
func (p *LatencyParams) MultiSize() bool { return len(p.MsgSizes) > 0 }

// PacketGenParams configures a mausezahn run. Structured mode builds the
// packet from DestIP/PacketType/...; custom mode sends PacketHex verbatim.
// Exactly one of the two modes must be selected.
type PacketGenParams struct {
	Interface  string `json:"interface"`
	DestIP     string `json:"dest_ip"`
	VLANID     *int   `json:"vlan_id"`
	PCP        int    `json:"pcp"`
	PacketType string `json:"packet_type"` // udp, tcp, icmp
	DestPort   int    `json:"dest_port"`
	PacketSize int    `json:"packet_size"`
	Count      int    `json:"count"`
	Delay      string `json:"delay"` // e.g. "1msec", "100usec"
	SrcMAC     string `json:"src_mac"`
	DestMAC    string `json:"dest_mac"`
	PacketHex  string `json:"packet_hex"`
}

func (p *PacketGenParams) ApplyDefaults() {
	if p.PacketType == "" {
		p.PacketType = "udp"
	}
	if p.DestPort == 0 {
		p.DestPort = 5000
	}
	if p.PacketSize == 0 {
		p.PacketSize = 1000
	}
	if p.Count == 0 {
		p.Count = 1000
	}
	if p.Delay == "" {
		p.Delay = "1msec"
	}
	if p.PacketHex == "" && p.VLANID == nil {
		vlan := 100
		p.VLANID = &vlan
	}
}

func (p *PacketGenParams) Validate() error {
	if p.Interface == "" {
		return InvalidParams("interface is required")
	}
	if p.PacketHex != "" && p.DestIP != "" {
		return InvalidParams("packet_hex and dest_ip are mutually exclusive")
	}
	if p.PacketHex == "" && p.DestIP == "" {
		return InvalidParams("either dest_ip or packet_hex is required")
	}
	if p.PacketHex != "" {
		raw := strings.ReplaceAll(p.PacketHex, ":", "")
		if len(raw)%2 != 0 {
			return InvalidParams("packet_hex must have an even number of hex digits")
		}
		if _, err := hex.DecodeString(raw); err != nil {
			return InvalidParams("packet_hex is not valid hex")
		}
	} else {
		switch p.PacketType {
		case "udp", "tcp", "icmp":
		default:
			return InvalidParams("packet_type must be udp, tcp or icmp")
		}
		if err := validatePort(p.DestPort); err != nil {
			return err
		}
		if p.PacketSize <= 0 {
			return InvalidParams("packet_size must be positive")
		}
	}
	if p.VLANID != nil && (*p.VLANID < 0 || *p.VLANID > 4095) {
		return InvalidParams("vlan_id must be 0-4095")
	}
	if p.PCP < 0 || p.PCP > 7 {
		return InvalidParams("pcp must be 0-7")
	}
	if p.Count <= 0 {
		return InvalidParams("count must be positive")
	}
	return nil
}

// Custom reports whether the run sends raw hex payload instead of a
// structured packet.
func (p *PacketGenParams) Custom() bool { return p.PacketHex != "" }

// PayloadBytes is the per-packet payload size used for byte accounting.
func (p *PacketGenParams) PayloadBytes() int {
	if p.Custom() {
		return len(strings.ReplaceAll(p.PacketHex, ":", "")) / 2
	}
	return p.PacketSize
}

// VideoParams configures a gstreamer streaming run.
type VideoParams struct {
	Interface  string `json:"interface"`
	DestIP     string `json:"dest_ip"`
	DestPort   int    `json:"dest_port"`
	VLANID     int    `json:"vlan_id"`
	PCP        int    `json:"pcp"`
	Resolution string `json:"resolution"` // "640x480"
	Framerate  int    `json:"framerate"`
	Bitrate    int    `json:"bitrate"` // kbps
	Codec      string `json:"codec"`
	UseWebcam  bool   `json:"use_webcam"`
	Device     string `json:"device"`
}

func (p *VideoParams) ApplyDefaults() {
	if p.DestPort == 0 {
		p.DestPort = 5000
	}
	if p.VLANID == 0 {
		p.VLANID = 100
	}
	if p.Resolution == "" {
		p.Resolution = "640x480"
	}
	if p.Framerate == 0 {
		p.Framerate = 30
	}
	if p.Bitrate == 0 {
		p.Bitrate = 2000
	}
	if p.Codec == "" {
		p.Codec = "h264"
	}
	if p.Device == "" {
		p.Device = "/dev/video0"
	}
}

func (p *VideoParams) Validate() error {
	if p.DestIP == "" {
		return InvalidParams("dest_ip is required")
	}
	if err := validatePort(p.DestPort); err != nil {
		return err
	}
	if p.VLANID < 0 || p.VLANID > 4095 {
		return InvalidParams("vlan_id must be 0-4095")
	}
	if p.PCP < 0 || p.PCP > 7 {
		return InvalidParams("pcp must be 0-7")
	}
	if _, _, err := p.Dimensions(); err != nil {
		return err
	}
	if p.Framerate <= 0 {
		return InvalidParams("framerate must be positive")
	}
	if p.Bitrate <= 0 {
		return InvalidParams("bitrate must be positive")
	}
	if p.Codec != "h264" {
		return InvalidParams("unsupported codec %q (only h264)", p.Codec)
	}
	return nil
}

// Dimensions parses the WxH resolution string.
func (p *VideoParams) Dimensions() (width, height int, err error) {
	parts := strings.SplitN(p.Resolution, "x", 2)
	if len(parts) != 2 {
		return 0, 0, InvalidParams("resolution must be WIDTHxHEIGHT")
	}
	width, werr := strconv.Atoi(parts[0])
	height, herr := strconv.Atoi(parts[1])
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, InvalidParams("invalid resolution %q", p.Resolution)
	}
	return width, height, nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return InvalidParams("port must be 1-65535, got %d", port)
	}
	return nil
}
