// Package netif lists local network interfaces and applies privileged
// interface state changes through the credential session.
package netif

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// Executor runs a privileged command; the sudo session implements it.
type Executor interface {
	Execute(argv []string, timeout time.Duration) (stdout, stderr string, err error)
}

// Interface describes one local network interface.
type Interface struct {
	Name string `json:"name"`
	MAC  string `json:"mac,omitempty"`
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`
	MTU  int    `json:"mtu"`
	Up   bool   `json:"up"`
}

// Manager provides interface discovery and state control.
type Manager struct {
	exec         Executor
	stateTimeout time.Duration
}

// NewManager wires the privileged executor used for state changes.
func NewManager(exec Executor) *Manager {
	return &Manager{exec: exec, stateTimeout: 10 * time.Second}
}

// List returns all non-loopback interfaces.
func (m *Manager) List() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		out = append(out, describe(ifc))
	}
	return out, nil
}

// Active returns only interfaces that are up.
func (m *Manager) Active() ([]Interface, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, ifc := range all {
		if ifc.Up {
			active = append(active, ifc)
		}
	}
	return active, nil
}

// Get returns one interface by name, or nil if it does not exist.
func (m *Manager) Get(name string) (*Interface, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return nil, nil
	}
	desc := describe(*ifc)
	return &desc, nil
}

// SetState brings an interface up or down via the privileged executor.
func (m *Manager) SetState(name, state string) error {
	if state != "up" && state != "down" {
		return domain.InvalidParams("state must be \"up\" or \"down\"")
	}
	if name == "" {
		return domain.InvalidParams("interface name is required")
	}
	_, stderr, err := m.exec.Execute([]string{"ip", "link", "set", name, state}, m.stateTimeout)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("set %s %s: %w (%s)", name, state, err, strings.TrimSpace(stderr))
		}
		return fmt.Errorf("set %s %s: %w", name, state, err)
	}
	return nil
}

func describe(ifc net.Interface) Interface {
	desc := Interface{
		Name: ifc.Name,
		MAC:  ifc.HardwareAddr.String(),
		MTU:  ifc.MTU,
		Up:   ifc.Flags&net.FlagUp != 0,
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return desc
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if v4 := ip.To4(); v4 != nil {
			if desc.IPv4 == "" {
				desc.IPv4 = v4.String()
			}
			continue
		}
		// Skip link-local addresses, as the UI only shows global ones.
		if desc.IPv6 == "" && !ip.IsLinkLocalUnicast() {
			desc.IPv6 = ip.String()
		}
	}
	return desc
}
