// Package service wires the tool runners, credential session and event hub
// behind the request-handling surface.
package service

import (
	"errors"

	"github.com/keti-tsn/trafficd/internal/config"
	"github.com/keti-tsn/trafficd/internal/hub"
	"github.com/keti-tsn/trafficd/internal/netif"
	"github.com/keti-tsn/trafficd/internal/runner"
	"github.com/keti-tsn/trafficd/internal/sudo"
)

// ErrUnknownTool rejects requests naming a tool this service does not wrap.
var ErrUnknownTool = errors.New("unknown tool")

type Service struct {
	cfg     *config.Config
	hub     *hub.Hub
	session *sudo.Session
	netif   *netif.Manager

	iperf     *runner.Iperf
	sockperf  *runner.Sockperf
	mausezahn *runner.Mausezahn
	gstreamer *runner.GStreamer
}

// New builds the service. The hub is every runner's event sink; the session
// is the elevation path for packet generation and interface state changes.
func New(cfg *config.Config, h *hub.Hub, session *sudo.Session) *Service {
	s := &Service{
		cfg:       cfg,
		hub:       h,
		session:   session,
		netif:     netif.NewManager(session),
		iperf:     runner.NewIperf(h),
		sockperf:  runner.NewSockperf(h),
		mausezahn: runner.NewMausezahn(h, session),
		gstreamer: runner.NewGStreamer(h),
	}
	s.iperf.SetRunTimeout(cfg.RunTimeout)
	s.sockperf.SetRunTimeout(cfg.RunTimeout)
	s.mausezahn.SetRunTimeout(cfg.RunTimeout)
	return s
}

// Session exposes the credential session to the transport layer.
func (s *Service) Session() *sudo.Session { return s.session }

// Iperf exposes the throughput runner.
func (s *Service) Iperf() *runner.Iperf { return s.iperf }

// Sockperf exposes the latency runner.
func (s *Service) Sockperf() *runner.Sockperf { return s.sockperf }

// Interfaces exposes the network interface manager.
func (s *Service) Interfaces() *netif.Manager { return s.netif }

// Hub exposes the event hub for observer registration.
func (s *Service) Hub() *hub.Hub { return s.hub }
