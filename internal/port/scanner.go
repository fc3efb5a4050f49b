package port

import (
	"fmt"
	"net"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// Scanner checks whether host ports are free by binding them briefly.
type Scanner struct {
	// listen opens a TCP listener; replaced in tests.
	listen func(network, address string) (net.Listener, error)
	// listenPacket opens a UDP socket; replaced in tests.
	listenPacket func(network, address string) (net.PacketConn, error)
}

// NewScanner creates a Scanner backed by the OS network stack.
func NewScanner() *Scanner {
	return &Scanner{listen: net.Listen, listenPacket: net.ListenPacket}
}

// IsPortAvailable reports whether port can be bound on all interfaces for
// protocol ("tcp" or "udp"). Published container ports bind 0.0.0.0, so
// the probe uses the same address. Unknown protocols report false.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "", "tcp":
		// Listen fails with "address already in use" when another process
		// (or a running Neo4j container's published port) holds it.
		ln, err := s.listen("tcp", addr)
		if err != nil {
			return false
		}
		// Close right away: the port is only probed, never held.
		_ = ln.Close()
		return true

	case "udp":
		// UDP is connectionless, so the probe is a bound PacketConn.
		conn, err := s.listenPacket("udp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true

	default:
		// Unknown protocol: report it as unavailable.
		return false
	}
}

// Busy returns the mappings in ports whose host port is currently taken,
// in input order.
func (s *Scanner) Busy(ports []model.PortMapping) []model.PortMapping {
	var busy []model.PortMapping
	for _, p := range ports {
		if !s.IsPortAvailable(p.HostPort, p.Protocol) {
			busy = append(busy, p)
		}
	}
	return busy
}
