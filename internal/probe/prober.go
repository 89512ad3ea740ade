package probe

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ping/ping"

	"github.com/distnet/coordinator/internal/models"
)

// Prober performs one reachability measurement against a target. A nil
// error carries the measured latency; an error means a loss sample.
type Prober interface {
	Probe(address string, port int) (time.Duration, error)
}

func proberFor(protocol models.Protocol, timeout time.Duration) Prober {
	switch protocol {
	case models.ProtocolUDP:
		return &udpProber{timeout: timeout}
	case models.ProtocolICMP:
		return &icmpProber{timeout: timeout}
	default:
		return &tcpProber{timeout: timeout}
	}
}

type tcpProber struct {
	timeout time.Duration
}

func (p *tcpProber) Probe(address string, port int) (time.Duration, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))

	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, p.timeout)
	if err != nil {
		return 0, fmt.Errorf("tcp connect failed: %w", err)
	}
	defer conn.Close()

	return time.Since(start), nil
}

// udpProber sends one small datagram and waits for any reply. UDP gives
// no delivery signal, so a silent peer counts as loss after the timeout.
type udpProber struct {
	timeout time.Duration
}

var udpProbePayload = []byte("probe")

func (p *udpProber) Probe(address string, port int) (time.Duration, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))

	conn, err := net.DialTimeout("udp", addr, p.timeout)
	if err != nil {
		return 0, fmt.Errorf("udp dial failed: %w", err)
	}
	defer conn.Close()

	start := time.Now()

	if _, err := conn.Write(udpProbePayload); err != nil {
		return 0, fmt.Errorf("udp send failed: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		return 0, fmt.Errorf("udp deadline failed: %w", err)
	}

	buf := make([]byte, 1500)
	if _, err := conn.Read(buf); err != nil {
		return 0, fmt.Errorf("udp no reply: %w", err)
	}

	return time.Since(start), nil
}

type icmpProber struct {
	timeout time.Duration
}

func (p *icmpProber) Probe(address string, _ int) (time.Duration, error) {
	pinger, err := ping.NewPinger(address)
	if err != nil {
		return 0, fmt.Errorf("icmp resolve failed: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(true)

	start := time.Now()
	if err := pinger.Run(); err != nil {
		return 0, fmt.Errorf("icmp echo failed: %w", err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("icmp echo timed out after %s", p.timeout)
	}

	// Prefer the RTT reported by the echo reply; wall clock otherwise.
	if stats.AvgRtt > 0 {
		return stats.AvgRtt, nil
	}

	return time.Since(start), nil
}
