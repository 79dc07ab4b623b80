package transport

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	udpMagic     = "MESH"
	udpSenderLen = 32
	udpHeaderLen = len(udpMagic) + udpSenderLen
	maxDatagram  = 65507
)

// UDPConfig describes the port range peers share. Each endpoint binds the
// first free port in [BasePort, BasePort+PortSpan) and posts to every port of
// the range on every target host.
type UDPConfig struct {
	BindHost string
	BasePort int
	PortSpan int
	Targets  []string
}

// UDPTransport broadcasts datagrams across a port range. Each datagram is
// prefixed with the sender's endpoint id so it can drop its own posts.
type UDPTransport struct {
	receiver
	conn     *net.UDPConn
	senderID []byte
	dests    []*net.UDPAddr

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// ListenUDP binds an endpoint and starts its read loop.
func ListenUDP(cfg UDPConfig) (*UDPTransport, error) {
	if cfg.PortSpan <= 0 {
		cfg.PortSpan = 1
	}
	var conn *net.UDPConn
	var lastErr error
	for p := cfg.BasePort; p < cfg.BasePort+cfg.PortSpan; p++ {
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.BindHost, p))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve listen address: %w", err)
		}
		conn, lastErr = net.ListenUDP("udp", addr)
		if lastErr == nil {
			break
		}
	}
	if conn == nil {
		return nil, fmt.Errorf("failed to listen on UDP ports %d-%d: %w", cfg.BasePort, cfg.BasePort+cfg.PortSpan-1, lastErr)
	}

	var dests []*net.UDPAddr
	for _, host := range cfg.Targets {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		for p := cfg.BasePort; p < cfg.BasePort+cfg.PortSpan; p++ {
			addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, p))
			if err != nil {
				continue
			}
			dests = append(dests, addr)
		}
	}
	if len(dests) == 0 {
		conn.Close()
		return nil, fmt.Errorf("no usable UDP targets in %v", cfg.Targets)
	}

	t := &UDPTransport{
		conn:     conn,
		senderID: []byte(strings.ReplaceAll(uuid.NewString(), "-", "")),
		dests:    dests,
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	slog.Info("UDP transport listening", "addr", conn.LocalAddr().String(), "targets", len(dests))
	go t.listen()
	return t, nil
}

// LocalAddr is the bound address.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

func (t *UDPTransport) Post(payload []byte) error {
	if len(payload)+udpHeaderLen > maxDatagram {
		return fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	packet := make([]byte, 0, udpHeaderLen+len(payload))
	packet = append(packet, udpMagic...)
	packet = append(packet, t.senderID...)
	packet = append(packet, payload...)

	sent := 0
	var lastErr error
	for _, d := range t.dests {
		if _, err := t.conn.WriteToUDP(packet, d); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return fmt.Errorf("failed to send to any UDP target: %w", lastErr)
	}
	return nil
}

func (t *UDPTransport) listen() {
	defer close(t.done)
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("UDP read error", "error", err)
			continue
		}
		if n < udpHeaderLen || string(buf[:len(udpMagic)]) != udpMagic {
			continue
		}
		if bytes.Equal(buf[len(udpMagic):udpHeaderLen], t.senderID) {
			continue
		}
		payload := make([]byte, n-udpHeaderLen)
		copy(payload, buf[udpHeaderLen:n])
		t.deliver(payload)
	}
}

func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
		<-t.done
	})
	return err
}
