package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultPort is the ZigBee Encapsulation Protocol port.
const DefaultPort = 17754

// MaxFrameSize is the largest frame carried, the 802.15.4 PSDU limit.
const MaxFrameSize = 127

// UDP carries radio frames over a net.PacketConn. The conn may be a real
// UDP socket or a PipePacketConn; the read loop calls the configured
// FrameHandler for each frame.
type UDP struct {
	conn    net.PacketConn
	handler FrameHandler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a new socket is opened on ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the address to listen on (e.g., ":17754").
	// Ignored if Conn is provided.
	ListenAddr string

	// FrameHandler is called for each received frame. Required.
	FrameHandler FrameHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewUDP creates a new transport with the given configuration.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}

	u := &UDP{
		conn:    config.Conn,
		handler: config.FrameHandler,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		u.log = config.LoggerFactory.NewLogger("transport")
	}

	if u.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}

		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}

	return u, nil
}

// Start begins the read loop.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Infof("starting radio link on %s", u.conn.LocalAddr())
	}

	u.wg.Add(1)
	go u.readLoop()

	return nil
}

// Stop closes the transport and waits for the read loop to exit.
func (u *UDP) Stop() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Info("stopping radio link")
	}

	close(u.closeCh)

	// Unblock a pending read.
	_ = u.conn.SetReadDeadline(time.Now())
	_ = u.conn.Close()
	u.wg.Wait()

	return nil
}

// Send writes one frame to addr.
func (u *UDP) Send(data []byte, addr net.Addr) error {
	u.mu.RLock()
	if u.closed {
		u.mu.RUnlock()
		return ErrClosed
	}
	u.mu.RUnlock()

	if addr == nil {
		return ErrInvalidAddress
	}

	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	if u.log != nil {
		u.log.Tracef("sending %d bytes to %v", len(data), addr)
	}

	if _, err := u.conn.WriteTo(data, addr); err != nil {
		if u.log != nil {
			u.log.Warnf("send failed: %v", err)
		}
		return err
	}

	return nil
}

// LocalAddr returns the local address the transport is bound to.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, MaxFrameSize)

	for {
		select {
		case <-u.closeCh:
			return
		default:
		}

		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.closeCh:
				return
			default:
				if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
					if u.log != nil {
						u.log.Warnf("link closed underneath: %v", err)
					}
					return
				}
				if u.log != nil {
					u.log.Warnf("read error: %v", err)
				}
				continue
			}
		}

		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if u.log != nil {
			u.log.Tracef("received %d bytes from %v", n, addr)
		}

		u.handler(&ReceivedFrame{
			Data:     data,
			PeerAddr: NewPeerAddress(addr),
		})
	}
}
