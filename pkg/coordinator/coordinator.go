// Package coordinator implements the network coordinator end of the
// simulated mesh: it answers beacon requests, admits devices while
// permit-join is open, collects attribute reports and can query or remove
// devices.
package coordinator

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/transport"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Defaults.
const (
	DefaultPANID       = 0x1A62
	DefaultChannel     = 11
	DefaultMaxDevices  = 32
	DefaultProfile     = 0x0104
	DefaultReadTimeout = 2 * time.Second
)

// Config configures a Coordinator.
type Config struct {
	// Conn is the radio link. Required.
	Conn net.PacketConn

	// PANID of the network. Default: 0x1A62.
	PANID uint16

	// ExtendedPANID of the network. Zero picks a random one.
	ExtendedPANID uint64

	// Channel advertised in beacons. Default: 11.
	Channel uint8

	// MaxDevices limits the device table. Default: 32.
	MaxDevices int

	// Profile of outgoing data frames. Default: 0x0104.
	Profile uint16

	// ReadTimeout bounds ReadAttributes when the context has no deadline.
	// Default: 2s.
	ReadTimeout time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// LoggerFactory for coordinator logs. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Conn == nil {
		return ErrNoConn
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PANID == 0 {
		c.PANID = DefaultPANID
	}
	if c.ExtendedPANID == 0 {
		u := uuid.New()
		c.ExtendedPANID = binary.BigEndian.Uint64(u[8:])
	}
	if c.Channel == 0 {
		c.Channel = DefaultChannel
	}
	if c.MaxDevices == 0 {
		c.MaxDevices = DefaultMaxDevices
	}
	if c.Profile == 0 {
		c.Profile = DefaultProfile
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type pendingKey struct {
	short uint16
	seq   uint8
}

type response struct {
	frame *zcl.Frame
}

// Coordinator is the network coordinator.
type Coordinator struct {
	config Config
	log    logging.LeveledLogger

	link   *transport.UDP
	nwkSeq *nwk.SequenceCounter
	zclSeq *nwk.SequenceCounter
	dups   *nwk.DuplicateFilter

	mu          sync.RWMutex
	started     bool
	permitUntil time.Time
	devices     *deviceTable
	values      map[valueKey]LastValue
	handlers    []ReportHandler
	pending     map[pendingKey]chan response
}

// New creates a coordinator. Call Start to bring up the radio link.
func New(config Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Coordinator{
		config:  config,
		nwkSeq:  nwk.NewSequenceCounter(),
		zclSeq:  nwk.NewSequenceCounter(),
		dups:    nwk.NewDuplicateFilter(),
		devices: newDeviceTable(),
		values:  make(map[valueKey]LastValue),
		pending: make(map[pendingKey]chan response),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("coordinator")
	}

	link, err := transport.NewUDP(transport.UDPConfig{
		Conn:          config.Conn,
		FrameHandler:  c.handleFrame,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	c.link = link
	return c, nil
}

// Start brings up the radio link.
func (c *Coordinator) Start() error {
	if err := c.link.Start(); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("network up: PAN 0x%04X, extended PAN %s, channel %d",
			c.config.PANID, nwk.FormatIEEE(c.config.ExtendedPANID), c.config.Channel)
	}
	return nil
}

// Stop closes the radio link and fails pending reads.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	c.started = false
	for k, ch := range c.pending {
		close(ch)
		delete(c.pending, k)
	}
	c.mu.Unlock()
	return c.link.Stop()
}

// PANID returns the network's PAN identifier.
func (c *Coordinator) PANID() uint16 { return c.config.PANID }

// PermitJoin opens the network for d. Zero closes it.
func (c *Coordinator) PermitJoin(d time.Duration) {
	c.mu.Lock()
	if d <= 0 {
		c.permitUntil = time.Time{}
	} else {
		c.permitUntil = c.config.Now().Add(d)
	}
	c.mu.Unlock()

	if c.log != nil {
		if d <= 0 {
			c.log.Info("permit join closed")
		} else {
			c.log.Infof("permit join open for %v", d)
		}
	}
}

// PermitJoinOpen reports whether the network currently admits devices.
func (c *Coordinator) PermitJoinOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.permitOpenLocked()
}

func (c *Coordinator) permitOpenLocked() bool {
	return !c.permitUntil.IsZero() && c.config.Now().Before(c.permitUntil)
}

// AddReportHandler registers h for every future report.
func (c *Coordinator) AddReportHandler(h ReportHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Devices returns the joined devices ordered by short address.
func (c *Coordinator) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices.list()
}

// Device returns the device with the given IEEE address.
func (c *Coordinator) Device(ieee uint64) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices.byIEEE[ieee]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// LastValue returns the last reported value of an attribute.
func (c *Coordinator) LastValue(ieee uint64, path datamodel.ConcreteAttributePath) (LastValue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[valueKey{ieee: ieee, path: path}]
	return v, ok
}
