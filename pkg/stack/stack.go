// Package stack implements the node side of the mesh network: a single
// event loop that owns the radio link, runs the commissioning procedures
// and serves attribute reads and reports.
//
// Signals, alarm callbacks and inbound frames are all handled on the event
// loop, one at a time. Public methods are safe to call from any goroutine.
package stack

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/mesh"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/storage"
	"github.com/backkem/climate-node/pkg/transport"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Defaults.
const (
	DefaultSteeringTimeout = 5 * time.Second
	DefaultTickInterval    = time.Second
	DefaultProfile         = 0x0104 // Home Automation

	// Valid transmit power range in dBm.
	MinTxPower int8 = -24
	MaxTxPower int8 = 20
)

// AttributeReader is the attribute model served to remote readers.
type AttributeReader interface {
	GetCluster(ep datamodel.EndpointID, cl datamodel.ClusterID) datamodel.Cluster
	ReadAttribute(ctx context.Context, ep datamodel.EndpointID, cl datamodel.ClusterID, attr datamodel.AttributeID) (zcl.Value, error)
}

// Reporter is driven by the event loop while the node is joined.
type Reporter interface {
	Tick(now time.Time)
	ReportAll()
}

// Config configures a Stack.
type Config struct {
	// Conn is the radio link. Required.
	Conn net.PacketConn

	// Coordinator is the link address frames are sent to. Required.
	Coordinator net.Addr

	// Storage persists the network association. Required.
	Storage storage.Storage

	// Node serves remote attribute reads. Required.
	Node AttributeReader

	// IEEEAddress is the node's extended address. Zero picks a random
	// locally administered address.
	IEEEAddress uint64

	// Profile is the application profile of data frames.
	// Default: 0x0104.
	Profile uint16

	// SteeringTimeout bounds one network steering attempt.
	// Default: 5s.
	SteeringTimeout time.Duration

	// TickInterval is how often the reporter is ticked.
	// Default: 1s.
	TickInterval time.Duration

	// Handler receives application signals. May also be set with
	// SetSignalHandler before Run.
	Handler mesh.SignalHandler

	// Reporter is ticked while joined. May also be set with SetReporter.
	Reporter Reporter

	// LoggerFactory for stack logs. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Conn == nil {
		return ErrNoConn
	}
	if c.Coordinator == nil {
		return ErrNoCoordinator
	}
	if c.Storage == nil {
		return ErrNoStorage
	}
	if c.Node == nil {
		return ErrNoNode
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.IEEEAddress == 0 {
		c.IEEEAddress = RandomIEEEAddress()
	}
	if c.Profile == 0 {
		c.Profile = DefaultProfile
	}
	if c.SteeringTimeout == 0 {
		c.SteeringTimeout = DefaultSteeringTimeout
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
}

// candidate is the network picked from a beacon during steering.
type candidate struct {
	panID         uint16
	extendedPANID uint64
	channel       uint8
}

// Stack is the node's mesh network stack. It implements mesh.Stack and
// reporting.Sink.
type Stack struct {
	config Config
	log    logging.LeveledLogger

	link   *transport.UDP
	nwkSeq *nwk.SequenceCounter
	zclSeq *nwk.SequenceCounter
	dups   *nwk.DuplicateFilter
	alarms *alarmTable

	factoryNew atomic.Bool
	txPower    atomic.Int32

	// Event queue. post never blocks.
	qmu   sync.Mutex
	queue []func()
	wake  chan struct{}

	mu        sync.RWMutex
	state     State
	handler   mesh.SignalHandler
	reporter  Reporter
	joined    bool
	network   mesh.NetworkInfo
	phase     phase
	steerGen  uint64
	steerTmr  *time.Timer
	picked    candidate
	sawClosed bool
}

// New creates a stack. Call Run to bring it up.
func New(config Config) (*Stack, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	s := &Stack{
		config:   config,
		nwkSeq:   nwk.NewSequenceCounter(),
		zclSeq:   nwk.NewSequenceCounter(),
		dups:     nwk.NewDuplicateFilter(),
		alarms:   newAlarmTable(),
		wake:     make(chan struct{}, 1),
		handler:  config.Handler,
		reporter: config.Reporter,
		network: mesh.NetworkInfo{
			PANID:        nwk.BroadcastPAN,
			ShortAddress: nwk.UnassignedAddress,
			IEEEAddress:  config.IEEEAddress,
		},
	}
	s.factoryNew.Store(true)
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("stack")
	}

	link, err := transport.NewUDP(transport.UDPConfig{
		Conn:          config.Conn,
		FrameHandler:  s.onFrame,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	s.link = link
	return s, nil
}

// SetSignalHandler sets the application signal handler.
func (s *Stack) SetSignalHandler(h mesh.SignalHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetReporter sets the reporter ticked while joined.
func (s *Stack) SetReporter(r Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporter = r
}

// State returns the lifecycle state.
func (s *Stack) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IEEEAddress returns the node's extended address.
func (s *Stack) IEEEAddress() uint64 {
	return s.config.IEEEAddress
}

// Joined reports whether the node currently holds a network association.
func (s *Stack) Joined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joined
}

// Run brings up the radio link, raises SignalStackInitialized and runs the
// event loop until ctx is cancelled.
func (s *Stack) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = StateRunning
	s.mu.Unlock()

	if err := s.link.Start(); err != nil {
		s.setStopped()
		return err
	}
	if s.log != nil {
		s.log.Infof("stack up, IEEE %s", nwk.FormatIEEE(s.config.IEEEAddress))
	}

	s.post(func() { s.emit(mesh.SignalStackInitialized, mesh.StatusSuccess) })

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-s.wake:
			s.drain()
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Stack) shutdown() {
	s.alarms.stopAll()
	s.mu.Lock()
	s.stopSteeringTimerLocked()
	s.mu.Unlock()
	_ = s.link.Stop()
	s.setStopped()
	if s.log != nil {
		s.log.Info("stack stopped")
	}
}

func (s *Stack) setStopped() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

func (s *Stack) post(fn func()) {
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stack) drain() {
	for {
		s.qmu.Lock()
		q := s.queue
		s.queue = nil
		s.qmu.Unlock()
		if len(q) == 0 {
			return
		}
		for _, fn := range q {
			fn()
		}
	}
}

func (s *Stack) tick(now time.Time) {
	s.mu.RLock()
	r, joined := s.reporter, s.joined
	s.mu.RUnlock()
	if r != nil && joined {
		r.Tick(now)
	}
}

// emit delivers a signal to the handler. Must run on the event loop.
func (s *Stack) emit(kind mesh.SignalKind, status mesh.Status) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()

	sig := mesh.Signal{Kind: kind, Status: status}
	if s.log != nil {
		s.log.Debugf("signal %s", sig)
	}
	if h != nil {
		h.HandleSignal(sig)
	}
}

// ScheduleAlarm implements mesh.Stack.
func (s *Stack) ScheduleAlarm(delay time.Duration, mode mesh.CommissioningMode, fn func(mesh.CommissioningMode)) {
	s.alarms.arm(delay, mode, func(gen uint64) {
		s.post(func() {
			if s.alarms.take(mode, gen) {
				fn(mode)
			}
		})
	})
}

// SetTxPower implements mesh.Stack.
func (s *Stack) SetTxPower(dbm int8) error {
	if dbm < MinTxPower || dbm > MaxTxPower {
		return ErrInvalidTxPower
	}
	s.txPower.Store(int32(dbm))
	return nil
}

// TxPower returns the configured transmit power in dBm.
func (s *Stack) TxPower() int8 {
	return int8(s.txPower.Load())
}

// IsFactoryNew implements mesh.Stack.
func (s *Stack) IsFactoryNew() bool {
	return s.factoryNew.Load()
}

// NetworkInfo implements mesh.Stack.
func (s *Stack) NetworkInfo() mesh.NetworkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

var _ mesh.Stack = (*Stack)(nil)
