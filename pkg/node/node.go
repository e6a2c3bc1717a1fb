// Package node assembles a climate sensor node: the attribute model with its
// clusters, the mesh stack, the commissioning controller, the reporting
// engine and the telemetry loop.
package node

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"

	"github.com/backkem/climate-node/pkg/clusters"
	"github.com/backkem/climate-node/pkg/clusters/basic"
	"github.com/backkem/climate-node/pkg/clusters/humidity"
	"github.com/backkem/climate-node/pkg/clusters/identify"
	"github.com/backkem/climate-node/pkg/clusters/temperature"
	"github.com/backkem/climate-node/pkg/commissioning"
	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/mesh"
	"github.com/backkem/climate-node/pkg/reporting"
	"github.com/backkem/climate-node/pkg/shtc3"
	"github.com/backkem/climate-node/pkg/stack"
	"github.com/backkem/climate-node/pkg/storage"
	"github.com/backkem/climate-node/pkg/telemetry"
)

// Defaults.
const (
	DefaultEndpoint     datamodel.EndpointID = 1
	DefaultManufacturer                      = "DIY"
	DefaultModel                             = "XIAO-SHTC3"
)

// Errors.
var (
	ErrNoSensor        = errors.New("node: sensor is required")
	ErrInvalidEndpoint = errors.New("node: endpoint must be between 1 and 240")
	ErrAlreadyRunning  = errors.New("node: already running")
)

// NodeConfig configures a Node.
type NodeConfig struct {
	// Sensor provides temperature and humidity samples. Required.
	Sensor telemetry.Sensor

	// Conn is the radio link. Required.
	Conn net.PacketConn

	// Coordinator is the coordinator's link address. Required.
	Coordinator net.Addr

	// Storage persists the network association. Defaults to memory.
	Storage storage.Storage

	// IEEEAddress of the node. Zero picks a random address.
	IEEEAddress uint64

	// Endpoint hosting the application clusters. Default: 1.
	Endpoint datamodel.EndpointID

	// Manufacturer and Model are served by the Basic cluster.
	Manufacturer string
	Model        string

	// TxPower in dBm, applied when the stack initializes. Zero selects
	// commissioning.DefaultTxPower.
	TxPower int8

	// ReportInterval is the sampling period. Default: 30s.
	ReportInterval time.Duration

	// Reporting applies to both measured values. Zero selects
	// reporting.DefaultConfig.
	Reporting reporting.Config

	// Policy holds the commissioning retry delays.
	Policy commissioning.Policy

	// JoinPollInterval and InitRetryDelay tune the telemetry loop.
	JoinPollInterval time.Duration
	InitRetryDelay   time.Duration

	// SteeringTimeout and TickInterval tune the stack.
	SteeringTimeout time.Duration
	TickInterval    time.Duration

	// OnSample is called after each sample reaches the attribute model.
	OnSample func(temperatureC, humidityPct float64)

	// LoggerFactory for all node components. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *NodeConfig) Validate() error {
	if c.Sensor == nil {
		return ErrNoSensor
	}
	if c.Conn == nil {
		return stack.ErrNoConn
	}
	if c.Coordinator == nil {
		return stack.ErrNoCoordinator
	}
	if c.Endpoint > 240 {
		return ErrInvalidEndpoint
	}
	return c.Reporting.Validate()
}

func (c *NodeConfig) applyDefaults() {
	if c.Storage == nil {
		c.Storage = storage.NewMemoryStorage()
	}
	if c.Endpoint == 0 {
		c.Endpoint = DefaultEndpoint
	}
	if c.Manufacturer == "" {
		c.Manufacturer = DefaultManufacturer
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = telemetry.DefaultPeriod
	}
	if c.Reporting == (reporting.Config{}) {
		c.Reporting = reporting.DefaultConfig()
	}
}

// Node is a running climate sensor node.
type Node struct {
	config NodeConfig
	log    logging.LeveledLogger

	model      *datamodel.BasicNode
	identify   *identify.Cluster
	stack      *stack.Stack
	engine     *reporting.Engine
	controller *commissioning.Controller
	loop       *telemetry.Loop

	running atomic.Bool
}

// New builds the node. Nothing runs until Run.
func New(config NodeConfig) (*Node, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	n := &Node{config: config}
	if config.LoggerFactory != nil {
		n.log = config.LoggerFactory.NewLogger("node")
	}

	if err := n.buildModel(); err != nil {
		return nil, err
	}

	st, err := stack.New(stack.Config{
		Conn:            config.Conn,
		Coordinator:     config.Coordinator,
		Storage:         config.Storage,
		Node:            n.model,
		IEEEAddress:     config.IEEEAddress,
		SteeringTimeout: config.SteeringTimeout,
		TickInterval:    config.TickInterval,
		LoggerFactory:   config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	n.stack = st

	engine, err := reporting.NewEngine(reporting.EngineConfig{
		Reader:        n.model,
		Sink:          st,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	for _, cl := range []datamodel.ClusterID{temperature.ClusterID, humidity.ClusterID} {
		path := datamodel.ConcreteAttributePath{Endpoint: config.Endpoint, Cluster: cl, Attribute: clusters.AttrMeasuredValue}
		if err := engine.Configure(path, config.Reporting); err != nil {
			return nil, err
		}
	}
	n.engine = engine
	n.model.SetAttributeChangeListener(engine)
	st.SetReporter(engine)

	ctrl, err := commissioning.NewController(commissioning.Config{
		Stack:         st,
		TxPower:       config.TxPower,
		Policy:        config.Policy,
		OnJoinChange:  n.onJoinChange,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	n.controller = ctrl
	st.SetSignalHandler(ctrl)

	var onSample func(s shtc3.Sample)
	if config.OnSample != nil {
		onSample = func(s shtc3.Sample) { config.OnSample(s.TemperatureC, s.HumidityPct) }
	}
	loop, err := telemetry.New(telemetry.Config{
		Sensor:           config.Sensor,
		Join:             ctrl,
		Store:            n.model,
		Endpoint:         config.Endpoint,
		Period:           config.ReportInterval,
		JoinPollInterval: config.JoinPollInterval,
		InitRetryDelay:   config.InitRetryDelay,
		OnSample:         onSample,
		LoggerFactory:    config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	n.loop = loop
	return n, nil
}

func (n *Node) buildModel() error {
	ep := n.config.Endpoint
	n.model = datamodel.NewNode()
	n.identify = identify.New(identify.Config{EndpointID: ep})

	endpoint := datamodel.NewEndpoint(ep, datamodel.DeviceTemperatureSensor)
	for _, c := range []datamodel.Cluster{
		basic.New(basic.Config{
			EndpointID: ep,
			DeviceInfo: basic.DeviceInfo{
				ManufacturerName: n.config.Manufacturer,
				ModelIdentifier:  n.config.Model,
				PowerSource:      basic.PowerSourceBattery,
			},
		}),
		n.identify,
		temperature.New(temperature.Config{EndpointID: ep}),
		humidity.New(humidity.Config{EndpointID: ep}),
	} {
		if err := endpoint.AddCluster(c); err != nil {
			return err
		}
	}
	return n.model.AddEndpoint(endpoint)
}

func (n *Node) onJoinChange(joined bool) {
	if n.log == nil {
		return
	}
	if joined {
		n.log.Infof("joined %s", n.stack.NetworkInfo())
	} else {
		n.log.Info("not joined")
	}
}

// Run starts the stack and the telemetry loop and blocks until ctx is done
// or the stack fails.
func (n *Node) Run(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.stack.Run(gctx) })
	g.Go(func() error { return n.loop.Run(gctx) })

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Leave removes the node from its network.
func (n *Node) Leave() error {
	return n.stack.Leave()
}

// Identify starts identification for d.
func (n *Node) Identify(d time.Duration) {
	n.identify.Identify(d)
}

// IsJoined reports whether the node is associated with a network.
func (n *Node) IsJoined() bool { return n.controller.IsJoined() }

// JoinState returns the commissioning state.
func (n *Node) JoinState() commissioning.JoinState { return n.controller.State() }

// NetworkInfo returns the current association.
func (n *Node) NetworkInfo() mesh.NetworkInfo { return n.stack.NetworkInfo() }

// IEEEAddress returns the node's extended address.
func (n *Node) IEEEAddress() uint64 { return n.stack.IEEEAddress() }

// Stats returns the telemetry counters.
func (n *Node) Stats() telemetry.Stats { return n.loop.Stats() }

// Model returns the attribute model.
func (n *Node) Model() *datamodel.BasicNode { return n.model }

// Endpoint returns the application endpoint.
func (n *Node) Endpoint() datamodel.EndpointID { return n.config.Endpoint }
