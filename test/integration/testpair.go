// Package integration runs climate sensors against a gateway end to end.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/backkem/climate-node/examples/gateway"
	"github.com/backkem/climate-node/examples/sensor"
	"github.com/backkem/climate-node/pkg/config"
	"github.com/backkem/climate-node/pkg/transport"
)

// SensorIEEE is the extended address test sensors use.
const SensorIEEE = 0x00124B0001020304

// SensorName is the friendly name the gateway maps SensorIEEE to.
const SensorName = "bedroom"

// TestConfig returns a configuration with a simulated sensor and intervals
// short enough for tests.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "disabled"
	cfg.Node.IEEEAddress = "0x00124B0001020304"
	cfg.Node.ReportInterval = 20 * time.Millisecond
	cfg.Node.JoinPollInterval = 10 * time.Millisecond
	cfg.Node.ReportMinInterval = time.Millisecond
	cfg.Node.ReportMaxInterval = time.Second
	cfg.Sensor.Simulated = true
	cfg.Sensor.Temperature = 21.5
	cfg.Sensor.Humidity = 45
	cfg.Network.SteeringTimeout = 200 * time.Millisecond
	cfg.Coordinator.PermitJoin = time.Minute
	cfg.Coordinator.Devices = map[string]string{"0x00124B0001020304": SensorName}
	return cfg
}

// Message is one recorded MQTT publish.
type Message struct {
	Topic    string
	Retained bool
	Payload  string
}

type doneToken struct{ done chan struct{} }

func newDoneToken() *doneToken {
	t := &doneToken{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return nil }

// Broker records what the MQTT bridge publishes.
type Broker struct {
	mu       sync.Mutex
	messages []Message
}

// Publish implements mqtt.Publisher.
func (b *Broker) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	var p string
	switch v := payload.(type) {
	case []byte:
		p = string(v)
	case string:
		p = v
	}
	b.mu.Lock()
	b.messages = append(b.messages, Message{Topic: topic, Retained: retained, Payload: p})
	b.mu.Unlock()
	return newDoneToken()
}

// Messages returns the messages published on topic.
func (b *Broker) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// State is a decoded device state payload.
type State struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	LinkQuality uint8    `json:"linkquality"`
}

// LastState decodes the most recent state published on topic.
func (b *Broker) LastState(topic string) (State, bool) {
	msgs := b.Messages(topic)
	if len(msgs) == 0 {
		return State{}, false
	}
	var s State
	if err := json.Unmarshal([]byte(msgs[len(msgs)-1].Payload), &s); err != nil {
		return State{}, false
	}
	return s, true
}

// Database records the points the InfluxDB bridge writes.
type Database struct {
	mu     sync.Mutex
	points []*write.Point
}

// WritePoint implements influx.PointWriter.
func (d *Database) WritePoint(p *write.Point) {
	d.mu.Lock()
	d.points = append(d.points, p)
	d.mu.Unlock()
}

// Fields returns every recorded value of field, oldest first.
func (d *Database) Fields(field string) []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []float64
	for _, p := range d.points {
		for _, f := range p.FieldList() {
			if v, ok := f.Value.(float64); ok && f.Key == field {
				out = append(out, v)
			}
		}
	}
	return out
}

// Tag returns the value of tag on the most recent point, if any.
func (d *Database) Tag(tag string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.points) == 0 {
		return ""
	}
	for _, t := range d.points[len(d.points)-1].TagList() {
		if t.Key == tag {
			return t.Value
		}
	}
	return ""
}

// TestPair is a simulated sensor and a gateway joined by an in-memory link.
type TestPair struct {
	// Device is the sensor under test.
	Device *sensor.Device

	// Gateway is the coordinator with both bridges attached.
	Gateway *gateway.Gateway

	// Broker records MQTT traffic.
	Broker *Broker

	// Database records InfluxDB points.
	Database *Database

	t        *testing.T
	cfg      *config.Config
	pipe     *transport.Pipe
	cancel   context.CancelFunc
	gwDone   chan error
	nodeDone chan error
	once     sync.Once
}

// NewTestPair builds a pair from cfg without starting it. A nil cfg uses
// TestConfig.
func NewTestPair(t *testing.T, cfg *config.Config) *TestPair {
	t.Helper()
	if cfg == nil {
		cfg = TestConfig()
	}
	lf := cfg.Logging.LoggerFactory(testWriter{t})

	nodeSide, coordSide := transport.NewPipeFactoryPair()
	nodeConn, _ := nodeSide.CreatePacketConn(transport.DefaultPort)
	coordConn, _ := coordSide.CreatePacketConn(transport.DefaultPort)

	p := &TestPair{
		Broker:   &Broker{},
		Database: &Database{},
		t:        t,
		cfg:      cfg,
		pipe:     nodeSide.Pipe(),
	}

	gw, err := gateway.New(context.Background(), cfg, lf, gateway.Options{
		Conn:        coordConn,
		Publisher:   p.Broker,
		PointWriter: p.Database,
	})
	if err != nil {
		p.pipe.Close()
		t.Fatalf("gateway.New() error = %v", err)
	}
	p.Gateway = gw

	dev, err := sensor.NewDevice(cfg, lf, &sensor.Link{Conn: nodeConn, Coordinator: nodeSide.PeerAddr()})
	if err != nil {
		p.pipe.Close()
		t.Fatalf("sensor.NewDevice() error = %v", err)
	}
	p.Device = dev

	t.Cleanup(p.Close)
	return p
}

// SetCondition impairs the radio link in both directions.
func (p *TestPair) SetCondition(c transport.NetworkCondition) {
	p.pipe.SetCondition(c)
}

// Start runs the gateway, waits for permit-join to open and then runs the
// sensor.
func (p *TestPair) Start() {
	p.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.gwDone = make(chan error, 1)
	go func() { p.gwDone <- p.Gateway.Run(ctx) }()
	WaitFor(p.t, 2*time.Second, "permit-join open", p.Gateway.Coordinator.PermitJoinOpen)

	p.nodeDone = make(chan error, 1)
	go func() { p.nodeDone <- p.Device.Run(ctx) }()
}

// WaitJoined blocks until the sensor is joined and known to the gateway.
func (p *TestPair) WaitJoined() {
	p.t.Helper()
	WaitFor(p.t, 5*time.Second, "sensor joined", func() bool {
		if !p.Device.Node.IsJoined() {
			return false
		}
		_, ok := p.Gateway.Coordinator.Device(SensorIEEE)
		return ok
	})
}

// Close stops both sides and reports unexpected run errors.
func (p *TestPair) Close() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
			for _, ch := range []chan error{p.nodeDone, p.gwDone} {
				if ch == nil {
					continue
				}
				select {
				case err := <-ch:
					if err != nil && !errors.Is(err, context.Canceled) {
						p.t.Errorf("run error: %v", err)
					}
				case <-time.After(5 * time.Second):
					p.t.Error("shutdown timed out")
				}
			}
		}
		if p.Device != nil {
			p.Device.Close()
		}
		p.pipe.Close()
	})
}

// Context returns a context bounded by a reasonable timeout for one
// request against the pair.
func (p *TestPair) Context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	p.t.Cleanup(cancel)
	return ctx
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// testWriter routes log output through t.Log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(b []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}
