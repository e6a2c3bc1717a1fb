package node

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/backkem/climate-node/pkg/clusters/basic"
	"github.com/backkem/climate-node/pkg/clusters/humidity"
	"github.com/backkem/climate-node/pkg/clusters/identify"
	"github.com/backkem/climate-node/pkg/clusters/temperature"
	"github.com/backkem/climate-node/pkg/commissioning"
	"github.com/backkem/climate-node/pkg/coordinator"
	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/reporting"
	"github.com/backkem/climate-node/pkg/shtc3"
	"github.com/backkem/climate-node/pkg/stack"
	"github.com/backkem/climate-node/pkg/telemetry"
	"github.com/backkem/climate-node/pkg/transport"
)

type link struct {
	nodeConn  net.PacketConn
	coordConn net.PacketConn
	coordAddr net.Addr
}

func newLink(t *testing.T) link {
	t.Helper()
	nodeSide, coordSide := transport.NewPipeFactoryPair()
	nodeConn, _ := nodeSide.CreatePacketConn(transport.DefaultPort)
	coordConn, _ := coordSide.CreatePacketConn(transport.DefaultPort)
	t.Cleanup(func() { nodeSide.Pipe().Close() })
	return link{nodeConn: nodeConn, coordConn: coordConn, coordAddr: nodeSide.PeerAddr()}
}

func simulatedSensor(tempC, humidityPct float64) (*shtc3.Device, *shtc3.Simulator) {
	sim := shtc3.NewSimulator(nil)
	sim.SetConditions(tempC, humidityPct)
	return shtc3.New(shtc3.Config{Bus: sim}), sim
}

func testConfig(l link, sensor telemetry.Sensor) NodeConfig {
	return NodeConfig{
		Sensor:           sensor,
		Conn:             l.nodeConn,
		Coordinator:      l.coordAddr,
		IEEEAddress:      0x00124B0001020304,
		ReportInterval:   20 * time.Millisecond,
		JoinPollInterval: 10 * time.Millisecond,
		InitRetryDelay:   10 * time.Millisecond,
		SteeringTimeout:  200 * time.Millisecond,
		TickInterval:     10 * time.Millisecond,
		Reporting: reporting.Config{
			MinInterval: time.Millisecond,
			MaxInterval: time.Second,
		},
	}
}

func TestNew_Validation(t *testing.T) {
	l := newLink(t)
	sensor, _ := simulatedSensor(21, 45)

	tests := []struct {
		name   string
		modify func(*NodeConfig)
		want   error
	}{
		{"no sensor", func(c *NodeConfig) { c.Sensor = nil }, ErrNoSensor},
		{"no conn", func(c *NodeConfig) { c.Conn = nil }, stack.ErrNoConn},
		{"no coordinator", func(c *NodeConfig) { c.Coordinator = nil }, stack.ErrNoCoordinator},
		{"endpoint", func(c *NodeConfig) { c.Endpoint = 241 }, ErrInvalidEndpoint},
		{"reporting", func(c *NodeConfig) {
			c.Reporting = reporting.Config{MinInterval: time.Minute, MaxInterval: time.Second}
		}, reporting.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(l, sensor)
			tt.modify(&cfg)
			if _, err := New(cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNew_Model(t *testing.T) {
	l := newLink(t)
	sensor, _ := simulatedSensor(21, 45)
	n, err := New(testConfig(l, sensor))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	ep := n.Endpoint()
	if ep != DefaultEndpoint {
		t.Errorf("Endpoint() = %d, want %d", ep, DefaultEndpoint)
	}

	for _, cl := range []datamodel.ClusterID{basic.ClusterID, identify.ClusterID, temperature.ClusterID, humidity.ClusterID} {
		if n.Model().GetCluster(ep, cl) == nil {
			t.Errorf("cluster 0x%04X missing", uint16(cl))
		}
	}

	v, err := n.Model().ReadAttribute(ctx, ep, basic.ClusterID, basic.AttrManufacturerName)
	if s, _ := v.Str(); err != nil || s != DefaultManufacturer {
		t.Errorf("ManufacturerName = %q, %v", s, err)
	}
	v, err = n.Model().ReadAttribute(ctx, ep, basic.ClusterID, basic.AttrModelIdentifier)
	if s, _ := v.Str(); err != nil || s != DefaultModel {
		t.Errorf("ModelIdentifier = %q, %v", s, err)
	}
	v, err = n.Model().ReadAttribute(ctx, ep, basic.ClusterID, basic.AttrPowerSource)
	if u, _ := v.Uint(); err != nil || u != uint64(basic.PowerSourceBattery) {
		t.Errorf("PowerSource = %d, %v", u, err)
	}

	n.Identify(5 * time.Second)
	v, err = n.Model().ReadAttribute(ctx, ep, identify.ClusterID, identify.AttrIdentifyTime)
	if u, _ := v.Uint(); err != nil || u == 0 {
		t.Errorf("IdentifyTime = %d, %v; want non-zero", u, err)
	}

	if n.IsJoined() {
		t.Error("IsJoined() = true before Run")
	}
	if n.JoinState() != commissioning.StateUninitialized {
		t.Errorf("JoinState() = %s", n.JoinState())
	}
}

func TestRun_JoinsAndReports(t *testing.T) {
	l := newLink(t)

	coord, err := coordinator.New(coordinator.Config{Conn: l.coordConn})
	if err != nil {
		t.Fatalf("coordinator.New() error = %v", err)
	}
	if err := coord.Start(); err != nil {
		t.Fatalf("coordinator.Start() error = %v", err)
	}
	t.Cleanup(func() { coord.Stop() })
	coord.PermitJoin(time.Minute)

	reports := make(chan coordinator.Report, 64)
	coord.AddReportHandler(coordinator.ReportHandlerFunc(func(r coordinator.Report) {
		select {
		case reports <- r:
		default:
		}
	}))

	sensor, _ := simulatedSensor(21.5, 40)
	samples := make(chan float64, 16)
	cfg := testConfig(l, sensor)
	cfg.OnSample = func(tc, _ float64) {
		select {
		case samples <- tc:
		default:
		}
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	var gotTemp bool
	for !gotTemp {
		select {
		case r := <-reports:
			if r.Device.IEEEAddress != n.IEEEAddress() {
				t.Errorf("report from 0x%X, want node", r.Device.IEEEAddress)
			}
			if r.Cluster != temperature.ClusterID {
				continue
			}
			v, _ := r.Value.Int()
			// Allow for the sensor's raw quantization.
			if v >= 2148 && v <= 2150 {
				gotTemp = true
			}
		case <-deadline:
			t.Fatal("no temperature report near 21.50 C")
		}
	}

	if !n.IsJoined() {
		t.Error("IsJoined() = false after reporting")
	}
	if n.JoinState() != commissioning.StateJoined {
		t.Errorf("JoinState() = %s, want Joined", n.JoinState())
	}
	if info := n.NetworkInfo(); info.PANID != coord.PANID() {
		t.Errorf("NetworkInfo().PANID = 0x%04X, want 0x%04X", info.PANID, coord.PANID())
	}
	select {
	case <-samples:
	case <-time.After(time.Second):
		t.Error("OnSample not called")
	}
	if n.Stats().Reported == 0 {
		t.Error("Stats().Reported = 0")
	}

	if err := n.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
