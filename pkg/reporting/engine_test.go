package reporting

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backkem/climate-node/pkg/clusters/basic"
	"github.com/backkem/climate-node/pkg/clusters/humidity"
	"github.com/backkem/climate-node/pkg/clusters/temperature"
	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

type sentReport struct {
	ep      datamodel.EndpointID
	cl      datamodel.ClusterID
	records []zcl.AttributeRecord
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sentReport
	err  error
}

func (s *recordingSink) SendReport(ep datamodel.EndpointID, cl datamodel.ClusterID, records []zcl.AttributeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentReport{ep: ep, cl: cl, records: records})
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSink) last() sentReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	tempPath = datamodel.ConcreteAttributePath{Endpoint: 1, Cluster: temperature.ClusterID, Attribute: temperature.AttrMeasuredValue}
	humPath  = datamodel.ConcreteAttributePath{Endpoint: 1, Cluster: humidity.ClusterID, Attribute: humidity.AttrMeasuredValue}
)

func newTestEngine(t *testing.T) (*datamodel.BasicNode, *Engine, *recordingSink, *clock) {
	t.Helper()

	node := datamodel.NewNode()
	ep := datamodel.NewEndpoint(1, datamodel.DeviceTemperatureSensor)
	_ = ep.AddCluster(basic.New(basic.Config{EndpointID: 1}))
	_ = ep.AddCluster(temperature.New(temperature.Config{EndpointID: 1}))
	_ = ep.AddCluster(humidity.New(humidity.Config{EndpointID: 1}))
	if err := node.AddEndpoint(ep); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}

	sink := &recordingSink{}
	clk := &clock{t: time.Unix(1000, 0)}
	e, err := NewEngine(EngineConfig{Reader: node, Sink: sink, Now: clk.Now})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	node.SetAttributeChangeListener(e)

	if err := e.Configure(tempPath, DefaultConfig()); err != nil {
		t.Fatalf("Configure temperature: %v", err)
	}
	if err := e.Configure(humPath, DefaultConfig()); err != nil {
		t.Fatalf("Configure humidity: %v", err)
	}
	return node, e, sink, clk
}

func setTemp(t *testing.T, node *datamodel.BasicNode, v int16) {
	t.Helper()
	node.Lock()
	err := node.SetAttribute(1, temperature.ClusterID, temperature.AttrMeasuredValue, zcl.Int16(v))
	node.Unlock()
	if err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
}

func TestEngine_ReportsChangeAfterMinInterval(t *testing.T) {
	node, _, sink, clk := newTestEngine(t)

	// Inside the min interval after configuration: held back.
	clk.Advance(5 * time.Second)
	setTemp(t, node, 2219)
	if sink.count() != 0 {
		t.Fatalf("reported inside min interval")
	}

	clk.Advance(5 * time.Second)
	setTemp(t, node, 2220)
	if sink.count() != 1 {
		t.Fatalf("sent %d reports, want 1", sink.count())
	}
	r := sink.last()
	if r.cl != temperature.ClusterID || len(r.records) != 1 || !r.records[0].Value.Equal(zcl.Int16(2220)) {
		t.Errorf("report = %+v", r)
	}
}

func TestEngine_PendingChangeReportedOnTick(t *testing.T) {
	node, e, sink, clk := newTestEngine(t)

	clk.Advance(2 * time.Second)
	setTemp(t, node, 1500)
	if sink.count() != 0 {
		t.Fatal("reported inside min interval")
	}

	clk.Advance(8 * time.Second)
	e.Tick(clk.Now())
	if sink.count() != 1 {
		t.Fatalf("pending change not reported at min interval: %d reports", sink.count())
	}
}

func TestEngine_ReportableChangeThreshold(t *testing.T) {
	node, _, sink, clk := newTestEngine(t)

	clk.Advance(10 * time.Second)
	setTemp(t, node, 2200)
	if sink.count() != 1 {
		t.Fatalf("first report missing")
	}

	clk.Advance(10 * time.Second)
	setTemp(t, node, 2209) // 0.09 °C
	if sink.count() != 1 {
		t.Errorf("sub-threshold change reported")
	}

	clk.Advance(10 * time.Second)
	setTemp(t, node, 2190) // 0.10 °C below the last report
	if sink.count() != 2 {
		t.Errorf("threshold change not reported: %d reports", sink.count())
	}
}

func TestEngine_MaxIntervalGroupsPerCluster(t *testing.T) {
	_, e, sink, clk := newTestEngine(t)

	clk.Advance(299 * time.Second)
	e.Tick(clk.Now())
	if sink.count() != 0 {
		t.Fatalf("reported before max interval")
	}

	clk.Advance(time.Second)
	e.Tick(clk.Now())
	if sink.count() != 2 {
		t.Fatalf("sent %d reports at max interval, want one per cluster", sink.count())
	}

	// The periodic report restarts the interval.
	clk.Advance(time.Second)
	e.Tick(clk.Now())
	if sink.count() != 2 {
		t.Errorf("re-reported right after periodic report")
	}
}

func TestEngine_ReportAll(t *testing.T) {
	_, e, sink, _ := newTestEngine(t)

	e.ReportAll()
	if sink.count() != 2 {
		t.Fatalf("ReportAll sent %d reports, want 2", sink.count())
	}
}

func TestEngine_SinkErrorIsLogged(t *testing.T) {
	node, _, sink, clk := newTestEngine(t)
	sink.err = errors.New("radio busy")

	clk.Advance(10 * time.Second)
	setTemp(t, node, 100)
	if sink.count() != 1 {
		t.Errorf("sink called %d times, want 1", sink.count())
	}
}

func TestEngine_ConfigureErrors(t *testing.T) {
	_, e, _, _ := newTestEngine(t)

	tests := []struct {
		name string
		path datamodel.ConcreteAttributePath
		cfg  Config
		want error
	}{
		{
			name: "missing cluster",
			path: datamodel.ConcreteAttributePath{Endpoint: 1, Cluster: 0x0006, Attribute: 0},
			cfg:  DefaultConfig(),
			want: datamodel.ErrClusterNotFound,
		},
		{
			name: "missing attribute",
			path: datamodel.ConcreteAttributePath{Endpoint: 1, Cluster: temperature.ClusterID, Attribute: 0x0042},
			cfg:  DefaultConfig(),
			want: datamodel.ErrAttributeNotFound,
		},
		{
			name: "not reportable",
			path: datamodel.ConcreteAttributePath{Endpoint: 1, Cluster: basic.ClusterID, Attribute: basic.AttrModelIdentifier},
			cfg:  DefaultConfig(),
			want: ErrNotReportable,
		},
		{
			name: "max below min",
			path: tempPath,
			cfg:  Config{MinInterval: time.Minute, MaxInterval: time.Second},
			want: ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Configure(tt.path, tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("Configure() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEngine_RemoveAndUnconfigured(t *testing.T) {
	node, e, sink, clk := newTestEngine(t)
	e.Remove(tempPath)

	if got := e.Configured(); len(got) != 1 || got[0] != humPath {
		t.Errorf("Configured() = %v, want [%v]", got, humPath)
	}

	clk.Advance(time.Minute)
	setTemp(t, node, 3000)
	if sink.count() != 0 {
		t.Errorf("removed attribute was reported")
	}
}

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine(EngineConfig{Sink: &recordingSink{}}); err != ErrNoReader {
		t.Errorf("NewEngine() = %v, want ErrNoReader", err)
	}
	if _, err := NewEngine(EngineConfig{Reader: datamodel.NewNode()}); err != ErrNoSink {
		t.Errorf("NewEngine() = %v, want ErrNoSink", err)
	}
}
