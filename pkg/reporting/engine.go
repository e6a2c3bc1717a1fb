// Package reporting implements configured attribute reporting: a changed
// attribute is reported once it moved by at least its reportable change and
// its minimum interval has passed, and every attribute is re-reported at
// its maximum interval.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Default reporting configuration.
const (
	DefaultMinInterval      = 10 * time.Second
	DefaultMaxInterval      = 300 * time.Second
	DefaultReportableChange = 10
)

// Errors returned by the engine.
var (
	ErrNoReader      = errors.New("reporting: attribute reader is required")
	ErrNoSink        = errors.New("reporting: sink is required")
	ErrNotReportable = errors.New("reporting: attribute is not reportable")
	ErrInvalidConfig = errors.New("reporting: max interval below min interval")
)

// Config is the reporting configuration of one attribute.
type Config struct {
	MinInterval time.Duration

	// MaxInterval of zero disables periodic reports.
	MaxInterval time.Duration

	// ReportableChange is in the attribute's raw units and applies only
	// to analog types. Zero reports any change.
	ReportableChange uint64
}

// DefaultConfig is 10 s / 300 s / 10 raw units (0.1 °C or 0.1 %RH).
func DefaultConfig() Config {
	return Config{
		MinInterval:      DefaultMinInterval,
		MaxInterval:      DefaultMaxInterval,
		ReportableChange: DefaultReportableChange,
	}
}

// Validate checks the intervals.
func (c Config) Validate() error {
	if c.MaxInterval != 0 && c.MaxInterval < c.MinInterval {
		return ErrInvalidConfig
	}
	return nil
}

// Sink receives Report Attributes payloads, one call per cluster.
type Sink interface {
	SendReport(ep datamodel.EndpointID, cl datamodel.ClusterID, records []zcl.AttributeRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ep datamodel.EndpointID, cl datamodel.ClusterID, records []zcl.AttributeRecord) error

// SendReport calls f.
func (f SinkFunc) SendReport(ep datamodel.EndpointID, cl datamodel.ClusterID, records []zcl.AttributeRecord) error {
	return f(ep, cl, records)
}

// AttributeReader is the part of the node the engine reads from.
type AttributeReader interface {
	GetCluster(ep datamodel.EndpointID, cl datamodel.ClusterID) datamodel.Cluster
	ReadAttribute(ctx context.Context, ep datamodel.EndpointID, cl datamodel.ClusterID, attr datamodel.AttributeID) (zcl.Value, error)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Reader AttributeReader
	Sink   Sink

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// LoggerFactory for engine logs. Optional.
	LoggerFactory logging.LoggerFactory
}

type entry struct {
	path       datamodel.ConcreteAttributePath
	config     Config
	analog     bool
	last       zcl.Value
	reported   bool
	lastReport time.Time
	pending    bool
}

// Engine tracks reporting state for configured attributes. It implements
// datamodel.AttributeChangeListener.
type Engine struct {
	reader AttributeReader
	sink   Sink
	now    func() time.Time
	log    logging.LeveledLogger

	mu      sync.Mutex
	entries map[datamodel.ConcreteAttributePath]*entry
}

// NewEngine creates an engine with no configured attributes.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Reader == nil {
		return nil, ErrNoReader
	}
	if config.Sink == nil {
		return nil, ErrNoSink
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	e := &Engine{
		reader:  config.Reader,
		sink:    config.Sink,
		now:     config.Now,
		entries: make(map[datamodel.ConcreteAttributePath]*entry),
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("reporting")
	}
	return e, nil
}

// Configure enables reporting of path. The attribute must exist and be
// marked reportable. Reconfiguring keeps the last reported value.
func (e *Engine) Configure(path datamodel.ConcreteAttributePath, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c := e.reader.GetCluster(path.Endpoint, path.Cluster)
	if c == nil {
		return fmt.Errorf("reporting: %s: %w", path, datamodel.ErrClusterNotFound)
	}
	attr := datamodel.FindAttribute(c.AttributeList(), path.Attribute)
	if attr == nil {
		return fmt.Errorf("reporting: %s: %w", path, datamodel.ErrAttributeNotFound)
	}
	if !attr.IsReportable() {
		return fmt.Errorf("reporting: %s: %w", path, ErrNotReportable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.entries[path]; ok {
		existing.config = cfg
		return nil
	}
	e.entries[path] = &entry{
		path:       path,
		config:     cfg,
		analog:     attr.Type.IsAnalog(),
		lastReport: e.now(),
	}
	return nil
}

// Remove disables reporting of path.
func (e *Engine) Remove(path datamodel.ConcreteAttributePath) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, path)
}

// Configured returns the configured paths in a stable order.
func (e *Engine) Configured() []datamodel.ConcreteAttributePath {
	e.mu.Lock()
	defer e.mu.Unlock()

	paths := make([]datamodel.ConcreteAttributePath, 0, len(e.entries))
	for p := range e.entries {
		paths = append(paths, p)
	}
	sortPaths(paths)
	return paths
}

// OnAttributeChanged reports path right away when its conditions are met,
// otherwise leaves it pending for Tick.
func (e *Engine) OnAttributeChanged(path datamodel.ConcreteAttributePath) {
	e.mu.Lock()
	ent, ok := e.entries[path]
	if ok {
		ent.pending = true
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	e.flush(e.now(), []datamodel.ConcreteAttributePath{path})
}

// Tick reports every configured attribute that is due at now.
func (e *Engine) Tick(now time.Time) {
	e.flush(now, e.Configured())
}

// ReportAll reports every configured attribute regardless of intervals,
// as after a (re)join.
func (e *Engine) ReportAll() {
	paths := e.Configured()
	now := e.now()
	values := e.readAll(paths)

	e.mu.Lock()
	var due []*entry
	for _, p := range paths {
		ent, ok := e.entries[p]
		if !ok {
			continue
		}
		if _, ok := values[p]; ok {
			due = append(due, ent)
		}
	}
	batches := e.commit(now, due, values)
	e.mu.Unlock()

	e.send(batches)
}

func (e *Engine) flush(now time.Time, paths []datamodel.ConcreteAttributePath) {
	values := e.readAll(paths)

	e.mu.Lock()
	var due []*entry
	for _, p := range paths {
		ent, ok := e.entries[p]
		if !ok {
			continue
		}
		v, ok := values[p]
		if !ok {
			continue
		}
		if e.isDue(ent, v, now) {
			due = append(due, ent)
		}
	}
	batches := e.commit(now, due, values)
	e.mu.Unlock()

	e.send(batches)
}

func (e *Engine) readAll(paths []datamodel.ConcreteAttributePath) map[datamodel.ConcreteAttributePath]zcl.Value {
	values := make(map[datamodel.ConcreteAttributePath]zcl.Value, len(paths))
	for _, p := range paths {
		v, err := e.reader.ReadAttribute(context.Background(), p.Endpoint, p.Cluster, p.Attribute)
		if err != nil {
			if e.log != nil {
				e.log.Warnf("read %s for report: %v", p, err)
			}
			continue
		}
		values[p] = v
	}
	return values
}

// isDue must be called with mu held.
func (e *Engine) isDue(ent *entry, v zcl.Value, now time.Time) bool {
	elapsed := now.Sub(ent.lastReport)
	if ent.config.MaxInterval > 0 && elapsed >= ent.config.MaxInterval {
		return true
	}
	if !ent.pending || elapsed < ent.config.MinInterval {
		return false
	}
	if !e.changedEnough(ent, v) {
		// The value drifted back; nothing to report until it moves again.
		ent.pending = false
		return false
	}
	return true
}

func (e *Engine) changedEnough(ent *entry, v zcl.Value) bool {
	if !ent.reported {
		return true
	}
	if !ent.analog {
		return !v.Equal(ent.last)
	}
	cur, err1 := v.Int()
	last, err2 := ent.last.Int()
	if err1 != nil || err2 != nil {
		return !v.Equal(ent.last)
	}
	delta := cur - last
	if delta < 0 {
		delta = -delta
	}
	if ent.config.ReportableChange == 0 {
		return delta != 0
	}
	return uint64(delta) >= ent.config.ReportableChange
}

type batch struct {
	path    datamodel.ConcreteClusterPath
	records []zcl.AttributeRecord
}

// commit marks due entries reported and groups them per cluster. It must
// be called with mu held.
func (e *Engine) commit(now time.Time, due []*entry, values map[datamodel.ConcreteAttributePath]zcl.Value) []batch {
	var batches []batch
	index := make(map[datamodel.ConcreteClusterPath]int)
	for _, ent := range due {
		v := values[ent.path]
		ent.last = v
		ent.reported = true
		ent.lastReport = now
		ent.pending = false

		cp := ent.path.ClusterPath()
		i, ok := index[cp]
		if !ok {
			i = len(batches)
			index[cp] = i
			batches = append(batches, batch{path: cp})
		}
		batches[i].records = append(batches[i].records, zcl.AttributeRecord{ID: ent.path.Attribute, Value: v})
	}
	return batches
}

func (e *Engine) send(batches []batch) {
	for _, b := range batches {
		if err := e.sink.SendReport(b.path.Endpoint, b.path.Cluster, b.records); err != nil {
			if e.log != nil {
				e.log.Warnf("report %s failed: %v", b.path, err)
			}
			continue
		}
		if e.log != nil {
			e.log.Debugf("reported %s: %d attribute(s)", b.path, len(b.records))
		}
	}
}

func sortPaths(paths []datamodel.ConcreteAttributePath) {
	sort.Slice(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		if a.Cluster != b.Cluster {
			return a.Cluster < b.Cluster
		}
		return a.Attribute < b.Attribute
	})
}

var _ datamodel.AttributeChangeListener = (*Engine)(nil)
