// Package influx writes coordinator reports to InfluxDB as points in the
// "climate" measurement, tagged by device.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/bridge"
	"github.com/backkem/climate-node/pkg/coordinator"
)

// Measurement is the InfluxDB measurement every point is written to.
const Measurement = "climate"

// Defaults.
const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
	defaultPingTimeout   = 5 * time.Second
)

// Errors.
var (
	ErrNoWriter         = errors.New("influx: point writer is required")
	ErrConnectionFailed = errors.New("influx: connection failed")
)

// PointWriter is the part of api.WriteAPI the bridge uses.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Writer receives points. Required; use Connect for a server client.
	Writer PointWriter

	// Names maps IEEE addresses to friendly names.
	Names bridge.Names

	// LoggerFactory for bridge logs. Optional.
	LoggerFactory logging.LoggerFactory
}

// Bridge is a coordinator.ReportHandler writing one point per report.
type Bridge struct {
	writer PointWriter
	names  bridge.Names
	log    logging.LeveledLogger
}

// NewBridge creates a bridge.
func NewBridge(config BridgeConfig) (*Bridge, error) {
	if config.Writer == nil {
		return nil, ErrNoWriter
	}
	b := &Bridge{writer: config.Writer, names: config.Names}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("influx")
	}
	return b, nil
}

// HandleReport implements coordinator.ReportHandler.
func (b *Bridge) HandleReport(r coordinator.Report) {
	m, ok := bridge.Convert(r)
	if !ok {
		return
	}
	b.writer.WritePoint(Point(b.names.Lookup(r.Device), r, m))
	if b.log != nil {
		b.log.Debugf("wrote %s=%.2f for %s", m.Field, m.Value, b.names.Lookup(r.Device))
	}
}

// Point builds the point for one converted report.
func Point(name string, r coordinator.Report, m bridge.Measurement) *write.Point {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		Measurement,
		map[string]string{
			"device": name,
			"ieee":   r.Device.FriendlyName(),
		},
		map[string]interface{}{
			m.Field: m.Value,
		},
		ts,
	)
}

// ClientConfig describes the InfluxDB server.
type ClientConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// BatchSize defaults to 100 points.
	BatchSize uint

	// FlushInterval defaults to 10s.
	FlushInterval time.Duration
}

// Client is a connected, batching InfluxDB writer.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// Connect creates a client and verifies the server answers a ping.
// onError receives asynchronous write failures and may be nil.
func Connect(ctx context.Context, cfg ClientConfig, onError func(error)) (*Client, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(cfg.BatchSize).
			SetFlushInterval(uint(cfg.FlushInterval/time.Millisecond)))

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			if onError != nil {
				onError(err)
			}
		}
	}()
	return &Client{client: client, writeAPI: writeAPI}, nil
}

// WritePoint implements PointWriter. Writes are batched.
func (c *Client) WritePoint(p *write.Point) {
	c.writeAPI.WritePoint(p)
}

// Close flushes pending points and closes the client.
func (c *Client) Close() error {
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

var (
	_ coordinator.ReportHandler = (*Bridge)(nil)
	_ PointWriter               = (*Client)(nil)
)
