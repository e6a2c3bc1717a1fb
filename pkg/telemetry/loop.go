// Package telemetry runs the node's sampling loop: wait for the first join,
// bring up the sensor, then on a fixed period sample it and write the
// reading into the attribute store while the node is joined.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/clusters/humidity"
	"github.com/backkem/climate-node/pkg/clusters/temperature"
	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/mesh"
	"github.com/backkem/climate-node/pkg/shtc3"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Default timings.
const (
	DefaultPeriod           = 30 * time.Second
	DefaultJoinPollInterval = 2 * time.Second
	DefaultInitRetryDelay   = 5 * time.Second
)

// Errors returned by the loop.
var (
	ErrNoSensor     = errors.New("telemetry: sensor is required")
	ErrNoJoinStatus = errors.New("telemetry: join status is required")
	ErrNoStore      = errors.New("telemetry: attribute store is required")
)

// Sensor is the acquisition side of the loop.
type Sensor interface {
	Initialize(ctx context.Context) error
	Sample(ctx context.Context) (shtc3.Sample, error)
}

// JoinStatus gates sampling.
type JoinStatus interface {
	IsJoined() bool
}

// JoinStatusFunc adapts a function to JoinStatus.
type JoinStatusFunc func() bool

// IsJoined calls f().
func (f JoinStatusFunc) IsJoined() bool { return f() }

// Config configures a Loop.
type Config struct {
	Sensor Sensor
	Join   JoinStatus
	Store  mesh.AttributeStore

	// Endpoint hosts the temperature and humidity clusters.
	Endpoint datamodel.EndpointID

	// Period between cycles. Defaults to DefaultPeriod.
	Period time.Duration

	// JoinPollInterval is how often the first join is polled.
	// Defaults to DefaultJoinPollInterval.
	JoinPollInterval time.Duration

	// InitRetryDelay is the wait between failed sensor initializations.
	// Defaults to DefaultInitRetryDelay.
	InitRetryDelay time.Duration

	// Sleep blocks between steps. Defaults to a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnSample is called after a sample has been written. Optional.
	OnSample func(shtc3.Sample)

	// LoggerFactory for loop logs. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Sensor == nil {
		return ErrNoSensor
	}
	if c.Join == nil {
		return ErrNoJoinStatus
	}
	if c.Store == nil {
		return ErrNoStore
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Period == 0 {
		c.Period = DefaultPeriod
	}
	if c.JoinPollInterval == 0 {
		c.JoinPollInterval = DefaultJoinPollInterval
	}
	if c.InitRetryDelay == 0 {
		c.InitRetryDelay = DefaultInitRetryDelay
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
}

// Stats counts loop outcomes.
type Stats struct {
	Reported uint64
	Skipped  uint64
	Failed   uint64
}

// Loop is the sampling loop.
type Loop struct {
	config Config
	log    logging.LeveledLogger

	reported atomic.Uint64
	skipped  atomic.Uint64
	failed   atomic.Uint64
}

// New creates a loop.
func New(config Config) (*Loop, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	l := &Loop{config: config}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("telemetry")
	}
	return l, nil
}

// Run blocks until ctx is done. It waits for the first join, initializes the
// sensor without an attempt limit, then runs one cycle per period.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.waitJoined(ctx); err != nil {
		return err
	}
	if err := l.initSensor(ctx); err != nil {
		return err
	}

	if l.log != nil {
		l.log.Infof("Sensor loop started: reporting every %v", l.config.Period)
	}
	for {
		_ = l.RunCycle(ctx)
		if err := l.config.Sleep(ctx, l.config.Period); err != nil {
			return err
		}
	}
}

func (l *Loop) waitJoined(ctx context.Context) error {
	for !l.config.Join.IsJoined() {
		if l.log != nil {
			l.log.Info("Waiting for network join...")
		}
		if err := l.config.Sleep(ctx, l.config.JoinPollInterval); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) initSensor(ctx context.Context) error {
	for {
		err := l.config.Sensor.Initialize(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.log != nil {
			l.log.Warnf("Sensor init failed (%v), retrying in %v", err, l.config.InitRetryDelay)
		}
		if err := l.config.Sleep(ctx, l.config.InitRetryDelay); err != nil {
			return err
		}
	}
}

// RunCycle runs one cycle: nothing when not joined, otherwise one sample
// written to the store. A failed sample is logged and skipped.
func (l *Loop) RunCycle(ctx context.Context) error {
	if !l.config.Join.IsJoined() {
		l.skipped.Add(1)
		return nil
	}

	s, err := l.config.Sensor.Sample(ctx)
	if err != nil {
		l.failed.Add(1)
		if l.log != nil {
			l.log.Warnf("Sensor read failed: %v", err)
		}
		return err
	}

	if err := Report(l.config.Store, l.config.Endpoint, s); err != nil {
		l.failed.Add(1)
		if l.log != nil {
			l.log.Errorf("Attribute update failed: %v", err)
		}
		return err
	}

	l.reported.Add(1)
	if l.log != nil {
		l.log.Infof("Reported temp=%.2f C humidity=%.2f %%", s.TemperatureC, s.HumidityPct)
	}
	if l.config.OnSample != nil {
		l.config.OnSample(s)
	}
	return nil
}

// Stats returns the outcome counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Reported: l.reported.Load(),
		Skipped:  l.skipped.Load(),
		Failed:   l.failed.Load(),
	}
}

// Report writes both measured values under one store lock.
func Report(store mesh.AttributeStore, ep datamodel.EndpointID, s shtc3.Sample) error {
	t := temperature.CelsiusToMeasured(s.TemperatureC)
	h := humidity.PercentToMeasured(s.HumidityPct)

	store.Lock()
	defer store.Unlock()

	var errs []error
	if err := store.SetAttribute(ep, temperature.ClusterID, temperature.AttrMeasuredValue, zcl.Int16(t)); err != nil {
		errs = append(errs, fmt.Errorf("temperature: %w", err))
	}
	if err := store.SetAttribute(ep, humidity.ClusterID, humidity.AttrMeasuredValue, zcl.Uint16(h)); err != nil {
		errs = append(errs, fmt.Errorf("humidity: %w", err))
	}
	return errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
