// Package shtc3 drives a Sensirion SHTC3 temperature/humidity sensor over I2C.
//
// Every acquisition brackets the measurement with wake and sleep commands:
//
//	wake, wait 2 ms
//	measure (T first, normal power), wait 13 ms
//	read 6 bytes, verify both checksums, convert
//	sleep (best effort)
//
// The delays are lower bounds. The driver never returns a value derived from
// a frame whose checksums did not both verify.
package shtc3

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the sensor's fixed 7-bit bus address.
const DefaultAddress uint16 = 0x70

// DefaultSpeed is the bus clock the sensor is driven at.
const DefaultSpeed = 100 * physic.KiloHertz

// Commands, sent big-endian.
const (
	CmdWakeup           uint16 = 0x3517
	CmdSleep            uint16 = 0xB098
	CmdMeasureTFirstNPM uint16 = 0x7866
	CmdReadID           uint16 = 0xEFC8
)

// Minimum delays.
const (
	WakeupDelay     = 2 * time.Millisecond
	ConversionDelay = 13 * time.Millisecond
)

// SleepFunc blocks for at least d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures a Device.
type Config struct {
	// Bus is an already open bus. Either Bus or Open must be set.
	Bus i2c.Bus

	// Open opens the bus on Initialize when Bus is nil. The device owns
	// the returned bus and closes it in Close.
	Open func() (i2c.BusCloser, error)

	// Address is the 7-bit device address. Defaults to DefaultAddress.
	Address uint16

	// Speed is the bus clock. Defaults to DefaultSpeed. Buses that cannot
	// change speed are used at their current clock.
	Speed physic.Frequency

	// Sleep implements the protocol delays. Defaults to a timer-based sleep.
	Sleep SleepFunc

	// LoggerFactory for driver logs. Optional.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Address == 0 {
		c.Address = DefaultAddress
	}
	if c.Speed == 0 {
		c.Speed = DefaultSpeed
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Bus == nil && c.Open == nil {
		return &ConfigurationError{Reason: "no bus or bus opener"}
	}
	if c.Address > 0x7F {
		return &ConfigurationError{Reason: fmt.Sprintf("address 0x%X is not a 7-bit address", c.Address)}
	}
	return nil
}

// Device is an SHTC3 on a two-wire bus. It is safe for concurrent use;
// acquisitions are serialized.
type Device struct {
	config Config
	log    logging.LeveledLogger

	mu     sync.Mutex
	dev    *i2c.Dev
	closer i2c.BusCloser
}

// New creates a Device. No bus traffic happens until Initialize.
func New(config Config) *Device {
	config.applyDefaults()
	d := &Device{config: config}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("shtc3")
	}
	return d
}

// Initialize opens the bus if needed, binds the device address and runs one
// wake/sleep cycle as a liveness probe. It is safe to call again after a
// failure.
func (d *Device) Initialize(ctx context.Context) error {
	if err := d.config.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		bus := d.config.Bus
		if bus == nil {
			bc, err := d.config.Open()
			if err != nil {
				return &BusError{Op: "open", Err: err}
			}
			d.closer = bc
			bus = bc
		}
		if err := bus.SetSpeed(d.config.Speed); err != nil && d.log != nil {
			d.log.Debugf("bus %s: cannot set speed %s: %v", bus, d.config.Speed, err)
		}
		d.dev = &i2c.Dev{Bus: bus, Addr: d.config.Address}
	}

	if err := d.wakeup(ctx); err != nil {
		return err
	}
	if err := d.command(CmdSleep); err != nil && d.log != nil {
		d.log.Debugf("sleep after probe failed: %v", err)
	}

	if d.log != nil {
		d.log.Infof("SHTC3 initialized on %s at 0x%02X", d.dev.Bus, d.config.Address)
	}
	return nil
}

// Sample performs one full acquisition.
func (d *Device) Sample(ctx context.Context) (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		return Sample{}, &ConfigurationError{Reason: "not initialized"}
	}

	if err := d.wakeup(ctx); err != nil {
		return Sample{}, err
	}
	if err := d.command(CmdMeasureTFirstNPM); err != nil {
		return Sample{}, &BusError{Op: "measure", Err: err}
	}
	if err := d.config.Sleep(ctx, ConversionDelay); err != nil {
		return Sample{}, err
	}

	var frame [FrameSize]byte
	if err := d.dev.Tx(nil, frame[:]); err != nil {
		return Sample{}, &BusError{Op: "read", Err: err}
	}

	s, err := Decode(frame)
	if err != nil {
		return Sample{}, err
	}

	if err := d.command(CmdSleep); err != nil && d.log != nil {
		d.log.Debugf("sleep after sample failed: %v", err)
	}

	if d.log != nil {
		d.log.Debugf("SHTC3: %.2f C, %.2f %%RH", s.TemperatureC, s.HumidityPct)
	}
	return s, nil
}

// Close releases a bus opened by Initialize.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dev = nil
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("SHTC3@0x%02X", d.config.Address)
}

func (d *Device) wakeup(ctx context.Context) error {
	if err := d.command(CmdWakeup); err != nil {
		return &BusError{Op: "wake", Err: err}
	}
	return d.config.Sleep(ctx, WakeupDelay)
}

func (d *Device) command(cmd uint16) error {
	return d.dev.Tx([]byte{byte(cmd >> 8), byte(cmd)}, nil)
}

func sleepContext(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
