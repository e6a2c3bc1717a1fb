package shtc3

import (
	"errors"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Simulator errors. A real sensor NACKs in these situations.
var (
	ErrSimNoDevice  = errors.New("shtc3 sim: no device at address")
	ErrSimAsleep    = errors.New("shtc3 sim: device asleep")
	ErrSimNotReady  = errors.New("shtc3 sim: conversion not complete")
	ErrSimNoResult  = errors.New("shtc3 sim: no measurement pending")
	ErrSimInjected  = errors.New("shtc3 sim: injected fault")
	ErrSimBadLength = errors.New("shtc3 sim: unexpected transfer length")
)

// Simulator is an i2c.Bus with one SHTC3 attached. It enforces the wake-up
// and conversion times against its clock, so a driver that does not honor
// them fails the same way it would on hardware.
type Simulator struct {
	now func() time.Time

	mu          sync.Mutex
	temperature float64
	humidity    float64
	awake       bool
	wokeAt      time.Time
	measureAt   time.Time
	pending     bool
	failNext    int
	corruptNext int
	speed       physic.Frequency
	closed      bool
	commands    []uint16
}

// NewSimulator returns a sleeping sensor reading 21 °C and 45 %RH.
// A nil now uses time.Now.
func NewSimulator(now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{
		now:         now,
		temperature: 21,
		humidity:    45,
	}
}

// SetConditions sets the ambient values the next measurement returns.
func (s *Simulator) SetConditions(tempC, humidityPct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = tempC
	s.humidity = humidityPct
}

// FailNext makes the next n transfers fail.
func (s *Simulator) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// CorruptNext flips one bit in the next n measurement frames.
func (s *Simulator) CorruptNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptNext = n
}

// Commands returns the commands received so far.
func (s *Simulator) Commands() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.commands...)
}

// Awake reports whether the device is out of sleep mode.
func (s *Simulator) Awake() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awake
}

// Tx implements i2c.Bus.
func (s *Simulator) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr != DefaultAddress {
		return ErrSimNoDevice
	}
	if s.failNext > 0 {
		s.failNext--
		return ErrSimInjected
	}

	if len(w) > 0 {
		if len(w) != 2 {
			return ErrSimBadLength
		}
		if err := s.command(uint16(w[0])<<8 | uint16(w[1])); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		return s.read(r)
	}
	return nil
}

func (s *Simulator) command(cmd uint16) error {
	now := s.now()
	switch cmd {
	case CmdWakeup:
		s.commands = append(s.commands, cmd)
		if !s.awake {
			s.awake = true
			s.wokeAt = now
		}
		return nil
	}

	if !s.awake || now.Sub(s.wokeAt) < WakeupDelay {
		return ErrSimAsleep
	}
	s.commands = append(s.commands, cmd)

	switch cmd {
	case CmdSleep:
		s.awake = false
		s.pending = false
	case CmdMeasureTFirstNPM:
		s.pending = true
		s.measureAt = now
	}
	return nil
}

func (s *Simulator) read(r []byte) error {
	if !s.pending {
		return ErrSimNoResult
	}
	if s.now().Sub(s.measureAt) < ConversionDelay {
		return ErrSimNotReady
	}
	if len(r) != FrameSize {
		return ErrSimBadLength
	}
	s.pending = false

	frame := Encode(rawTemperature(s.temperature), rawHumidity(s.humidity))
	if s.corruptNext > 0 {
		s.corruptNext--
		frame[1] ^= 0x01
	}
	copy(r, frame[:])
	return nil
}

// SetSpeed implements i2c.Bus.
func (s *Simulator) SetSpeed(f physic.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = f
	return nil
}

// Speed returns the last clock set on the bus.
func (s *Simulator) Speed() physic.Frequency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Close implements io.Closer.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// String implements i2c.Bus.
func (s *Simulator) String() string {
	return "shtc3-sim"
}

func rawTemperature(c float64) uint16 {
	return clampRaw((c + 45.0) / 175.0 * 65535.0)
}

func rawHumidity(pct float64) uint16 {
	return clampRaw(pct / 100.0 * 65535.0)
}

func clampRaw(v float64) uint16 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

var _ i2c.BusCloser = (*Simulator)(nil)
