package temperature

import (
	"context"
	"math"
	"testing"

	"github.com/backkem/climate-node/pkg/zcl"
)

func TestCelsiusToMeasured(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{22.1935, 2219},
		{-10.5, -1050},
		{-0.004, 0},
		{0, 0},
		{125, 12500},
		{-45.678, -4567},
		{400, math.MaxInt16},
		{-400, math.MinInt16 + 1},
		{math.NaN(), zcl.InvalidInt16},
	}
	for _, tt := range tests {
		if got := CelsiusToMeasured(tt.in); got != tt.want {
			t.Errorf("CelsiusToMeasured(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMeasuredToCelsius(t *testing.T) {
	c, ok := MeasuredToCelsius(2219)
	if !ok || math.Abs(c-22.19) > 1e-9 {
		t.Errorf("MeasuredToCelsius(2219) = (%v, %v), want (22.19, true)", c, ok)
	}
	if _, ok := MeasuredToCelsius(zcl.InvalidInt16); ok {
		t.Error("MeasuredToCelsius(invalid) reported ok")
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{EndpointID: 1})
	ctx := context.Background()

	if c.ID() != ClusterID {
		t.Errorf("ID() = %v, want 0x0402", c.ID())
	}
	lo, _ := c.ReadAttribute(ctx, AttrMinMeasuredValue)
	hi, _ := c.ReadAttribute(ctx, AttrMaxMeasuredValue)
	if !lo.Equal(zcl.Int16(-4000)) || !hi.Equal(zcl.Int16(8500)) {
		t.Errorf("range = [%v, %v], want [-4000, 8500]", lo, hi)
	}
	mv, _ := c.ReadAttribute(ctx, AttrMeasuredValue)
	if !mv.Equal(zcl.Int16(0)) {
		t.Errorf("initial MeasuredValue = %v, want 0", mv)
	}
}

func TestNewCustomRange(t *testing.T) {
	c := New(Config{Min: -2000, Max: 6000})
	lo, _ := c.ReadAttribute(context.Background(), AttrMinMeasuredValue)
	if !lo.Equal(zcl.Int16(-2000)) {
		t.Errorf("Min = %v, want -2000", lo)
	}
}
