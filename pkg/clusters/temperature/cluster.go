// Package temperature implements the Temperature Measurement cluster (0x0402).
//
// MeasuredValue is a signed 16-bit value in hundredths of a degree Celsius.
// 0x8000 is the "unknown" marker and is never produced from a reading.
package temperature

import (
	"math"

	"github.com/backkem/climate-node/pkg/clusters"
	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0402
	ClusterRevision uint16              = 3
)

// Attribute IDs.
const (
	AttrMeasuredValue    = clusters.AttrMeasuredValue
	AttrMinMeasuredValue = clusters.AttrMinMeasuredValue
	AttrMaxMeasuredValue = clusters.AttrMaxMeasuredValue
)

// Default sensor range: -40.00 to 85.00 °C.
const (
	DefaultMin int16 = -4000
	DefaultMax int16 = 8500
)

// Config provides dependencies for the Temperature Measurement cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// Min and Max override the advertised range when both are non-zero.
	Min int16
	Max int16
}

// Cluster implements the Temperature Measurement cluster (0x0402).
type Cluster struct {
	*clusters.Measurement
}

// New creates a new Temperature Measurement cluster with MeasuredValue 0.
func New(cfg Config) *Cluster {
	lo, hi := DefaultMin, DefaultMax
	if cfg.Min != 0 || cfg.Max != 0 {
		lo, hi = cfg.Min, cfg.Max
	}
	return &Cluster{
		Measurement: clusters.NewMeasurement(clusters.MeasurementConfig{
			ClusterID:  ClusterID,
			Revision:   ClusterRevision,
			EndpointID: cfg.EndpointID,
			Type:       zcl.TypeInt16,
			Initial:    zcl.Int16(0),
			Min:        zcl.Int16(lo),
			Max:        zcl.Int16(hi),
		}),
	}
}

// CelsiusToMeasured converts degrees Celsius to the attribute encoding,
// truncating toward zero. Results are clamped to the representable range
// so the unknown marker is never produced.
func CelsiusToMeasured(c float64) int16 {
	v := c * 100
	switch {
	case math.IsNaN(v):
		return zcl.InvalidInt16
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16+1:
		return math.MinInt16 + 1
	}
	return int16(v)
}

// MeasuredToCelsius converts the attribute encoding back to degrees Celsius.
// The second result is false for the unknown marker.
func MeasuredToCelsius(v int16) (float64, bool) {
	if v == zcl.InvalidInt16 {
		return 0, false
	}
	return float64(v) / 100, true
}
