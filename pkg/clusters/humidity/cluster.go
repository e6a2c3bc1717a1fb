// Package humidity implements the Relative Humidity Measurement cluster (0x0405).
//
// MeasuredValue is an unsigned 16-bit value in hundredths of a percent.
package humidity

import (
	"math"

	"github.com/backkem/climate-node/pkg/clusters"
	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0405
	ClusterRevision uint16              = 3
)

// Attribute IDs.
const (
	AttrMeasuredValue    = clusters.AttrMeasuredValue
	AttrMinMeasuredValue = clusters.AttrMinMeasuredValue
	AttrMaxMeasuredValue = clusters.AttrMaxMeasuredValue
)

// Sensor range: 0.00 to 100.00 %RH.
const (
	DefaultMin uint16 = 0
	DefaultMax uint16 = 10000
)

// Config provides dependencies for the Relative Humidity Measurement cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID
}

// Cluster implements the Relative Humidity Measurement cluster (0x0405).
type Cluster struct {
	*clusters.Measurement
}

// New creates a new Relative Humidity Measurement cluster with MeasuredValue 0.
func New(cfg Config) *Cluster {
	return &Cluster{
		Measurement: clusters.NewMeasurement(clusters.MeasurementConfig{
			ClusterID:  ClusterID,
			Revision:   ClusterRevision,
			EndpointID: cfg.EndpointID,
			Type:       zcl.TypeUint16,
			Initial:    zcl.Uint16(0),
			Min:        zcl.Uint16(DefaultMin),
			Max:        zcl.Uint16(DefaultMax),
		}),
	}
}

// PercentToMeasured converts relative humidity in percent to the attribute
// encoding, truncating toward zero. Negative input yields 0.
func PercentToMeasured(pct float64) uint16 {
	v := pct * 100
	switch {
	case math.IsNaN(v):
		return zcl.InvalidUint16
	case v <= 0:
		return 0
	case v >= float64(zcl.InvalidUint16):
		return zcl.InvalidUint16 - 1
	}
	return uint16(v)
}

// MeasuredToPercent converts the attribute encoding back to percent.
// The second result is false for the unknown marker.
func MeasuredToPercent(v uint16) (float64, bool) {
	if v == zcl.InvalidUint16 {
		return 0, false
	}
	return float64(v) / 100, true
}
