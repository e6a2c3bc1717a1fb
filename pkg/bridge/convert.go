// Package bridge converts coordinator reports into the device state that
// the MQTT and InfluxDB bridges publish.
package bridge

import (
	"math"

	"github.com/backkem/climate-node/pkg/clusters/humidity"
	"github.com/backkem/climate-node/pkg/clusters/temperature"
	"github.com/backkem/climate-node/pkg/coordinator"
)

// Field names of published measurements.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

// Measurement is one converted attribute.
type Measurement struct {
	Field string
	Value float64
}

// Convert maps a report to a measurement. It returns false for attributes
// without a conversion and for the unknown marker values.
func Convert(r coordinator.Report) (Measurement, bool) {
	if r.Attribute != temperature.AttrMeasuredValue {
		return Measurement{}, false
	}
	switch r.Cluster {
	case temperature.ClusterID:
		raw, err := r.Value.Int()
		if err != nil || raw < math.MinInt16 || raw > math.MaxInt16 {
			return Measurement{}, false
		}
		c, ok := temperature.MeasuredToCelsius(int16(raw))
		if !ok {
			return Measurement{}, false
		}
		return Measurement{Field: FieldTemperature, Value: round2(c)}, true

	case humidity.ClusterID:
		raw, err := r.Value.Uint()
		if err != nil || raw > math.MaxUint16 {
			return Measurement{}, false
		}
		pct, ok := humidity.MeasuredToPercent(uint16(raw))
		if !ok {
			return Measurement{}, false
		}
		return Measurement{Field: FieldHumidity, Value: round2(pct)}, true

	default:
		return Measurement{}, false
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
