package clusters

import (
	"context"
	"sync"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Attribute IDs shared by the measurement and sensing clusters.
const (
	AttrMeasuredValue    datamodel.AttributeID = 0x0000
	AttrMinMeasuredValue datamodel.AttributeID = 0x0001
	AttrMaxMeasuredValue datamodel.AttributeID = 0x0002
)

// MeasurementConfig describes a measurement cluster instance.
type MeasurementConfig struct {
	ClusterID  datamodel.ClusterID
	Revision   uint16
	EndpointID datamodel.EndpointID

	// Type is the data type of all three value attributes.
	Type zcl.DataType

	// Initial, Min and Max are the starting MeasuredValue and the
	// advertised sensor range.
	Initial zcl.Value
	Min     zcl.Value
	Max     zcl.Value
}

// Measurement is the common implementation of the measurement clusters:
// a reportable MeasuredValue and its fixed range. The range is advertised
// only; updates outside it are stored as given.
type Measurement struct {
	*datamodel.ClusterBase
	typ      zcl.DataType
	min      zcl.Value
	max      zcl.Value
	attrList []datamodel.AttributeEntry

	mu       sync.RWMutex
	measured zcl.Value
}

// NewMeasurement creates a measurement cluster.
func NewMeasurement(cfg MeasurementConfig) *Measurement {
	return &Measurement{
		ClusterBase: datamodel.NewClusterBase(cfg.ClusterID, cfg.EndpointID, cfg.Revision),
		typ:         cfg.Type,
		min:         cfg.Min,
		max:         cfg.Max,
		measured:    cfg.Initial,
		attrList: datamodel.MergeAttributeLists([]datamodel.AttributeEntry{
			{ID: AttrMeasuredValue, Type: cfg.Type, Access: datamodel.AccessRead | datamodel.AccessReport},
			{ID: AttrMinMeasuredValue, Type: cfg.Type, Access: datamodel.AccessRead},
			{ID: AttrMaxMeasuredValue, Type: cfg.Type, Access: datamodel.AccessRead},
		}),
	}
}

// AttributeList implements datamodel.Cluster.
func (m *Measurement) AttributeList() []datamodel.AttributeEntry {
	return m.attrList
}

// ReadAttribute implements datamodel.Cluster.
func (m *Measurement) ReadAttribute(_ context.Context, id datamodel.AttributeID) (zcl.Value, error) {
	if v, ok := m.ReadGlobalAttribute(id); ok {
		return v, nil
	}

	switch id {
	case AttrMeasuredValue:
		return m.Measured(), nil
	case AttrMinMeasuredValue:
		return m.min, nil
	case AttrMaxMeasuredValue:
		return m.max, nil
	default:
		return zcl.Value{}, datamodel.ErrAttributeNotFound
	}
}

// SetAttribute implements datamodel.AttributeSetter. Only MeasuredValue
// is locally updatable.
func (m *Measurement) SetAttribute(id datamodel.AttributeID, v zcl.Value) (bool, error) {
	switch id {
	case AttrMeasuredValue:
	case AttrMinMeasuredValue, AttrMaxMeasuredValue:
		return false, datamodel.ErrAttributeReadOnly
	default:
		return false, datamodel.ErrAttributeNotFound
	}
	if v.Type != m.typ {
		return false, datamodel.ErrInvalidDataType
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measured.Equal(v) {
		return false, nil
	}
	m.measured = v
	m.IncrementDataVersion()
	return true, nil
}

// Measured returns the current MeasuredValue.
func (m *Measurement) Measured() zcl.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.measured
}

var _ datamodel.AttributeSetter = (*Measurement)(nil)
