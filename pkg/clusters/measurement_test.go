package clusters

import (
	"context"
	"errors"
	"testing"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

func newTestMeasurement() *Measurement {
	return NewMeasurement(MeasurementConfig{
		ClusterID:  0x0402,
		Revision:   3,
		EndpointID: 1,
		Type:       zcl.TypeInt16,
		Initial:    zcl.Int16(0),
		Min:        zcl.Int16(-4000),
		Max:        zcl.Int16(8500),
	})
}

func TestMeasurement_Read(t *testing.T) {
	m := newTestMeasurement()
	ctx := context.Background()

	tests := []struct {
		attr datamodel.AttributeID
		want zcl.Value
	}{
		{AttrMeasuredValue, zcl.Int16(0)},
		{AttrMinMeasuredValue, zcl.Int16(-4000)},
		{AttrMaxMeasuredValue, zcl.Int16(8500)},
		{datamodel.GlobalAttrClusterRevision, zcl.Uint16(3)},
	}
	for _, tt := range tests {
		got, err := m.ReadAttribute(ctx, tt.attr)
		if err != nil {
			t.Fatalf("ReadAttribute(0x%04X) error: %v", uint16(tt.attr), err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ReadAttribute(0x%04X) = %v, want %v", uint16(tt.attr), got, tt.want)
		}
	}
}

func TestMeasurement_Set(t *testing.T) {
	m := newTestMeasurement()
	v0 := m.DataVersion()

	changed, err := m.SetAttribute(AttrMeasuredValue, zcl.Int16(2219))
	if err != nil || !changed {
		t.Fatalf("SetAttribute = (%v, %v), want (true, nil)", changed, err)
	}
	if m.DataVersion() != v0+1 {
		t.Errorf("DataVersion = %v, want %v", m.DataVersion(), v0+1)
	}

	changed, err = m.SetAttribute(AttrMeasuredValue, zcl.Int16(2219))
	if err != nil || changed {
		t.Errorf("identical SetAttribute = (%v, %v), want (false, nil)", changed, err)
	}

	// Out of the advertised range is stored as given.
	if _, err := m.SetAttribute(AttrMeasuredValue, zcl.Int16(12500)); err != nil {
		t.Errorf("SetAttribute(12500) error: %v", err)
	}
	if !m.Measured().Equal(zcl.Int16(12500)) {
		t.Errorf("Measured() = %v, want 12500", m.Measured())
	}
}

func TestMeasurement_SetErrors(t *testing.T) {
	m := newTestMeasurement()

	tests := []struct {
		name string
		attr datamodel.AttributeID
		v    zcl.Value
		want error
	}{
		{"min is fixed", AttrMinMeasuredValue, zcl.Int16(0), datamodel.ErrAttributeReadOnly},
		{"max is fixed", AttrMaxMeasuredValue, zcl.Int16(0), datamodel.ErrAttributeReadOnly},
		{"unknown", 0x0003, zcl.Int16(0), datamodel.ErrAttributeNotFound},
		{"wrong type", AttrMeasuredValue, zcl.Uint16(1), datamodel.ErrInvalidDataType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.SetAttribute(tt.attr, tt.v); !errors.Is(err, tt.want) {
				t.Errorf("SetAttribute() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMeasurement_AttributeList(t *testing.T) {
	m := newTestMeasurement()
	list := m.AttributeList()

	e := datamodel.FindAttribute(list, AttrMeasuredValue)
	if e == nil {
		t.Fatal("MeasuredValue missing from attribute list")
	}
	if !e.IsReportable() {
		t.Error("MeasuredValue should be reportable")
	}
	if e := datamodel.FindAttribute(list, AttrMinMeasuredValue); e == nil || e.IsReportable() {
		t.Errorf("MinMeasuredValue entry = %+v, want readable, not reportable", e)
	}
}
