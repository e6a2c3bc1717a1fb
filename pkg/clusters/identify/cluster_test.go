package identify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestIdentifyCountdown(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := New(Config{EndpointID: 1, Now: clk.now})

	if c.IsIdentifying() {
		t.Fatal("new cluster should not be identifying")
	}

	changed, err := c.SetAttribute(AttrIdentifyTime, zcl.Uint16(10))
	if err != nil || !changed {
		t.Fatalf("SetAttribute = (%v, %v), want (true, nil)", changed, err)
	}

	clk.t = clk.t.Add(3500 * time.Millisecond)
	v, err := c.ReadAttribute(context.Background(), AttrIdentifyTime)
	if err != nil {
		t.Fatalf("ReadAttribute failed: %v", err)
	}
	if !v.Equal(zcl.Uint16(7)) {
		t.Errorf("IdentifyTime = %v, want 7", v)
	}

	clk.t = clk.t.Add(7 * time.Second)
	if c.IsIdentifying() {
		t.Error("countdown should have expired")
	}
}

func TestIdentifyStop(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := New(Config{Now: clk.now})

	c.Identify(30 * time.Second)
	if c.Remaining() != 30 {
		t.Errorf("Remaining() = %d, want 30", c.Remaining())
	}
	c.Identify(0)
	if c.IsIdentifying() {
		t.Error("Identify(0) should stop identification")
	}
}

func TestSetAttributeErrors(t *testing.T) {
	c := New(Config{})

	if _, err := c.SetAttribute(AttrIdentifyTime, zcl.Int16(5)); !errors.Is(err, datamodel.ErrInvalidDataType) {
		t.Errorf("wrong type: err = %v, want ErrInvalidDataType", err)
	}
	if _, err := c.SetAttribute(0x0001, zcl.Uint16(5)); !errors.Is(err, datamodel.ErrAttributeNotFound) {
		t.Errorf("unknown attr: err = %v, want ErrAttributeNotFound", err)
	}
}
