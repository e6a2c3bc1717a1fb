package coordinator

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/transport"
	"github.com/backkem/climate-node/pkg/zcl"
)

const testIEEE = 0x00124B0001020304

// fakeDevice drives the device side of the pipe by hand.
type fakeDevice struct {
	conn  net.PacketConn
	coord net.Addr
	seq   *nwk.SequenceCounter
	in    chan *nwk.Frame
}

func newFakeDevice(conn net.PacketConn, coord net.Addr) *fakeDevice {
	d := &fakeDevice{
		conn:  conn,
		coord: coord,
		seq:   nwk.NewSequenceCounterWithValue(0),
		in:    make(chan *nwk.Frame, 32),
	}
	go func() {
		buf := make([]byte, transport.MaxFrameSize)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if f, err := nwk.Decode(buf[:n]); err == nil {
				d.in <- f
			}
		}
	}()
	return d
}

func (d *fakeDevice) send(t nwk.FrameType, pan, src, dst uint16, payload []byte) {
	f := &nwk.Frame{
		Header:  nwk.Header{Type: t, Sequence: d.seq.Next(), PANID: pan, Source: src, Destination: dst},
		Payload: payload,
	}
	_, _ = d.conn.WriteTo(f.Encode(), d.coord)
}

func (d *fakeDevice) expect(t *testing.T, typ nwk.FrameType) *nwk.Frame {
	t.Helper()
	select {
	case f := <-d.in:
		if f.Header.Type != typ {
			t.Fatalf("got %s frame, want %s", f.Header.Type, typ)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s frame", typ)
		return nil
	}
}

// associate runs beacon request and association and returns the short
// address.
func (d *fakeDevice) associate(t *testing.T) nwk.AssocResponse {
	t.Helper()
	d.send(nwk.FrameBeaconRequest, nwk.BroadcastPAN, nwk.UnassignedAddress, nwk.BroadcastAddress, nil)
	d.expect(t, nwk.FrameBeacon)

	req := nwk.AssocRequest{IEEEAddress: testIEEE, Capability: nwk.CapAllocateAddress}
	d.send(nwk.FrameAssocRequest, DefaultPANID, nwk.UnassignedAddress, nwk.CoordinatorAddress, req.Encode())
	f := d.expect(t, nwk.FrameAssocResponse)
	resp, err := nwk.DecodeAssocResponse(f.Payload)
	if err != nil {
		t.Fatalf("DecodeAssocResponse() error: %v", err)
	}
	return resp
}

func (d *fakeDevice) sendZCL(short uint16, cluster uint16, zf *zcl.Frame) {
	data := nwk.Data{Endpoint: 1, Profile: DefaultProfile, Cluster: cluster, ZCL: zf.Encode()}
	d.send(nwk.FrameData, DefaultPANID, short, nwk.CoordinatorAddress, data.Encode())
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeDevice, *clock) {
	t.Helper()

	devSide, coordSide := transport.NewPipeFactoryPair()
	devConn, _ := devSide.CreatePacketConn(transport.DefaultPort)
	coordConn, _ := coordSide.CreatePacketConn(transport.DefaultPort)

	clk := &clock{t: time.Unix(1760700000, 0)}
	c, err := New(Config{Conn: coordConn, ExtendedPANID: 0xDDDDDDDDDDDDDDDD, ReadTimeout: 200 * time.Millisecond, Now: clk.Now})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Stop()
		devConn.Close()
		devSide.Pipe().Close()
	})
	return c, newFakeDevice(devConn, devSide.PeerAddr()), clk
}

func TestNew_RequiresConn(t *testing.T) {
	if _, err := New(Config{}); err != ErrNoConn {
		t.Errorf("New() = %v, want ErrNoConn", err)
	}
}

func TestBeaconReflectsPermitJoin(t *testing.T) {
	c, dev, clk := newTestCoordinator(t)

	dev.send(nwk.FrameBeaconRequest, nwk.BroadcastPAN, nwk.UnassignedAddress, nwk.BroadcastAddress, nil)
	f := dev.expect(t, nwk.FrameBeacon)
	b, _ := nwk.DecodeBeacon(f.Payload)
	if b.PermitJoin || f.Header.PANID != DefaultPANID || b.Channel != DefaultChannel || b.ExtendedPANID != 0xDDDDDDDDDDDDDDDD {
		t.Errorf("closed beacon = %+v header %+v", b, f.Header)
	}

	c.PermitJoin(time.Minute)
	dev.send(nwk.FrameBeaconRequest, nwk.BroadcastPAN, nwk.UnassignedAddress, nwk.BroadcastAddress, nil)
	f = dev.expect(t, nwk.FrameBeacon)
	if b, _ = nwk.DecodeBeacon(f.Payload); !b.PermitJoin {
		t.Error("beacon does not advertise open network")
	}

	clk.Advance(time.Minute)
	if c.PermitJoinOpen() {
		t.Error("permit join still open after its window")
	}
}

func TestAssociation(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)

	resp := dev.associate(t)
	if resp.Status != nwk.AssocAccessDenied {
		t.Fatalf("closed network status = %s, want AccessDenied", resp.Status)
	}
	if len(c.Devices()) != 0 {
		t.Fatal("refused device added to table")
	}

	c.PermitJoin(time.Minute)
	resp = dev.associate(t)
	if resp.Status != nwk.AssocSuccess || resp.IEEEAddress != testIEEE {
		t.Fatalf("response = %+v", resp)
	}
	if resp.ShortAddress == nwk.CoordinatorAddress || resp.ShortAddress >= 0xFFF8 {
		t.Errorf("reserved short address 0x%04X assigned", resp.ShortAddress)
	}

	d, ok := c.Device(testIEEE)
	if !ok || d.ShortAddress != resp.ShortAddress || d.LinkQuality != DefaultLinkQuality {
		t.Errorf("Device() = %+v, %v", d, ok)
	}
	if d.FriendlyName() != nwk.FormatIEEE(testIEEE) {
		t.Errorf("FriendlyName() = %q", d.FriendlyName())
	}

	// A second association keeps the address.
	again := dev.associate(t)
	if again.ShortAddress != resp.ShortAddress {
		t.Errorf("rejoin address = 0x%04X, want 0x%04X", again.ShortAddress, resp.ShortAddress)
	}
	if len(c.Devices()) != 1 {
		t.Errorf("Devices() = %d entries", len(c.Devices()))
	}
}

func TestAssociation_Capacity(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)
	c.config.MaxDevices = 1
	c.PermitJoin(time.Minute)

	c.mu.Lock()
	c.devices.put(&Device{IEEEAddress: 1, ShortAddress: 0x0101})
	c.mu.Unlock()

	if resp := dev.associate(t); resp.Status != nwk.AssocPANAtCapacity {
		t.Errorf("status = %s, want PANAtCapacity", resp.Status)
	}
}

func TestReportsDispatched(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)
	c.PermitJoin(time.Minute)
	short := dev.associate(t).ShortAddress

	got := make(chan Report, 4)
	c.AddReportHandler(ReportHandlerFunc(func(r Report) { got <- r }))

	payload, _ := zcl.EncodeReportAttributes([]zcl.AttributeRecord{
		{ID: 0x0000, Value: zcl.Int16(2219)},
	})
	dev.sendZCL(short, 0x0402, &zcl.Frame{
		Header:  zcl.Header{FrameType: zcl.FrameTypeGlobal, Direction: zcl.DirectionToClient, Sequence: 1, Command: zcl.CmdReportAttributes},
		Payload: payload,
	})

	select {
	case r := <-got:
		if r.Device.IEEEAddress != testIEEE || r.Endpoint != 1 || r.Cluster != 0x0402 || r.Attribute != 0 {
			t.Errorf("report = %+v", r)
		}
		if !r.Value.Equal(zcl.Int16(2219)) {
			t.Errorf("value = %s", r.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("report not dispatched")
	}

	path := datamodel.ConcreteAttributePath{Endpoint: 1, Cluster: 0x0402, Attribute: 0}
	if lv, ok := c.LastValue(testIEEE, path); !ok || !lv.Value.Equal(zcl.Int16(2219)) {
		t.Errorf("LastValue() = %+v, %v", lv, ok)
	}
}

func TestReportFromUnknownDeviceDropped(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)

	got := make(chan Report, 1)
	c.AddReportHandler(ReportHandlerFunc(func(r Report) { got <- r }))

	payload, _ := zcl.EncodeReportAttributes([]zcl.AttributeRecord{{ID: 0, Value: zcl.Uint16(1)}})
	dev.sendZCL(0x1234, 0x0405, &zcl.Frame{
		Header:  zcl.Header{Direction: zcl.DirectionToClient, Command: zcl.CmdReportAttributes},
		Payload: payload,
	})

	select {
	case r := <-got:
		t.Errorf("unexpected report %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReadAttributes(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)
	c.PermitJoin(time.Minute)
	short := dev.associate(t).ShortAddress

	// Device answers the next read.
	go func() {
		f := <-dev.in
		d, _ := nwk.DecodeData(f.Payload)
		req, _ := zcl.DecodeFrame(d.ZCL)
		payload, _ := zcl.EncodeReadAttributesResponse([]zcl.ReadAttributeStatus{
			{ID: 0x0000, Status: zcl.StatusSuccess, Value: zcl.Uint16(3616)},
		})
		dev.sendZCL(short, d.Cluster, &zcl.Frame{
			Header:  zcl.Header{Direction: zcl.DirectionToClient, Sequence: req.Sequence, Command: zcl.CmdReadAttributesResponse},
			Payload: payload,
		})
	}()

	recs, err := c.ReadAttributes(context.Background(), testIEEE, 1, 0x0405, []datamodel.AttributeID{0})
	if err != nil {
		t.Fatalf("ReadAttributes() error: %v", err)
	}
	if len(recs) != 1 || !recs[0].Value.Equal(zcl.Uint16(3616)) {
		t.Errorf("records = %+v", recs)
	}
}

func TestReadAttributes_Errors(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)

	if _, err := c.ReadAttributes(context.Background(), testIEEE, 1, 0x0405, nil); err != ErrUnknownDevice {
		t.Errorf("unknown device: %v", err)
	}

	c.PermitJoin(time.Minute)
	short := dev.associate(t).ShortAddress

	// No answer.
	if _, err := c.ReadAttributes(context.Background(), testIEEE, 1, 0x0405, []datamodel.AttributeID{0}); !errors.Is(err, ErrResponseTimeout) {
		t.Errorf("silent device: %v", err)
	}
	dev.expect(t, nwk.FrameData)

	// Default response.
	go func() {
		f := <-dev.in
		d, _ := nwk.DecodeData(f.Payload)
		req, _ := zcl.DecodeFrame(d.ZCL)
		dev.sendZCL(short, d.Cluster, &zcl.Frame{
			Header:  zcl.Header{Direction: zcl.DirectionToClient, Sequence: req.Sequence, Command: zcl.CmdDefaultResponse},
			Payload: []byte{uint8(zcl.CmdReadAttributes), uint8(zcl.StatusUnsupportedCluster)},
		})
	}()
	if _, err := c.ReadAttributes(context.Background(), testIEEE, 1, 0x0006, []datamodel.AttributeID{0}); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("default response: %v", err)
	}
}

func TestSendLeave(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)
	c.PermitJoin(time.Minute)
	short := dev.associate(t).ShortAddress

	if err := c.SendLeave(testIEEE, false); err != nil {
		t.Fatalf("SendLeave() error: %v", err)
	}
	f := dev.expect(t, nwk.FrameLeave)
	l, _ := nwk.DecodeLeave(f.Payload)
	if l.IEEEAddress != testIEEE || f.Header.Destination != short {
		t.Errorf("leave = %+v to 0x%04X", l, f.Header.Destination)
	}
	if _, ok := c.Device(testIEEE); ok {
		t.Error("device still in table")
	}
	if err := c.SendLeave(testIEEE, false); err != ErrUnknownDevice {
		t.Errorf("second SendLeave() = %v, want ErrUnknownDevice", err)
	}
}

func TestDeviceLeaveAndAnnounce(t *testing.T) {
	c, dev, _ := newTestCoordinator(t)

	// Announce from a device the coordinator has never seen.
	a := nwk.DeviceAnnounce{IEEEAddress: testIEEE, ShortAddress: 0x2222, Capability: nwk.CapAllocateAddress}
	dev.send(nwk.FrameDeviceAnnounce, DefaultPANID, 0x2222, nwk.BroadcastAddress, a.Encode())

	deadline := time.Now().Add(time.Second)
	for {
		if d, ok := c.Device(testIEEE); ok && d.ShortAddress == 0x2222 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("announced device not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	l := nwk.Leave{IEEEAddress: testIEEE}
	dev.send(nwk.FrameLeave, DefaultPANID, 0x2222, nwk.CoordinatorAddress, l.Encode())
	deadline = time.Now().Add(time.Second)
	for {
		if _, ok := c.Device(testIEEE); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("device not removed on leave")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStoppedCoordinator(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_ = c.Stop()
	if err := c.SendLeave(testIEEE, false); err != ErrNotStarted {
		t.Errorf("SendLeave() = %v, want ErrNotStarted", err)
	}
}
