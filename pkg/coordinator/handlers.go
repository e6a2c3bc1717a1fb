package coordinator

import (
	"net"
	"time"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/transport"
	"github.com/backkem/climate-node/pkg/zcl"
)

// handleFrame runs on the link's read loop.
func (c *Coordinator) handleFrame(rf *transport.ReceivedFrame) {
	f, err := nwk.Decode(rf.Data)
	if err != nil {
		if c.log != nil {
			c.log.Debugf("dropping frame from %s: %v", rf.PeerAddr, err)
		}
		return
	}
	h := f.Header

	// Frames from unassociated devices share a source; only filter the rest.
	if h.Source != nwk.UnassignedAddress && !c.dups.Accept(h) {
		return
	}
	if h.PANID != c.config.PANID && h.PANID != nwk.BroadcastPAN {
		return
	}

	addr := rf.PeerAddr.Addr
	switch h.Type {
	case nwk.FrameBeaconRequest:
		c.onBeaconRequest(addr)
	case nwk.FrameAssocRequest:
		if r, err := nwk.DecodeAssocRequest(f.Payload); err == nil {
			c.onAssocRequest(addr, r)
		}
	case nwk.FrameDeviceAnnounce:
		if a, err := nwk.DecodeDeviceAnnounce(f.Payload); err == nil {
			c.onDeviceAnnounce(addr, a)
		}
	case nwk.FrameLeave:
		if l, err := nwk.DecodeLeave(f.Payload); err == nil {
			c.onLeave(l)
		}
	case nwk.FrameData:
		if d, err := nwk.DecodeData(f.Payload); err == nil {
			c.onData(h, d)
		}
	}
}

func (c *Coordinator) onBeaconRequest(addr net.Addr) {
	b := nwk.Beacon{
		ExtendedPANID: c.config.ExtendedPANID,
		Channel:       c.config.Channel,
		PermitJoin:    c.PermitJoinOpen(),
	}
	_ = c.send(addr, nwk.FrameBeacon, nwk.BroadcastAddress, b.Encode())
}

func (c *Coordinator) onAssocRequest(addr net.Addr, r nwk.AssocRequest) {
	now := c.config.Now()

	c.mu.Lock()
	resp := nwk.AssocResponse{IEEEAddress: r.IEEEAddress, ShortAddress: nwk.UnassignedAddress}
	existing, known := c.devices.byIEEE[r.IEEEAddress]
	switch {
	case !c.permitOpenLocked():
		resp.Status = nwk.AssocAccessDenied
	case known:
		// Rejoin keeps the address.
		existing.addr = addr
		existing.LastSeen = now
		resp.ShortAddress = existing.ShortAddress
	case c.devices.len() >= c.config.MaxDevices:
		resp.Status = nwk.AssocPANAtCapacity
	default:
		short, ok := c.devices.allocate()
		if !ok {
			resp.Status = nwk.AssocPANAtCapacity
			break
		}
		c.devices.put(&Device{
			IEEEAddress:  r.IEEEAddress,
			ShortAddress: short,
			Capability:   r.Capability,
			LinkQuality:  DefaultLinkQuality,
			JoinedAt:     now,
			LastSeen:     now,
			addr:         addr,
		})
		resp.ShortAddress = short
	}
	c.mu.Unlock()

	if c.log != nil {
		if resp.Status == nwk.AssocSuccess {
			c.log.Infof("device %s associated as 0x%04X", nwk.FormatIEEE(r.IEEEAddress), resp.ShortAddress)
		} else {
			c.log.Warnf("association of %s refused: %s", nwk.FormatIEEE(r.IEEEAddress), resp.Status)
		}
	}
	_ = c.send(addr, nwk.FrameAssocResponse, nwk.UnassignedAddress, resp.Encode())
}

func (c *Coordinator) onDeviceAnnounce(addr net.Addr, a nwk.DeviceAnnounce) {
	now := c.config.Now()

	c.mu.Lock()
	d, ok := c.devices.byIEEE[a.IEEEAddress]
	if !ok {
		// A device rejoining after a coordinator restart is trusted with
		// the address it announces.
		d = &Device{IEEEAddress: a.IEEEAddress, LinkQuality: DefaultLinkQuality, JoinedAt: now}
	}
	d.ShortAddress = a.ShortAddress
	d.Capability = a.Capability
	d.LastSeen = now
	d.addr = addr
	c.devices.put(d)
	c.mu.Unlock()

	c.dups.Forget(a.ShortAddress)
	if c.log != nil {
		c.log.Infof("device %s announced as 0x%04X", nwk.FormatIEEE(a.IEEEAddress), a.ShortAddress)
	}
}

func (c *Coordinator) onLeave(l nwk.Leave) {
	c.mu.Lock()
	d, ok := c.devices.remove(l.IEEEAddress)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.dups.Forget(d.ShortAddress)
	if c.log != nil {
		c.log.Infof("device %s left", nwk.FormatIEEE(l.IEEEAddress))
	}
}

func (c *Coordinator) onData(h nwk.Header, d nwk.Data) {
	now := c.config.Now()

	c.mu.Lock()
	dev, ok := c.devices.byShort[h.Source]
	if ok {
		dev.LastSeen = now
	}
	var snapshot Device
	if ok {
		snapshot = *dev
	}
	c.mu.Unlock()
	if !ok {
		if c.log != nil {
			c.log.Debugf("data from unknown device 0x%04X", h.Source)
		}
		return
	}

	zf, err := zcl.DecodeFrame(d.ZCL)
	if err != nil {
		if c.log != nil {
			c.log.Debugf("bad ZCL frame from 0x%04X: %v", h.Source, err)
		}
		return
	}

	switch zf.Command {
	case zcl.CmdReportAttributes:
		c.onReport(snapshot, d, zf, now)
	case zcl.CmdReadAttributesResponse, zcl.CmdDefaultResponse:
		c.deliver(h.Source, zf)
	}
}

func (c *Coordinator) onReport(dev Device, d nwk.Data, zf *zcl.Frame, now time.Time) {
	records, err := zcl.DecodeReportAttributes(zf.Payload)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("bad report from %s: %v", dev.FriendlyName(), err)
		}
		return
	}

	reports := make([]Report, 0, len(records))
	c.mu.Lock()
	for _, rec := range records {
		r := Report{
			Device:    dev,
			Endpoint:  datamodel.EndpointID(d.Endpoint),
			Cluster:   datamodel.ClusterID(d.Cluster),
			Attribute: rec.ID,
			Value:     rec.Value,
			Time:      now,
		}
		c.values[valueKey{ieee: dev.IEEEAddress, path: r.Path()}] = LastValue{Value: rec.Value, Time: now}
		reports = append(reports, r)
	}
	handlers := append([]ReportHandler(nil), c.handlers...)
	c.mu.Unlock()

	for _, r := range reports {
		if c.log != nil {
			c.log.Debugf("report %s %s = %s", dev.FriendlyName(), r.Path(), r.Value)
		}
		for _, h := range handlers {
			h.HandleReport(r)
		}
	}
}

func (c *Coordinator) deliver(short uint16, zf *zcl.Frame) {
	key := pendingKey{short: short, seq: zf.Sequence}
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if ok {
		ch <- response{frame: zf}
	}
}

func (c *Coordinator) send(addr net.Addr, t nwk.FrameType, dst uint16, payload []byte) error {
	f := &nwk.Frame{
		Header: nwk.Header{
			Type:        t,
			Sequence:    c.nwkSeq.Next(),
			PANID:       c.config.PANID,
			Source:      nwk.CoordinatorAddress,
			Destination: dst,
		},
		Payload: payload,
	}
	return c.link.Send(f.Encode(), addr)
}
