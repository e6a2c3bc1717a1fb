package coordinator

import (
	"context"
	"fmt"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/zcl"
)

// SendLeave asks a device to leave the network and forgets it.
func (c *Coordinator) SendLeave(ieee uint64, rejoin bool) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	d, ok := c.devices.remove(ieee)
	c.mu.Unlock()
	if !ok {
		return ErrUnknownDevice
	}
	c.dups.Forget(d.ShortAddress)

	if c.log != nil {
		c.log.Infof("removing device %s", nwk.FormatIEEE(ieee))
	}
	l := nwk.Leave{IEEEAddress: ieee, Rejoin: rejoin}
	return c.send(d.addr, nwk.FrameLeave, d.ShortAddress, l.Encode())
}

// ReadAttributes reads attributes of one cluster on a device and waits for
// the response. Without a context deadline the configured ReadTimeout
// applies.
func (c *Coordinator) ReadAttributes(ctx context.Context, ieee uint64, ep datamodel.EndpointID, cl datamodel.ClusterID, ids []datamodel.AttributeID) ([]zcl.ReadAttributeStatus, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ReadTimeout)
		defer cancel()
	}

	seq := c.zclSeq.Next()
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	d, ok := c.devices.byIEEE[ieee]
	if !ok {
		c.mu.Unlock()
		return nil, ErrUnknownDevice
	}
	dev := *d
	key := pendingKey{short: dev.ShortAddress, seq: seq}
	ch := make(chan response, 1)
	c.pending[key] = ch
	c.mu.Unlock()

	cancelPending := func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}

	req := &zcl.Frame{
		Header: zcl.Header{
			FrameType: zcl.FrameTypeGlobal,
			Direction: zcl.DirectionToServer,
			Sequence:  seq,
			Command:   zcl.CmdReadAttributes,
		},
		Payload: zcl.EncodeReadAttributes(ids),
	}
	data := nwk.Data{Endpoint: uint8(ep), Profile: c.config.Profile, Cluster: uint16(cl), ZCL: req.Encode()}
	if err := c.send(dev.addr, nwk.FrameData, dev.ShortAddress, data.Encode()); err != nil {
		cancelPending()
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotStarted
		}
		return decodeReadResponse(resp.frame)
	case <-ctx.Done():
		cancelPending()
		return nil, fmt.Errorf("%w: %v", ErrResponseTimeout, ctx.Err())
	}
}

func decodeReadResponse(f *zcl.Frame) ([]zcl.ReadAttributeStatus, error) {
	switch f.Command {
	case zcl.CmdReadAttributesResponse:
		return zcl.DecodeReadAttributesResponse(f.Payload)
	case zcl.CmdDefaultResponse:
		status := zcl.StatusFailure
		if len(f.Payload) >= 2 {
			status = zcl.Status(f.Payload[1])
		}
		return nil, fmt.Errorf("%w: %s", ErrCommandFailed, status)
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrCommandFailed, f.Command)
	}
}
