package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/transport"
	"github.com/backkem/climate-node/pkg/zcl"
)

// onFrame runs on the link's read loop and hands the frame to the event loop.
func (s *Stack) onFrame(f *transport.ReceivedFrame) {
	s.post(func() { s.handleFrame(f.Data) })
}

func (s *Stack) handleFrame(data []byte) {
	f, err := nwk.Decode(data)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("dropping frame: %v", err)
		}
		return
	}
	h := f.Header

	info := s.NetworkInfo()
	if !s.addressedToUs(h, info.ShortAddress) {
		return
	}
	if !s.dups.Accept(h) {
		if s.log != nil {
			s.log.Tracef("duplicate %s seq=%d from 0x%04X", h.Type, h.Sequence, h.Source)
		}
		return
	}

	switch h.Type {
	case nwk.FrameBeacon:
		b, err := nwk.DecodeBeacon(f.Payload)
		if err == nil {
			s.onBeacon(h, b)
		}
	case nwk.FrameAssocResponse:
		r, err := nwk.DecodeAssocResponse(f.Payload)
		if err == nil {
			s.onAssocResponse(r)
		}
	case nwk.FrameLeave:
		l, err := nwk.DecodeLeave(f.Payload)
		if err == nil {
			s.onLeave(l)
		}
	case nwk.FrameData:
		if !s.Joined() || h.PANID != info.PANID {
			return
		}
		d, err := nwk.DecodeData(f.Payload)
		if err != nil {
			if s.log != nil {
				s.log.Debugf("dropping data frame: %v", err)
			}
			return
		}
		s.handleData(h, d)
	default:
		// Beacon requests, association requests and announcements are
		// coordinator business.
	}
}

func (s *Stack) addressedToUs(h nwk.Header, short uint16) bool {
	switch h.Destination {
	case nwk.BroadcastAddress:
		return true
	case nwk.UnassignedAddress:
		// Association responses and leave requests carry the IEEE address.
		return true
	default:
		return h.Destination == short
	}
}

// handleData serves a ZCL command addressed to one of our endpoints.
func (s *Stack) handleData(h nwk.Header, d nwk.Data) {
	req, err := zcl.DecodeFrame(d.ZCL)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("dropping ZCL frame: %v", err)
		}
		return
	}
	if req.Direction != zcl.DirectionToServer {
		return
	}
	ep := datamodel.EndpointID(d.Endpoint)
	cl := datamodel.ClusterID(d.Cluster)

	if s.config.Node.GetCluster(ep, cl) == nil {
		s.defaultResponse(h, d, req, zcl.StatusUnsupportedCluster)
		return
	}
	if req.FrameType != zcl.FrameTypeGlobal {
		s.defaultResponse(h, d, req, zcl.StatusUnsupClusterCommand)
		return
	}

	switch req.Command {
	case zcl.CmdReadAttributes:
		s.readAttributes(h, d, req)
	default:
		s.defaultResponse(h, d, req, zcl.StatusUnsupGeneralCommand)
	}
}

func (s *Stack) readAttributes(h nwk.Header, d nwk.Data, req *zcl.Frame) {
	ids, err := zcl.DecodeReadAttributes(req.Payload)
	if err != nil {
		s.defaultResponse(h, d, req, zcl.StatusFailure)
		return
	}

	ep := datamodel.EndpointID(d.Endpoint)
	cl := datamodel.ClusterID(d.Cluster)
	records := make([]zcl.ReadAttributeStatus, 0, len(ids))
	for _, id := range ids {
		v, err := s.config.Node.ReadAttribute(context.Background(), ep, cl, id)
		switch {
		case err == nil:
			records = append(records, zcl.ReadAttributeStatus{ID: id, Status: zcl.StatusSuccess, Value: v})
		case errors.Is(err, datamodel.ErrAttributeNotFound):
			records = append(records, zcl.ReadAttributeStatus{ID: id, Status: zcl.StatusUnsupportedAttribute})
		default:
			records = append(records, zcl.ReadAttributeStatus{ID: id, Status: zcl.StatusFailure})
		}
	}

	payload, err := zcl.EncodeReadAttributesResponse(records)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("encode read response: %v", err)
		}
		return
	}
	if s.log != nil {
		s.log.Debugf("read %d attribute(s) on ep=%d cluster=0x%04X for 0x%04X", len(ids), ep, uint16(cl), h.Source)
	}
	s.reply(h, d, req.Sequence, zcl.CmdReadAttributesResponse, payload)
}

func (s *Stack) defaultResponse(h nwk.Header, d nwk.Data, req *zcl.Frame, status zcl.Status) {
	if req.DisableDefaultResponse {
		return
	}
	s.reply(h, d, req.Sequence, zcl.CmdDefaultResponse, []byte{uint8(req.Command), uint8(status)})
}

func (s *Stack) reply(h nwk.Header, d nwk.Data, seq uint8, cmd zcl.CommandID, payload []byte) {
	resp := &zcl.Frame{
		Header: zcl.Header{
			FrameType:              zcl.FrameTypeGlobal,
			Direction:              zcl.DirectionToClient,
			DisableDefaultResponse: true,
			Sequence:               seq,
			Command:                cmd,
		},
		Payload: payload,
	}
	out := nwk.Data{Endpoint: d.Endpoint, Profile: d.Profile, Cluster: d.Cluster, ZCL: resp.Encode()}
	info := s.NetworkInfo()
	_ = s.sendFrame(nwk.FrameData, info.PANID, info.ShortAddress, h.Source, out.Encode())
}

// SendReport implements reporting.Sink. It sends a Report Attributes
// command for one cluster to the coordinator.
func (s *Stack) SendReport(ep datamodel.EndpointID, cl datamodel.ClusterID, records []zcl.AttributeRecord) error {
	s.mu.RLock()
	joined, info := s.joined, s.network
	s.mu.RUnlock()
	if !joined {
		return ErrNotJoined
	}

	payload, err := zcl.EncodeReportAttributes(records)
	if err != nil {
		return fmt.Errorf("stack: encode report: %w", err)
	}
	f := &zcl.Frame{
		Header: zcl.Header{
			FrameType:              zcl.FrameTypeGlobal,
			Direction:              zcl.DirectionToClient,
			DisableDefaultResponse: true,
			Sequence:               s.zclSeq.Next(),
			Command:                zcl.CmdReportAttributes,
		},
		Payload: payload,
	}
	d := nwk.Data{Endpoint: uint8(ep), Profile: s.config.Profile, Cluster: uint16(cl), ZCL: f.Encode()}
	return s.sendFrame(nwk.FrameData, info.PANID, info.ShortAddress, nwk.CoordinatorAddress, d.Encode())
}

func (s *Stack) sendFrame(t nwk.FrameType, pan, src, dst uint16, payload []byte) error {
	f := &nwk.Frame{
		Header: nwk.Header{
			Type:        t,
			Sequence:    s.nwkSeq.Next(),
			PANID:       pan,
			Source:      src,
			Destination: dst,
		},
		Payload: payload,
	}
	if err := s.link.Send(f.Encode(), s.config.Coordinator); err != nil {
		if s.log != nil {
			s.log.Warnf("send %s: %v", t, err)
		}
		return err
	}
	return nil
}
