package stack

import (
	"errors"
	"time"

	"github.com/backkem/climate-node/pkg/mesh"
	"github.com/backkem/climate-node/pkg/nwk"
	"github.com/backkem/climate-node/pkg/storage"
)

// capability is advertised in association requests and announcements: a
// battery powered sleepy end device that needs a short address.
const capability = nwk.CapAllocateAddress

// StartCommissioning implements mesh.Stack. The procedure runs on the event
// loop and its result arrives as a signal.
func (s *Stack) StartCommissioning(mode mesh.CommissioningMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return ErrNotRunning
	}

	switch mode {
	case mesh.ModeInitialization:
		s.post(s.initialize)
		return nil

	case mesh.ModeNetworkSteering:
		if s.phase != phaseIdle {
			return ErrSteeringActive
		}
		s.phase = phaseScanning
		s.sawClosed = false
		s.steerGen++
		gen := s.steerGen
		s.steerTmr = time.AfterFunc(s.config.SteeringTimeout, func() {
			s.post(func() { s.steeringTimeout(gen) })
		})
		s.post(s.scan)
		return nil

	default:
		return ErrUnsupportedMode
	}
}

// initialize restores a stored association or reports a first start.
func (s *Stack) initialize() {
	n, err := s.config.Storage.LoadNetwork()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.factoryNew.Store(true)
		s.setJoined(false, nil)
		if s.log != nil {
			s.log.Info("no stored network, first start")
		}
		s.emit(mesh.SignalFirstStart, mesh.StatusSuccess)

	case err != nil:
		if s.log != nil {
			s.log.Errorf("load network: %v", err)
		}
		s.emit(mesh.SignalReboot, mesh.StatusStorage)

	default:
		s.factoryNew.Store(false)
		s.setJoined(true, n)
		if s.log != nil {
			s.log.Infof("restored network %s", n)
		}
		s.emit(mesh.SignalReboot, mesh.StatusSuccess)
		s.announce()
	}
}

// scan broadcasts a beacon request.
func (s *Stack) scan() {
	if s.log != nil {
		s.log.Debug("steering: beacon request")
	}
	s.sendFrame(nwk.FrameBeaconRequest, nwk.BroadcastPAN, nwk.UnassignedAddress, nwk.BroadcastAddress, nil)
}

func (s *Stack) onBeacon(h nwk.Header, b nwk.Beacon) {
	s.mu.Lock()
	if s.phase != phaseScanning {
		s.mu.Unlock()
		return
	}
	if !b.PermitJoin {
		s.sawClosed = true
		s.mu.Unlock()
		if s.log != nil {
			s.log.Debugf("steering: PAN 0x%04X not permitting joins", h.PANID)
		}
		return
	}
	s.phase = phaseAssociating
	s.picked = candidate{panID: h.PANID, extendedPANID: b.ExtendedPANID, channel: b.Channel}
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debugf("steering: associating with PAN 0x%04X on channel %d", h.PANID, b.Channel)
	}
	req := nwk.AssocRequest{IEEEAddress: s.config.IEEEAddress, Capability: capability}
	s.sendFrame(nwk.FrameAssocRequest, h.PANID, nwk.UnassignedAddress, h.Source, req.Encode())
}

func (s *Stack) onAssocResponse(r nwk.AssocResponse) {
	if r.IEEEAddress != s.config.IEEEAddress {
		return
	}
	s.mu.Lock()
	if s.phase != phaseAssociating {
		s.mu.Unlock()
		return
	}
	picked := s.picked
	s.endSteeringLocked()
	s.mu.Unlock()

	if r.Status != nwk.AssocSuccess {
		if s.log != nil {
			s.log.Warnf("steering: association refused: %s", r.Status)
		}
		s.emit(mesh.SignalSteering, mesh.StatusNotPermitted)
		return
	}

	n := &storage.Network{
		PANID:         picked.panID,
		ExtendedPANID: picked.extendedPANID,
		Channel:       picked.channel,
		ShortAddress:  r.ShortAddress,
		IEEEAddress:   s.config.IEEEAddress,
		JoinedAt:      time.Now(),
	}
	if err := s.config.Storage.SaveNetwork(n); err != nil {
		if s.log != nil {
			s.log.Errorf("save network: %v", err)
		}
		s.emit(mesh.SignalSteering, mesh.StatusStorage)
		return
	}

	s.factoryNew.Store(false)
	s.setJoined(true, n)
	s.emit(mesh.SignalSteering, mesh.StatusSuccess)
	s.announce()
}

func (s *Stack) steeringTimeout(gen uint64) {
	s.mu.Lock()
	if s.phase == phaseIdle || s.steerGen != gen {
		s.mu.Unlock()
		return
	}
	status := mesh.StatusNoNetwork
	switch {
	case s.phase == phaseAssociating:
		status = mesh.StatusTimeout
	case s.sawClosed:
		status = mesh.StatusNotPermitted
	}
	s.endSteeringLocked()
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debugf("steering: timed out (%s)", status)
	}
	s.emit(mesh.SignalSteering, status)
}

// endSteeringLocked must be called with mu held.
func (s *Stack) endSteeringLocked() {
	s.phase = phaseIdle
	s.stopSteeringTimerLocked()
}

func (s *Stack) stopSteeringTimerLocked() {
	if s.steerTmr != nil {
		s.steerTmr.Stop()
		s.steerTmr = nil
	}
}

// announce broadcasts a device announcement and starts reporting.
func (s *Stack) announce() {
	info := s.NetworkInfo()
	a := nwk.DeviceAnnounce{
		IEEEAddress:  info.IEEEAddress,
		ShortAddress: info.ShortAddress,
		Capability:   capability,
	}
	if err := s.sendFrame(nwk.FrameDeviceAnnounce, info.PANID, info.ShortAddress, nwk.BroadcastAddress, a.Encode()); err != nil {
		return
	}

	s.mu.RLock()
	r := s.reporter
	s.mu.RUnlock()
	if r != nil {
		r.ReportAll()
	}
	s.emit(mesh.SignalDeviceAnnounce, mesh.StatusSuccess)
}

// Leave leaves the network: the coordinator is told, the stored
// association is cleared and SignalLeave is raised.
func (s *Stack) Leave() error {
	s.mu.RLock()
	running, joined, info := s.state == StateRunning, s.joined, s.network
	s.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if !joined {
		return ErrNotJoined
	}

	l := nwk.Leave{IEEEAddress: s.config.IEEEAddress}
	if err := s.sendFrame(nwk.FrameLeave, info.PANID, info.ShortAddress, nwk.CoordinatorAddress, l.Encode()); err != nil && s.log != nil {
		s.log.Warnf("leave notification: %v", err)
	}
	s.post(func() { s.left(false) })
	return nil
}

// onLeave handles a leave request from the coordinator.
func (s *Stack) onLeave(l nwk.Leave) {
	if l.IEEEAddress != s.config.IEEEAddress || !s.Joined() {
		return
	}
	if s.log != nil {
		s.log.Warn("removed from network by coordinator")
	}
	s.left(l.Rejoin)
}

func (s *Stack) left(rejoin bool) {
	if !s.Joined() {
		return
	}
	status := mesh.StatusSuccess
	if err := s.config.Storage.ClearNetwork(); err != nil {
		if s.log != nil {
			s.log.Errorf("clear network: %v", err)
		}
		status = mesh.StatusStorage
	}
	s.factoryNew.Store(true)
	s.setJoined(false, nil)
	s.emit(mesh.SignalLeave, status)
	if rejoin && s.log != nil {
		s.log.Info("coordinator asked for rejoin; waiting for the application to steer")
	}
}

// setJoined updates the association. n is ignored when joined is false.
func (s *Stack) setJoined(joined bool, n *storage.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.joined != joined {
		s.dups.Forget(nwk.CoordinatorAddress)
	}
	s.joined = joined
	if !joined {
		s.network = mesh.NetworkInfo{
			PANID:        nwk.BroadcastPAN,
			ShortAddress: nwk.UnassignedAddress,
			IEEEAddress:  s.config.IEEEAddress,
		}
		return
	}
	s.network = mesh.NetworkInfo{
		PANID:         n.PANID,
		ExtendedPANID: n.ExtendedPANID,
		Channel:       n.Channel,
		ShortAddress:  n.ShortAddress,
		IEEEAddress:   s.config.IEEEAddress,
	}
}
