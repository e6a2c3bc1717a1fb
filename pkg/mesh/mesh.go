// Package mesh defines the contract between the node application and the
// mesh network stack: the signals the stack delivers, the commissioning
// requests it accepts, and the attribute store it exposes.
//
// The stack runs a single event context. Signal handlers and alarm callbacks
// execute there, one at a time, and must return quickly.
package mesh

import (
	"fmt"
	"time"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// SignalKind identifies an application signal raised by the stack.
type SignalKind uint8

const (
	// SignalStackInitialized is raised once the stack is ready to be
	// commissioned.
	SignalStackInitialized SignalKind = iota + 1
	// SignalFirstStart reports the result of initialization with no
	// stored network.
	SignalFirstStart
	// SignalReboot reports the result of initialization with a stored network.
	SignalReboot
	// SignalSteering reports the result of network steering.
	SignalSteering
	// SignalLeave reports the node left, or was removed from, the network.
	SignalLeave
	// SignalDeviceAnnounce reports the node announced itself on the network.
	SignalDeviceAnnounce
	// SignalPermitJoinStatus reports the network's permit-join window changed.
	SignalPermitJoinStatus
)

// String returns a human-readable name.
func (k SignalKind) String() string {
	switch k {
	case SignalStackInitialized:
		return "StackInitialized"
	case SignalFirstStart:
		return "FirstStart"
	case SignalReboot:
		return "Reboot"
	case SignalSteering:
		return "Steering"
	case SignalLeave:
		return "Leave"
	case SignalDeviceAnnounce:
		return "DeviceAnnounce"
	case SignalPermitJoinStatus:
		return "PermitJoinStatus"
	default:
		return fmt.Sprintf("Signal(0x%02X)", uint8(k))
	}
}

// Status is the outcome carried by a signal.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusTimeout
	StatusNoNetwork
	StatusNotPermitted
	StatusStorage
)

// OK reports whether the status is StatusSuccess.
func (s Status) OK() bool { return s == StatusSuccess }

// String returns a human-readable name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusTimeout:
		return "Timeout"
	case StatusNoNetwork:
		return "NoNetwork"
	case StatusNotPermitted:
		return "NotPermitted"
	case StatusStorage:
		return "StorageError"
	default:
		return fmt.Sprintf("Status(0x%02X)", uint8(s))
	}
}

// Signal is one application signal.
type Signal struct {
	Kind   SignalKind
	Status Status
}

// OK reports whether the signal carries a success outcome.
func (s Signal) OK() bool { return s.Status.OK() }

// String implements fmt.Stringer.
func (s Signal) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Status)
}

// SignalHandler consumes stack signals.
type SignalHandler interface {
	HandleSignal(sig Signal)
}

// SignalHandlerFunc adapts a function to SignalHandler.
type SignalHandlerFunc func(sig Signal)

// HandleSignal calls f(sig).
func (f SignalHandlerFunc) HandleSignal(sig Signal) { f(sig) }

// CommissioningMode selects a commissioning procedure.
type CommissioningMode uint8

const (
	// ModeInitialization restores a stored network or reports a first start.
	ModeInitialization CommissioningMode = 0x00
	// ModeNetworkSteering searches for and joins an open network.
	ModeNetworkSteering CommissioningMode = 0x02
)

// String returns a human-readable name.
func (m CommissioningMode) String() string {
	switch m {
	case ModeInitialization:
		return "Initialization"
	case ModeNetworkSteering:
		return "NetworkSteering"
	default:
		return fmt.Sprintf("Mode(0x%02X)", uint8(m))
	}
}

// NetworkInfo is the node's current association.
type NetworkInfo struct {
	PANID         uint16
	ExtendedPANID uint64
	Channel       uint8
	ShortAddress  uint16
	IEEEAddress   uint64
}

// String implements fmt.Stringer.
func (n NetworkInfo) String() string {
	return fmt.Sprintf("PAN=0x%04X CH=%d SHORT=0x%04X", n.PANID, n.Channel, n.ShortAddress)
}

// Stack is the part of the mesh stack the commissioning controller drives.
type Stack interface {
	// StartCommissioning asks the stack to run a commissioning procedure.
	// The result arrives later as a signal.
	StartCommissioning(mode CommissioningMode) error

	// ScheduleAlarm runs fn(mode) on the stack context after delay. A new
	// alarm for the same mode replaces any pending one.
	ScheduleAlarm(delay time.Duration, mode CommissioningMode, fn func(CommissioningMode))

	// SetTxPower sets the radio transmit power in dBm.
	SetTxPower(dbm int8) error

	// IsFactoryNew reports whether no network association is stored.
	IsFactoryNew() bool

	// NetworkInfo returns the current association, for diagnostics.
	NetworkInfo() NetworkInfo
}

// AttributeStore is the stack's attribute model. Writers hold the lock
// around a group of updates so remote readers never observe half of it.
type AttributeStore interface {
	Lock()
	Unlock()
	SetAttribute(ep datamodel.EndpointID, cl datamodel.ClusterID, attr datamodel.AttributeID, v zcl.Value) error
}
