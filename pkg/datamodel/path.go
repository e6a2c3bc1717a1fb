package datamodel

import (
	"fmt"

	"github.com/backkem/climate-node/pkg/zcl"
)

// Type aliases from zcl for convenience.
type (
	// ClusterID is a 16-bit cluster identifier.
	ClusterID = zcl.ClusterID

	// AttributeID is a 16-bit attribute identifier.
	AttributeID = zcl.AttributeID
)

// EndpointID is an 8-bit application endpoint number (1-240).
type EndpointID uint8

// ProfileID identifies the application profile an endpoint implements.
type ProfileID uint16

// DeviceID identifies the device type an endpoint implements.
type DeviceID uint16

// DataVersion is a 32-bit version number for cluster data.
type DataVersion uint32

// Profiles and device types used by the node.
const (
	// ProfileHomeAutomation is the Zigbee Home Automation profile.
	ProfileHomeAutomation ProfileID = 0x0104

	// DeviceTemperatureSensor is the HA Temperature Sensor device type.
	DeviceTemperatureSensor DeviceID = 0x0302
)

// ConcreteClusterPath identifies a specific cluster instance on an endpoint.
type ConcreteClusterPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
}

// String formats the path as endpoint/cluster.
func (p ConcreteClusterPath) String() string {
	return fmt.Sprintf("%d/0x%04X", p.Endpoint, uint16(p.Cluster))
}

// ConcreteAttributePath identifies a specific attribute within a cluster.
type ConcreteAttributePath struct {
	Endpoint  EndpointID
	Cluster   ClusterID
	Attribute AttributeID
}

// ClusterPath returns the cluster path portion.
func (p ConcreteAttributePath) ClusterPath() ConcreteClusterPath {
	return ConcreteClusterPath{
		Endpoint: p.Endpoint,
		Cluster:  p.Cluster,
	}
}

// String formats the path as endpoint/cluster/attribute.
func (p ConcreteAttributePath) String() string {
	return fmt.Sprintf("%d/0x%04X/0x%04X", p.Endpoint, uint16(p.Cluster), uint16(p.Attribute))
}
