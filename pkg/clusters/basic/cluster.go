// Package basic implements the Basic cluster (0x0000).
//
// The Basic cluster carries static device identification: the ZCL version
// implemented, manufacturer and model strings, and the power source. All
// attributes are fixed at construction.
package basic

import (
	"context"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0000
	ClusterRevision uint16              = 3
)

// Attribute IDs.
const (
	AttrZCLVersion       datamodel.AttributeID = 0x0000
	AttrApplicationVer   datamodel.AttributeID = 0x0001
	AttrManufacturerName datamodel.AttributeID = 0x0004
	AttrModelIdentifier  datamodel.AttributeID = 0x0005
	AttrPowerSource      datamodel.AttributeID = 0x0007
)

// PowerSource enumerates the PowerSource attribute values.
type PowerSource uint8

const (
	PowerSourceUnknown     PowerSource = 0x00
	PowerSourceMainsSingle PowerSource = 0x01
	PowerSourceMainsThree  PowerSource = 0x02
	PowerSourceBattery     PowerSource = 0x03
	PowerSourceDC          PowerSource = 0x04
)

// String returns a human-readable name.
func (p PowerSource) String() string {
	switch p {
	case PowerSourceMainsSingle:
		return "Mains (single phase)"
	case PowerSourceMainsThree:
		return "Mains (3 phase)"
	case PowerSourceBattery:
		return "Battery"
	case PowerSourceDC:
		return "DC"
	default:
		return "Unknown"
	}
}

// DefaultZCLVersion is the ZCL revision the node implements.
const DefaultZCLVersion uint8 = 8

// DeviceInfo provides static device information.
type DeviceInfo struct {
	ZCLVersion         uint8
	ApplicationVersion uint8
	ManufacturerName   string // max 32 chars
	ModelIdentifier    string // max 32 chars
	PowerSource        PowerSource
}

// Config provides dependencies for the Basic cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// DeviceInfo provides static device information.
	DeviceInfo DeviceInfo
}

// Cluster implements the Basic cluster (0x0000).
type Cluster struct {
	*datamodel.ClusterBase
	info     DeviceInfo
	attrList []datamodel.AttributeEntry
}

// New creates a new Basic cluster. Strings longer than 32 characters
// are truncated.
func New(cfg Config) *Cluster {
	info := cfg.DeviceInfo
	if info.ZCLVersion == 0 {
		info.ZCLVersion = DefaultZCLVersion
	}
	info.ManufacturerName = truncate(info.ManufacturerName, 32)
	info.ModelIdentifier = truncate(info.ModelIdentifier, 32)

	return &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		info:        info,
		attrList: datamodel.MergeAttributeLists([]datamodel.AttributeEntry{
			{ID: AttrZCLVersion, Type: zcl.TypeUint8, Access: datamodel.AccessRead},
			{ID: AttrApplicationVer, Type: zcl.TypeUint8, Access: datamodel.AccessRead},
			{ID: AttrManufacturerName, Type: zcl.TypeCharString, Access: datamodel.AccessRead},
			{ID: AttrModelIdentifier, Type: zcl.TypeCharString, Access: datamodel.AccessRead},
			{ID: AttrPowerSource, Type: zcl.TypeEnum8, Access: datamodel.AccessRead},
		}),
	}
}

// AttributeList implements datamodel.Cluster.
func (c *Cluster) AttributeList() []datamodel.AttributeEntry {
	return c.attrList
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(_ context.Context, id datamodel.AttributeID) (zcl.Value, error) {
	if v, ok := c.ReadGlobalAttribute(id); ok {
		return v, nil
	}

	switch id {
	case AttrZCLVersion:
		return zcl.Uint8(c.info.ZCLVersion), nil
	case AttrApplicationVer:
		return zcl.Uint8(c.info.ApplicationVersion), nil
	case AttrManufacturerName:
		return zcl.CharString(c.info.ManufacturerName), nil
	case AttrModelIdentifier:
		return zcl.CharString(c.info.ModelIdentifier), nil
	case AttrPowerSource:
		return zcl.Enum8(uint8(c.info.PowerSource)), nil
	default:
		return zcl.Value{}, datamodel.ErrAttributeNotFound
	}
}

// Info returns the static device information.
func (c *Cluster) Info() DeviceInfo {
	return c.info
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

var _ datamodel.Cluster = (*Cluster)(nil)
