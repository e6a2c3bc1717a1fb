package datamodel

import "github.com/backkem/climate-node/pkg/zcl"

// Access is the attribute access bitmask.
type Access uint8

const (
	// AccessRead allows the attribute to be read.
	AccessRead Access = 1 << iota
	// AccessWrite allows the attribute to be written over the air.
	AccessWrite
	// AccessReport allows the attribute to be configured for reporting.
	AccessReport
)

// AttributeEntry describes an attribute's metadata.
type AttributeEntry struct {
	// ID is the attribute identifier.
	ID AttributeID

	// Type is the attribute's ZCL data type.
	Type zcl.DataType

	// Access contains the access flags.
	Access Access
}

// IsReadable returns true if the attribute can be read.
func (a *AttributeEntry) IsReadable() bool {
	return a.Access&AccessRead != 0
}

// IsWritable returns true if the attribute can be written.
func (a *AttributeEntry) IsWritable() bool {
	return a.Access&AccessWrite != 0
}

// IsReportable returns true if the attribute supports reporting.
func (a *AttributeEntry) IsReportable() bool {
	return a.Access&AccessReport != 0
}

// EndpointEntry describes an endpoint's metadata (its simple descriptor).
type EndpointEntry struct {
	// ID is the endpoint identifier.
	ID EndpointID

	// Profile is the application profile.
	Profile ProfileID

	// Device is the application device type.
	Device DeviceID

	// DeviceVersion is the application device version.
	DeviceVersion uint8
}

// GlobalAttrClusterRevision is the global ClusterRevision attribute (0xFFFD)
// present on every cluster.
const GlobalAttrClusterRevision AttributeID = 0xFFFD

// GlobalAttributeEntries returns the global attribute entries
// that every cluster's AttributeList includes.
func GlobalAttributeEntries() []AttributeEntry {
	return []AttributeEntry{
		{ID: GlobalAttrClusterRevision, Type: zcl.TypeUint16, Access: AccessRead},
	}
}

// MergeAttributeLists combines cluster-specific attributes with global attributes.
func MergeAttributeLists(clusterAttrs []AttributeEntry) []AttributeEntry {
	globals := GlobalAttributeEntries()
	result := make([]AttributeEntry, 0, len(clusterAttrs)+len(globals))
	result = append(result, clusterAttrs...)
	result = append(result, globals...)
	return result
}

// FindAttribute searches an attribute list for a specific attribute ID.
// Returns nil if not found.
func FindAttribute(list []AttributeEntry, id AttributeID) *AttributeEntry {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
