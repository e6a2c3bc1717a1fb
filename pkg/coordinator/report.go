package coordinator

import (
	"time"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Report is one attribute value reported by a device.
type Report struct {
	Device    Device
	Endpoint  datamodel.EndpointID
	Cluster   datamodel.ClusterID
	Attribute datamodel.AttributeID
	Value     zcl.Value
	Time      time.Time
}

// Path returns the attribute path the report refers to.
func (r Report) Path() datamodel.ConcreteAttributePath {
	return datamodel.ConcreteAttributePath{Endpoint: r.Endpoint, Cluster: r.Cluster, Attribute: r.Attribute}
}

// ReportHandler consumes attribute reports. Handlers run on the radio read
// loop and must not block.
type ReportHandler interface {
	HandleReport(r Report)
}

// ReportHandlerFunc adapts a function to ReportHandler.
type ReportHandlerFunc func(r Report)

// HandleReport calls f(r).
func (f ReportHandlerFunc) HandleReport(r Report) { f(r) }

// LastValue is the most recent reported value of one attribute.
type LastValue struct {
	Value zcl.Value
	Time  time.Time
}

type valueKey struct {
	ieee uint64
	path datamodel.ConcreteAttributePath
}
