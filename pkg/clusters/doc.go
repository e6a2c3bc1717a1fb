// Package clusters provides the shared implementation of the measurement
// clusters hosted by the sensor endpoint.
//
// # Architecture
//
// Clusters implement the datamodel.Cluster interface and embed
// *datamodel.ClusterBase for identity and global attributes:
//
//	type Cluster struct {
//	    *clusters.Measurement // MeasuredValue + Min/Max range
//	}
//
// # Subpackages
//
// Individual cluster implementations are in subpackages:
//   - clusters/basic: Basic (0x0000)
//   - clusters/identify: Identify (0x0003)
//   - clusters/temperature: Temperature Measurement (0x0402)
//   - clusters/humidity: Relative Humidity Measurement (0x0405)
package clusters
