// Package matterim types the Matter object-model identifiers and defines
// the interaction-model contracts this driver depends on: reading,
// writing, invoking, and subscribing against a node's clusters. The
// concrete fabric/session/transport/commissioning machinery behind these
// contracts belongs to the Matter stack this driver plugs into — this
// package only states the shape of that boundary, matching the sizes CHIP
// itself assigns these identifiers (chip::ClusterId is uint32_t,
// chip::EndpointId is uint16_t, and so on).
package matterim

// NodeID is a fabric-scoped 64-bit operational node identifier.
type NodeID uint64

// EndpointID addresses one endpoint on a node.
type EndpointID uint16

// ClusterID addresses one cluster on an endpoint.
type ClusterID uint32

// AttributeID addresses one attribute within a cluster.
type AttributeID uint32

// CommandID addresses one command within a cluster.
type CommandID uint32

// EventID addresses one event within a cluster.
type EventID uint32

// AttributePath fully qualifies one attribute instance on a node.
type AttributePath struct {
	Endpoint  EndpointID
	Cluster   ClusterID
	Attribute AttributeID
}

// CommandPath fully qualifies one command instance on a node.
type CommandPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
	Command  CommandID
}

// EventPath fully qualifies one event instance on a node.
type EventPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
	Event    EventID
}
