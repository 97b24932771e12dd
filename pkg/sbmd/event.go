package sbmd

// Event identifies a single Matter cluster event a resource's event
// mapper reads. Event mappers are a supplemented carrier kind: present in
// the original driver's event-binding machinery but only lightly named in
// the resource grammar, so they're parsed the same way a read attribute
// is — a single carrier plus a script, but keyed on an event rather than
// an attribute.
type Event struct {
	ClusterID          uint32
	EventID            uint32
	Name               string
	Type               string
	ResourceEndpointID string
	ResourceID         string
}
