// Package cache holds each device's locally cached Matter attribute data.
// It mirrors barton::DeviceDataCache: a thin synchronous store over the
// last attribute reports a subscription has delivered, read by mapper
// scripts without ever initiating a device round trip.
package cache

import (
	"sync"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
)

// FeatureMapAttributeID is the Matter global attribute ID carrying a
// cluster's FeatureMap bitmask (0xFFFC).
const FeatureMapAttributeID matterim.AttributeID = 0xFFFC

// ChangeCallback is notified whenever cached attribute data changes,
// mirroring ClusterStateCache::Callback::OnAttributeChanged.
type ChangeCallback interface {
	OnAttributeChanged(path matterim.AttributePath, payload []byte)
}

// DeviceDataCache stores the most recent TLV-encoded payload reported for
// each attribute path a device's active subscription covers. One instance
// is owned by exactly one device; there is no cross-device sharing.
type DeviceDataCache struct {
	mu        sync.RWMutex
	attrs     map[matterim.AttributePath][]byte
	callbacks []ChangeCallback
}

// NewDeviceDataCache returns an empty cache.
func NewDeviceDataCache() *DeviceDataCache {
	return &DeviceDataCache{attrs: make(map[matterim.AttributePath][]byte)}
}

// RegisterChangeCallback adds a callback invoked after every SetAttributeData.
func (c *DeviceDataCache) RegisterChangeCallback(cb ChangeCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// GetAttributeData returns the last cached payload for path, if any. It
// never triggers a read from the device.
func (c *DeviceDataCache) GetAttributeData(path matterim.AttributePath) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	payload, ok := c.attrs[path]
	return payload, ok
}

// SetAttributeData records a freshly reported attribute value and fans the
// change out to registered callbacks. Called from the subscription report
// path; one writer at a time by convention (the subscription goroutine).
func (c *DeviceDataCache) SetAttributeData(path matterim.AttributePath, payload []byte) {
	c.mu.Lock()
	c.attrs[path] = payload
	callbacks := append([]ChangeCallback(nil), c.callbacks...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb.OnAttributeChanged(path, payload)
	}
}

// GetFeatureMap returns the cached FeatureMap attribute value for a
// cluster on an endpoint, decoded as a plain uint32. Returns false if the
// feature map has not yet been reported.
func (c *DeviceDataCache) GetFeatureMap(endpoint matterim.EndpointID, cluster matterim.ClusterID, decode func([]byte) (uint32, error)) (uint32, bool) {
	payload, ok := c.GetAttributeData(matterim.AttributePath{Endpoint: endpoint, Cluster: cluster, Attribute: FeatureMapAttributeID})
	if !ok {
		return 0, false
	}
	v, err := decode(payload)
	if err != nil {
		return 0, false
	}
	return v, true
}
