// Package device implements MatterDevice: the per-device runtime state
// that binds resource URIs to Matter attributes/commands/events and
// dispatches SBMD reads, writes, executes, and event reports through a
// device's SbmdScript.
package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/cache"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/script"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// ResourceSink receives a resource's mapped value whenever a bound
// attribute report or event arrives. handler.DeviceManager implements this
// to forward updates to its own EventSink.
type ResourceSink interface {
	OnResourceEvent(deviceID, uri, value string)
}

// bindingKind distinguishes what a resource binding ultimately dispatches
// to. Per the write-mapper open question, an attribute-backed write leaf
// is parsed but never bound here — write bindings are always command or
// command-set.
type bindingKind int

const (
	bindAttribute bindingKind = iota
	bindCommand
	bindCommandSet
)

type resourceBinding struct {
	kind     bindingKind
	uri      string
	attrPath matterim.AttributePath
	attr     sbmd.Attribute
	command  sbmd.Command
	commands []sbmd.Command
}

type eventBinding struct {
	uri   string
	event sbmd.Event
	path  matterim.EventPath
}

// MatterDevice is one commissioned device's locally managed SBMD state:
// its resource bindings, script engine, and attribute data cache.
type MatterDevice struct {
	deviceID        string
	dataCache       *cache.DeviceDataCache
	script          script.SbmdScript
	sink            ResourceSink
	featureClusters []matterim.ClusterID

	mu                      sync.RWMutex
	resourceReadBindings    map[string]resourceBinding
	resourceWriteBindings   map[string]resourceBinding
	resourceExecuteBindings map[string]resourceBinding
	readableAttributeLookup map[matterim.AttributePath]resourceBinding
	eventLookup             map[matterim.EventPath]eventBinding
	endpointsByCluster      map[matterim.ClusterID][]matterim.EndpointID
}

// NewMatterDevice constructs an empty device runtime. Callers must still
// call SetScript and bind resources before dispatching operations.
func NewMatterDevice(deviceID string, dataCache *cache.DeviceDataCache) *MatterDevice {
	d := &MatterDevice{
		deviceID:                deviceID,
		dataCache:               dataCache,
		resourceReadBindings:    map[string]resourceBinding{},
		resourceWriteBindings:   map[string]resourceBinding{},
		resourceExecuteBindings: map[string]resourceBinding{},
		readableAttributeLookup: map[matterim.AttributePath]resourceBinding{},
		eventLookup:             map[matterim.EventPath]eventBinding{},
		endpointsByCluster:      map[matterim.ClusterID][]matterim.EndpointID{},
	}
	if dataCache != nil {
		dataCache.RegisterChangeCallback(d)
	}
	return d
}

func (d *MatterDevice) GetDeviceID() string { return d.deviceID }

func (d *MatterDevice) SetScript(s script.SbmdScript) { d.script = s }

// SetResourceSink registers where this device's attribute-report and
// event-mapped resource updates are delivered.
func (d *MatterDevice) SetResourceSink(sink ResourceSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

func (d *MatterDevice) GetDeviceDataCache() *cache.DeviceDataCache { return d.dataCache }

// SetFeatureClusters records which clusters' FeatureMap attributes this
// device's mapper scripts expect, matching SbmdMeta.featureClusters.
func (d *MatterDevice) SetFeatureClusters(clusters []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.featureClusters = d.featureClusters[:0]
	for _, c := range clusters {
		d.featureClusters = append(d.featureClusters, matterim.ClusterID(c))
	}
}

// NoteEndpoint records that a cluster is hosted on an endpoint, so that
// GetEndpointForCluster/GetNthEndpointForCluster can resolve it later.
// Called once per endpoint/cluster pair as a spec's endpoints are bound.
func (d *MatterDevice) NoteEndpoint(cluster matterim.ClusterID, endpoint matterim.EndpointID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.endpointsByCluster[cluster] {
		if e == endpoint {
			return
		}
	}
	d.endpointsByCluster[cluster] = append(d.endpointsByCluster[cluster], endpoint)
}

// GetEndpointForCluster returns the first endpoint hosting cluster, which
// is sufficient for device types with exactly one server instance of it.
func (d *MatterDevice) GetEndpointForCluster(cluster matterim.ClusterID) (matterim.EndpointID, bool) {
	return d.GetNthEndpointForCluster(cluster, 0)
}

// GetNthEndpointForCluster returns the index'th (0-based) endpoint hosting
// cluster, for devices composed of multiple instances of the same cluster.
func (d *MatterDevice) GetNthEndpointForCluster(cluster matterim.ClusterID, index int) (matterim.EndpointID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	eps := d.endpointsByCluster[cluster]
	if index < 0 || index >= len(eps) {
		return 0, false
	}
	return eps[index], true
}

// SubscriptionPaths returns every attribute and event path a subscription
// must cover to keep readableAttributeLookup/eventLookup fed, straight from
// the same two binding tables OnAttributeChanged/OnEventReceived dispatch
// against, plus a FeatureMap attribute path for each feature cluster whose
// endpoint a binding has already revealed (UpdateCachedFeatureMaps can only
// resolve clusters it can find an endpoint for, same as the original
// GetEndpointForCluster).
func (d *MatterDevice) SubscriptionPaths() ([]matterim.AttributePath, []matterim.EventPath) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	attrs := make([]matterim.AttributePath, 0, len(d.readableAttributeLookup)+len(d.featureClusters))
	for path := range d.readableAttributeLookup {
		attrs = append(attrs, path)
	}
	for _, cluster := range d.featureClusters {
		for _, endpoint := range d.endpointsByCluster[cluster] {
			attrs = append(attrs, matterim.AttributePath{Endpoint: endpoint, Cluster: cluster, Attribute: cache.FeatureMapAttributeID})
		}
	}
	events := make([]matterim.EventPath, 0, len(d.eventLookup))
	for path := range d.eventLookup {
		events = append(events, path)
	}
	return attrs, events
}

// GetCachedAttributeData synchronously reads whatever is cached for path.
// It never triggers a device round trip.
func (d *MatterDevice) GetCachedAttributeData(path matterim.AttributePath) ([]byte, bool) {
	if d.dataCache == nil {
		return nil, false
	}
	return d.dataCache.GetAttributeData(path)
}

// BindResourceReadInfo registers uri's attribute-backed read carrier.
func (d *MatterDevice) BindResourceReadInfo(uri string, attr sbmd.Attribute, endpoint matterim.EndpointID) error {
	path := matterim.AttributePath{Endpoint: endpoint, Cluster: matterim.ClusterID(attr.ClusterID), Attribute: matterim.AttributeID(attr.AttributeID)}
	binding := resourceBinding{kind: bindAttribute, uri: uri, attrPath: path, attr: attr}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.resourceReadBindings[uri] = binding
	d.readableAttributeLookup[path] = binding
	d.NoteEndpointLocked(matterim.ClusterID(attr.ClusterID), endpoint)
	return nil
}

// NoteEndpointLocked is NoteEndpoint for callers already holding d.mu.
func (d *MatterDevice) NoteEndpointLocked(cluster matterim.ClusterID, endpoint matterim.EndpointID) {
	for _, e := range d.endpointsByCluster[cluster] {
		if e == endpoint {
			return
		}
	}
	d.endpointsByCluster[cluster] = append(d.endpointsByCluster[cluster], endpoint)
}

// BindWriteCommandInfo registers uri's single-command write carrier.
func (d *MatterDevice) BindWriteCommandInfo(uri string, cmd sbmd.Command, endpoint matterim.EndpointID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resourceWriteBindings[uri] = resourceBinding{kind: bindCommand, uri: uri, command: cmd}
	d.NoteEndpointLocked(matterim.ClusterID(cmd.ClusterID), endpoint)
	return nil
}

// BindWriteCommandSetInfo registers uri's multi-command write carrier; the
// script chooses among commands at write time via MapWriteCommand.
func (d *MatterDevice) BindWriteCommandSetInfo(uri string, commands []sbmd.Command, endpoint matterim.EndpointID) error {
	if len(commands) == 0 {
		return fmt.Errorf("sbmd: %s: empty write command set", uri)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resourceWriteBindings[uri] = resourceBinding{kind: bindCommandSet, uri: uri, commands: commands}
	for _, cmd := range commands {
		d.NoteEndpointLocked(matterim.ClusterID(cmd.ClusterID), endpoint)
	}
	return nil
}

// BindExecuteInfo registers uri's execute (invoke) carrier.
func (d *MatterDevice) BindExecuteInfo(uri string, cmd sbmd.Command, endpoint matterim.EndpointID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resourceExecuteBindings[uri] = resourceBinding{kind: bindCommand, uri: uri, command: cmd}
	d.NoteEndpointLocked(matterim.ClusterID(cmd.ClusterID), endpoint)
	return nil
}

// BindResourceEventInfo registers uri's event-read carrier.
func (d *MatterDevice) BindResourceEventInfo(uri string, event sbmd.Event, endpoint matterim.EndpointID) error {
	path := matterim.EventPath{Endpoint: endpoint, Cluster: matterim.ClusterID(event.ClusterID), Event: matterim.EventID(event.EventID)}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventLookup[path] = eventBinding{uri: uri, event: event, path: path}
	d.NoteEndpointLocked(matterim.ClusterID(event.ClusterID), endpoint)
	return nil
}

// HandleResourceRead maps a resource's cached attribute data to a Barton
// string value. It is always synchronous: no device round trip is made.
func (d *MatterDevice) HandleResourceRead(uri string) (string, error) {
	d.mu.RLock()
	binding, ok := d.resourceReadBindings[uri]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("sbmd: %s: no read binding", uri)
	}
	if d.script == nil {
		return "", fmt.Errorf("sbmd: %s: device has no script engine", uri)
	}
	payload, ok := d.GetCachedAttributeData(binding.attrPath)
	if !ok {
		return "", fmt.Errorf("sbmd: %s: attribute not yet cached", uri)
	}
	return d.script.MapAttributeRead(binding.attr, tlvReaderOf(payload))
}

// HandleResourceWrite maps and dispatches a resource write through exch,
// targeting node.
func (d *MatterDevice) HandleResourceWrite(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, uri, newValue string) error {
	d.mu.RLock()
	binding, ok := d.resourceWriteBindings[uri]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("sbmd: %s: no write binding", uri)
	}
	if d.script == nil {
		return fmt.Errorf("sbmd: %s: device has no script engine", uri)
	}

	var cmd sbmd.Command
	var payload []byte
	var err error
	switch binding.kind {
	case bindCommand:
		cmd = binding.command
		_, payload, err = d.script.MapWriteCommand([]sbmd.Command{cmd}, newValue)
	case bindCommandSet:
		var name string
		name, payload, err = d.script.MapWriteCommand(binding.commands, newValue)
		if err == nil {
			cmd, err = findCommandByName(binding.commands, name)
		}
	default:
		return fmt.Errorf("sbmd: %s: write binding has no dispatchable command carrier", uri)
	}
	if err != nil {
		return fmt.Errorf("sbmd: %s: map write: %w", uri, err)
	}

	endpoint, ok := d.GetEndpointForCluster(matterim.ClusterID(cmd.ClusterID))
	if !ok {
		return fmt.Errorf("sbmd: %s: no endpoint hosts cluster 0x%x", uri, cmd.ClusterID)
	}
	return d.sendCommand(ctx, exch, node, endpoint, cmd, payload, nil)
}

// HandleResourceExecute maps and dispatches a resource command execution,
// returning the mapped response string (empty if the command has no
// response mapper).
func (d *MatterDevice) HandleResourceExecute(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, uri string, args []string) (string, error) {
	d.mu.RLock()
	binding, ok := d.resourceExecuteBindings[uri]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("sbmd: %s: no execute binding", uri)
	}
	if d.script == nil {
		return "", fmt.Errorf("sbmd: %s: device has no script engine", uri)
	}
	if binding.kind != bindCommand {
		return "", fmt.Errorf("sbmd: %s: execute binding has no command carrier", uri)
	}

	payload, err := d.script.MapCommandExecute(binding.command, args)
	if err != nil {
		return "", fmt.Errorf("sbmd: %s: map execute: %w", uri, err)
	}
	endpoint, ok := d.GetEndpointForCluster(matterim.ClusterID(binding.command.ClusterID))
	if !ok {
		return "", fmt.Errorf("sbmd: %s: no endpoint hosts cluster 0x%x", uri, binding.command.ClusterID)
	}

	var response string
	respErr := make(chan error, 1)
	err = d.sendCommand(ctx, exch, node, endpoint, binding.command, payload, func(respPayload []byte, cmdErr error) {
		if cmdErr != nil {
			respErr <- cmdErr
			return
		}
		if respPayload != nil {
			response, cmdErr = d.script.MapCommandExecuteResponse(binding.command, tlvReaderOf(respPayload))
		}
		respErr <- cmdErr
	})
	if err != nil {
		return "", err
	}
	if cmdErr := <-respErr; cmdErr != nil {
		return "", fmt.Errorf("sbmd: %s: execute: %w", uri, cmdErr)
	}
	return response, nil
}

// OnAttributeChanged implements cache.ChangeCallback: every freshly cached
// attribute report that maps to a bound resource is run through
// MapAttributeRead and delivered to the device's ResourceSink, the same
// O(1) lookup-then-map path CacheCallback::OnAttributeChanged takes in the
// original driver.
func (d *MatterDevice) OnAttributeChanged(path matterim.AttributePath, payload []byte) {
	d.mu.RLock()
	binding, ok := d.readableAttributeLookup[path]
	s := d.script
	sink := d.sink
	d.mu.RUnlock()
	if !ok || s == nil {
		return
	}

	value, err := s.MapAttributeRead(binding.attr, tlvReaderOf(payload))
	if err != nil {
		if common.Log != nil {
			common.Log.Errorf("device: %s: mapping attribute report for %s: %v", d.deviceID, binding.uri, err)
		}
		value = ""
	}
	if sink != nil {
		sink.OnResourceEvent(d.deviceID, binding.uri, value)
	}
}

// OnEventReceived looks up the event binding for path and, if bound, maps
// the event's TLV payload to a resource value via the device's script.
func (d *MatterDevice) OnEventReceived(path matterim.EventPath, payload []byte) (uri string, value string, ok bool, err error) {
	d.mu.RLock()
	binding, bound := d.eventLookup[path]
	d.mu.RUnlock()
	if !bound || d.script == nil {
		return "", "", false, nil
	}
	value, err = d.script.MapEventRead(binding.event, tlvReaderOf(payload))
	return binding.uri, value, true, err
}

// UpdateCachedFeatureMaps pulls the cached FeatureMap attribute for each of
// the device's feature clusters and installs the resulting cluster->value
// table into the script, matching MatterDevice::UpdateCachedFeatureMaps /
// CacheCallback::OnSubscriptionEstablished: feature maps come from whatever
// the initial subscription priming reports already cached, not a fresh
// round-trip read.
func (d *MatterDevice) UpdateCachedFeatureMaps() {
	d.mu.RLock()
	s := d.script
	clusters := append([]matterim.ClusterID(nil), d.featureClusters...)
	d.mu.RUnlock()
	if s == nil {
		return
	}

	featureMaps := make(map[uint32]uint32, len(clusters))
	for _, cluster := range clusters {
		endpoint, ok := d.GetEndpointForCluster(cluster)
		if !ok {
			continue
		}
		featureMap, ok := d.dataCache.GetFeatureMap(endpoint, cluster, decodeFeatureMap)
		if !ok {
			continue
		}
		featureMaps[uint32(cluster)] = featureMap
	}

	s.SetClusterFeatureMaps(featureMaps)
	if common.Log != nil {
		common.Log.Debugf("device: %s: updated cached feature maps (%d clusters)", d.deviceID, len(featureMaps))
	}
}

func decodeFeatureMap(payload []byte) (uint32, error) {
	reader := tlvReaderOf(payload)
	if _, err := reader.Next(); err != nil {
		return 0, err
	}
	v, err := reader.GetUint()
	return uint32(v), err
}

func findCommandByName(commands []sbmd.Command, name string) (sbmd.Command, error) {
	for _, c := range commands {
		if c.Name == name {
			return c, nil
		}
	}
	return sbmd.Command{}, fmt.Errorf("sbmd: unknown command %q in write command set", name)
}
