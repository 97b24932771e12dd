// Package driver implements SpecBasedMatterDeviceDriver: the generic
// device driver that configures itself entirely from a parsed SBMD spec,
// wiring resource bindings and mapper scripts onto a MatterDevice rather
// than hand-writing per-device-type logic.
package driver

import (
	"fmt"
	"strconv"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/cache"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/device"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/script"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// ResourceDescriptor is everything DoRegisterResources needs to create a
// device-service resource for one SBMD resource.
type ResourceDescriptor struct {
	URI           string
	Type          string
	EndpointID    string // "" for device-level resources
	Mode          ResourceMode
	CachingPolicy CachingPolicy
}

// SpecBasedMatterDeviceDriver is a MatterDeviceDriver configured entirely
// from a parsed SBMD spec: its claimed device types, its resource
// bindings, and its per-device script mappers all come from spec rather
// than from hand-written per-device-type logic.
type SpecBasedMatterDeviceDriver struct {
	spec *sbmd.Spec
	name string

	devices map[string]*device.MatterDevice
}

// NewSpecBasedMatterDeviceDriver constructs a driver claiming every
// device type spec.MatterMeta.DeviceTypes lists.
func NewSpecBasedMatterDeviceDriver(spec *sbmd.Spec) *SpecBasedMatterDeviceDriver {
	return &SpecBasedMatterDeviceDriver{
		spec:    spec,
		name:    common.BaseDriverName + spec.Name,
		devices: map[string]*device.MatterDevice{},
	}
}

// Name returns the driver's registered name, "sbmd-<spec name>".
func (d *SpecBasedMatterDeviceDriver) Name() string { return d.name }

// SupportedDeviceTypes returns the Matter device types this driver claims.
func (d *SpecBasedMatterDeviceDriver) SupportedDeviceTypes() []uint16 {
	return d.spec.MatterMeta.DeviceTypes
}

// DesiredSubscriptionInterval returns the spec's requested [min,max]
// reporting interval as parsed. subscription.NegotiateInterval derives the
// interval a device is subscribed with from the comm-fail timeout alone
// and does not take this value into account.
func (d *SpecBasedMatterDeviceDriver) DesiredSubscriptionInterval() sbmd.Reporting {
	return d.spec.Reporting
}

// DescribeResources enumerates every resource DoRegisterResources would
// create, with its computed mode bitmask and caching policy.
func (d *SpecBasedMatterDeviceDriver) DescribeResources() []ResourceDescriptor {
	all := d.spec.AllResources()
	out := make([]ResourceDescriptor, 0, len(all))
	for _, r := range all {
		out = append(out, describeResource(r))
	}
	return out
}

func describeResource(r *sbmd.Resource) ResourceDescriptor {
	mode := ConvertModesToBitmask(r.Modes, func(mode string) {
		if common.Log != nil {
			common.Log.Warnf("sbmd: resource %s: unknown mode %q", r.ID, mode)
		}
	})
	if r.Mapper.Execute.HasCarrier() {
		mode |= ResourceModeExecutable
	}

	caching := CachingPolicyNever
	if r.Mapper.Read.IsAttribute() {
		caching = CachingPolicyAlways
	}

	return ResourceDescriptor{
		URI:           r.URI(),
		Type:          r.Type,
		EndpointID:    r.ResourceEndpointID,
		Mode:          mode,
		CachingPolicy: caching,
	}
}

// AddDevice creates this device's script engine, registers every mapper
// script the spec declares, binds every resource to its dispatch target,
// and remembers the device for future Read/Write/ExecuteResource calls.
// resolveEndpoint turns an SBMD endpoint ID string into the Matter
// EndpointID it was commissioned onto.
func (d *SpecBasedMatterDeviceDriver) AddDevice(deviceID string, dataCache *cache.DeviceDataCache, resolveEndpoint func(resourceEndpointID string) (matterim.EndpointID, error)) (*device.MatterDevice, error) {
	s := script.NewGojaScript(deviceID)
	for _, r := range d.spec.AllResources() {
		if err := addResourceMappers(s, r); err != nil {
			return nil, fmt.Errorf("sbmd: device %s: resource %s: %w", deviceID, r.ID, err)
		}
	}

	dev := device.NewMatterDevice(deviceID, dataCache)
	dev.SetScript(s)
	dev.SetFeatureClusters(d.spec.MatterMeta.FeatureClusters)
	for _, r := range d.spec.AllResources() {
		endpoint, err := resolveEndpoint(r.ResourceEndpointID)
		if err != nil {
			return nil, fmt.Errorf("sbmd: device %s: resource %s: resolving endpoint: %w", deviceID, r.ID, err)
		}
		if err := bindResource(dev, r, endpoint); err != nil {
			return nil, fmt.Errorf("sbmd: device %s: resource %s: binding: %w", deviceID, r.ID, err)
		}
	}

	d.devices[deviceID] = dev
	return dev, nil
}

// GetDevice returns a previously added device, or nil if unknown.
func (d *SpecBasedMatterDeviceDriver) GetDevice(deviceID string) *device.MatterDevice {
	return d.devices[deviceID]
}

// RemoveDevice forgets a device's runtime state.
func (d *SpecBasedMatterDeviceDriver) RemoveDevice(deviceID string) {
	delete(d.devices, deviceID)
}

// addResourceMappers registers resource's read/write/execute/event
// mapper scripts with s, matching
// SpecBasedMatterDeviceDriver::AddResourceMappers. An attribute-backed
// write mapper is still registered (for parity with specs written before
// the command-only write behavior was settled) even though no runtime
// binding will ever invoke it — see bindResource.
func addResourceMappers(s *script.GojaScript, r *sbmd.Resource) error {
	if read := r.Mapper.Read; read.HasCarrier() && read.Script != "" {
		switch {
		case read.Attribute != nil:
			if err := s.AddAttributeReadMapper(*read.Attribute, read.Script); err != nil {
				return err
			}
		case read.Command != nil:
			if common.Log != nil {
				common.Log.Errorf("sbmd: resource %s: read mapper with command not yet supported", r.ID)
			}
		}
	}

	if write := r.Mapper.Write; write.HasCarrier() && write.Script != "" {
		switch {
		case write.Attribute != nil:
			if err := s.AddAttributeWriteMapper(*write.Attribute, write.Script); err != nil {
				return err
			}
		case write.Command != nil:
			if err := s.AddCommandsWriteMapper([]sbmd.Command{*write.Command}, write.Script); err != nil {
				return err
			}
		case len(write.Commands) > 0:
			if err := s.AddCommandsWriteMapper(write.Commands, write.Script); err != nil {
				return err
			}
		}
	}

	if exec := r.Mapper.Execute; exec.HasCarrier() && exec.Script != "" {
		switch {
		case exec.Attribute != nil:
			if common.Log != nil {
				common.Log.Errorf("sbmd: resource %s: execute mapper with attribute not yet supported", r.ID)
			}
		case exec.Command != nil:
			if err := s.AddCommandExecuteMapper(*exec.Command, exec.Script); err != nil {
				return err
			}
			if exec.ResponseScript != "" {
				if err := s.AddCommandExecuteResponseMapper(*exec.Command, exec.ResponseScript); err != nil {
					return err
				}
			}
		}
	}

	if ev := r.Mapper.Event; ev != nil && ev.Event != nil && ev.Script != "" {
		if err := s.AddEventReadMapper(*ev.Event, ev.Script); err != nil {
			return err
		}
	}

	return nil
}

// bindResource wires resource's dispatchable carriers into dev. Per the
// spec's write-mapper resolution, an attribute-backed write carrier is
// parsed and mapper-registered but never bound here — only command and
// command-set write carriers are dispatchable at runtime.
func bindResource(dev *device.MatterDevice, r *sbmd.Resource, endpoint matterim.EndpointID) error {
	uri := r.URI()

	if read := r.Mapper.Read; read.IsAttribute() {
		if err := dev.BindResourceReadInfo(uri, *read.Attribute, endpoint); err != nil {
			return err
		}
	}

	if write := r.Mapper.Write; write.HasCarrier() {
		switch {
		case write.Command != nil:
			if err := dev.BindWriteCommandInfo(uri, *write.Command, endpoint); err != nil {
				return err
			}
		case len(write.Commands) > 0:
			if err := dev.BindWriteCommandSetInfo(uri, write.Commands, endpoint); err != nil {
				return err
			}
		}
	}

	if exec := r.Mapper.Execute; exec.HasCarrier() && exec.Command != nil {
		if err := dev.BindExecuteInfo(uri, *exec.Command, endpoint); err != nil {
			return err
		}
	}

	if ev := r.Mapper.Event; ev != nil && ev.Event != nil {
		if err := dev.BindResourceEventInfo(uri, *ev.Event, endpoint); err != nil {
			return err
		}
	}

	return nil
}

// ParseEndpointID parses an SBMD endpoint ID string ("0x1", "1") into a
// Matter EndpointID, the default resolveEndpoint strategy for specs whose
// endpoint IDs are already literal Matter endpoint numbers.
func ParseEndpointID(resourceEndpointID string) (matterim.EndpointID, error) {
	if resourceEndpointID == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(resourceEndpointID, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("sbmd: invalid endpoint id %q: %w", resourceEndpointID, err)
	}
	return matterim.EndpointID(v), nil
}
