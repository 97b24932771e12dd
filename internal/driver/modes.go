package driver

// ResourceMode mirrors the device-service resourceModes.h bitmask a
// registered resource carries: what operations are legal against it and
// how it participates in dynamic/lazy/event/sensitive handling.
type ResourceMode uint8

const (
	ResourceModeReadable       ResourceMode = 1 << 0
	ResourceModeWriteable      ResourceMode = 1 << 1
	ResourceModeExecutable     ResourceMode = 1 << 2
	ResourceModeDynamic        ResourceMode = 1 << 3
	ResourceModeDynamicCapable ResourceMode = 1 << 4
	ResourceModeEmitEvents     ResourceMode = 1 << 5
	ResourceModeLazySaveNext   ResourceMode = 1 << 6
	ResourceModeSensitive      ResourceMode = 1 << 7
)

// CachingPolicy says whether a resource's value is always kept current in
// the device-service resource cache (because a subscription keeps it
// fresh) or must be re-read on every access.
type CachingPolicy int

const (
	CachingPolicyNever CachingPolicy = iota
	CachingPolicyAlways
)

// ConvertModesToBitmask translates an SBMD resource's declared mode
// strings into the resource-mode bitmask, warning on (and ignoring) any
// name it doesn't recognize — matching
// SpecBasedMatterDeviceDriver::ConvertModesToBitmask.
func ConvertModesToBitmask(modes []string, warn func(mode string)) ResourceMode {
	var bitmask ResourceMode
	for _, mode := range modes {
		switch mode {
		case "read":
			bitmask |= ResourceModeReadable
		case "write":
			bitmask |= ResourceModeWriteable
		case "execute":
			bitmask |= ResourceModeExecutable
		case "dynamic":
			bitmask |= ResourceModeDynamic | ResourceModeDynamicCapable
		case "emitEvents":
			bitmask |= ResourceModeEmitEvents
		case "lazySaveNext":
			bitmask |= ResourceModeLazySaveNext
		case "sensitive":
			bitmask |= ResourceModeSensitive
		default:
			if warn != nil {
				warn(mode)
			}
		}
	}
	return bitmask
}
