// Package providers exposes the onboarding and commissioning-payload facts
// a Matter stack needs to advertise a device (vendor/product identity and
// the descriptive Basic Information fields) sourced from configuration
// rather than from attestation flash, matching
// BartonDeviceInstanceInfoProvider's role over chip's
// DeviceInstanceInfoProvider interface.
package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
)

// ErrPropertyNotFound mirrors CHIP_DEVICE_ERROR_CONFIG_NOT_FOUND:
// configuration.toml does not set the property. Accessors for required and
// optional properties alike return it.
var ErrPropertyNotFound = errors.New("sbmd: instance info property not configured")

// InstanceInfoProvider answers the identity questions a commissioner asks
// before and during pairing, backed entirely by common.InstanceInfoConfig.
type InstanceInfoProvider struct {
	cfg *common.InstanceInfoConfig
}

// NewInstanceInfoProvider wraps cfg. A nil cfg behaves as an all-empty
// configuration: every required-property accessor returns
// ErrPropertyNotFound.
func NewInstanceInfoProvider(cfg *common.InstanceInfoConfig) *InstanceInfoProvider {
	if cfg == nil {
		cfg = &common.InstanceInfoConfig{}
	}
	return &InstanceInfoProvider{cfg: cfg}
}

func (p *InstanceInfoProvider) requiredString(v string) (string, error) {
	if v == "" {
		return "", ErrPropertyNotFound
	}
	return v, nil
}

func (p *InstanceInfoProvider) requiredUint16(v uint16) (uint16, error) {
	if v == 0 {
		return 0, ErrPropertyNotFound
	}
	return v, nil
}

// VendorName returns the configured vendor name, required for onboarding.
func (p *InstanceInfoProvider) VendorName() (string, error) {
	return p.requiredString(p.cfg.VendorName)
}

// VendorID returns the configured Matter vendor ID, required for onboarding.
func (p *InstanceInfoProvider) VendorID() (uint16, error) {
	return p.requiredUint16(p.cfg.VendorID)
}

// ProductName returns the configured product name, required for onboarding.
func (p *InstanceInfoProvider) ProductName() (string, error) {
	return p.requiredString(p.cfg.ProductName)
}

// ProductID returns the configured Matter product ID, required for onboarding.
func (p *InstanceInfoProvider) ProductID() (uint16, error) {
	return p.requiredUint16(p.cfg.ProductID)
}

// HardwareVersion returns the configured hardware version, required for
// onboarding.
func (p *InstanceInfoProvider) HardwareVersion() (uint16, error) {
	return p.requiredUint16(p.cfg.HardwareVersion)
}

// HardwareVersionString returns the configured hardware version string,
// required for onboarding.
func (p *InstanceInfoProvider) HardwareVersionString() (string, error) {
	return p.requiredString(p.cfg.HardwareVersionString)
}

// SoftwareVersionString returns the configured software version string,
// or the driver's own build version (common.ServiceVersion) when none is
// configured. ValidateProperties does not check it.
func (p *InstanceInfoProvider) SoftwareVersionString() (string, error) {
	if p.cfg.SoftwareVersionString == "" {
		return common.ServiceVersion, nil
	}
	return p.cfg.SoftwareVersionString, nil
}

// PartNumber returns the configured part number. It is an optional
// property: an unset value is reported through the returned error rather
// than treated as a validation failure.
func (p *InstanceInfoProvider) PartNumber() (string, error) {
	return p.requiredString(p.cfg.PartNumber)
}

// ProductURL returns the configured product URL, an optional property.
func (p *InstanceInfoProvider) ProductURL() (string, error) {
	return p.requiredString(p.cfg.ProductURL)
}

// ProductLabel returns the configured product label, an optional property.
func (p *InstanceInfoProvider) ProductLabel() (string, error) {
	return p.requiredString(p.cfg.ProductLabel)
}

// SerialNumber returns the configured serial number, an optional property.
func (p *InstanceInfoProvider) SerialNumber() (string, error) {
	return p.requiredString(p.cfg.SerialNumber)
}

// ManufacturingDate parses the configured "YYYY-MM-DD" manufacturing date,
// an optional property.
func (p *InstanceInfoProvider) ManufacturingDate() (time.Time, error) {
	if p.cfg.ManufacturingDate == "" {
		return time.Time{}, ErrPropertyNotFound
	}
	t, err := time.Parse("2006-01-02", p.cfg.ManufacturingDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("sbmd: invalid manufacturing date %q: %w", p.cfg.ManufacturingDate, err)
	}
	return t, nil
}

// RotatingDeviceIDUniqueID returns the configured rotating device ID unique
// ID, hex-decoded. It is only consulted when rotating device IDs are
// enabled for the fabric.
func (p *InstanceInfoProvider) RotatingDeviceIDUniqueID() ([]byte, error) {
	if p.cfg.RotatingDeviceIDUniqueID == "" {
		return nil, ErrPropertyNotFound
	}
	return decodeHex(p.cfg.RotatingDeviceIDUniqueID)
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("sbmd: rotating device id unique id has odd length")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexDigit(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("sbmd: invalid hex digit %q", c)
	}
}

// ValidateProperties logs each property's availability the way
// ValidateProperties does, and reports whether every required property was
// found. Optional properties that are missing are logged but do not affect
// the result.
func (p *InstanceInfoProvider) ValidateProperties() bool {
	allRequiredAvailable := true

	logRequired := func(name string, err error) {
		if err != nil {
			if common.Log != nil {
				common.Log.Warnf("instanceinfo: %s not available (required property)", name)
			}
			allRequiredAvailable = false
			return
		}
		if common.Log != nil {
			common.Log.Infof("instanceinfo: %s configured", name)
		}
	}
	logOptional := func(name string, err error) {
		if err != nil {
			if common.Log != nil {
				common.Log.Infof("instanceinfo: %s not available (optional property)", name)
			}
			return
		}
		if common.Log != nil {
			common.Log.Infof("instanceinfo: %s configured", name)
		}
	}

	_, err := p.VendorName()
	logRequired("vendor name", err)
	_, err = p.VendorID()
	logRequired("vendor id", err)
	_, err = p.ProductName()
	logRequired("product name", err)
	_, err = p.ProductID()
	logRequired("product id", err)
	_, err = p.HardwareVersion()
	logRequired("hardware version", err)
	_, err = p.HardwareVersionString()
	logRequired("hardware version string", err)

	_, err = p.PartNumber()
	logOptional("part number", err)
	_, err = p.ProductURL()
	logOptional("product url", err)
	_, err = p.ProductLabel()
	logOptional("product label", err)
	_, err = p.SerialNumber()
	logOptional("serial number", err)
	_, err = p.ManufacturingDate()
	logOptional("manufacturing date", err)

	return allRequiredAvailable
}
