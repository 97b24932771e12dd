// Package driverfactory discovers .sbmd bundles in a configured directory
// and registers one SpecBasedMatterDeviceDriver per parsed spec, matching
// SbmdFactory::RegisterDrivers: a single bad file is logged and skipped
// rather than aborting the whole directory.
package driverfactory

import (
	"os"
	"path/filepath"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driver"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// Registry is the set of driver names a registration pass has produced,
// standing in for MatterDriverFactory::RegisterDriver's target.
type Registry interface {
	RegisterDriver(d *driver.SpecBasedMatterDeviceDriver) error
}

// RegisterDrivers parses every ".sbmd" file directly under sbmdDir and
// registers a driver for each, continuing past any single file's parse or
// registration failure. It reports overall success only if sbmdDir itself
// is usable and every file in it registered cleanly.
func RegisterDrivers(sbmdDir string, registry Registry) bool {
	if sbmdDir == "" {
		if common.Log != nil {
			common.Log.Error("sbmd: directory not configured")
		}
		return false
	}

	info, err := os.Stat(sbmdDir)
	if err != nil {
		if common.Log != nil {
			common.Log.Warnf("sbmd: specs directory does not exist: %s", sbmdDir)
		}
		return false
	}
	if !info.IsDir() {
		if common.Log != nil {
			common.Log.Warnf("sbmd: specs path is not a directory: %s", sbmdDir)
		}
		return false
	}

	entries, err := os.ReadDir(sbmdDir)
	if err != nil {
		if common.Log != nil {
			common.Log.Errorf("sbmd: failed to open specs directory %s: %v", sbmdDir, err)
		}
		return false
	}

	allRegistered := true
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sbmd" {
			continue
		}
		path := filepath.Join(sbmdDir, entry.Name())

		if common.Log != nil {
			common.Log.Debugf("sbmd: loading spec: %s", path)
		}

		spec, err := sbmd.ParseFile(path)
		if err != nil {
			if common.Log != nil {
				common.Log.Errorf("sbmd: failed to parse spec %s: %v", path, err)
			}
			allRegistered = false
			continue
		}

		d := driver.NewSpecBasedMatterDeviceDriver(spec)
		if err := registry.RegisterDriver(d); err != nil {
			if common.Log != nil {
				common.Log.Errorf("sbmd: failed to register driver from %s: %v", path, err)
			}
			allRegistered = false
			continue
		}

		if common.Log != nil {
			common.Log.Infof("sbmd: registered driver: %s", entry.Name())
		}
	}

	return allRegistered
}
