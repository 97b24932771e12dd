package driverfactory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driver"
)

const validSpec = `
schemaVersion: "1.0"
driverVersion: "1.0"
name: on-off-light
scriptType: js
bartonMeta:
  deviceClass: light
  deviceClassVersion: 1
matterMeta:
  deviceTypes: ["0x0100"]
  revision: 1
resources:
  - id: isOn
    type: boolean
    modes: [read]
    mapper:
      read:
        attribute:
          clusterId: "0x0006"
          attributeId: "0x0000"
          name: OnOff
          type: bool
        script: "return { output: 'true' };"
`

type fakeRegistry struct {
	registered []string
}

func (r *fakeRegistry) RegisterDriver(d *driver.SpecBasedMatterDeviceDriver) error {
	r.registered = append(r.registered, d.Name())
	return nil
}

func writeSpecFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRegisterDriversSkipsBadFilesButRegistersGood(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "good.sbmd", validSpec)
	writeSpecFile(t, dir, "bad.sbmd", "not: [valid yaml")
	writeSpecFile(t, dir, "ignored.txt", "irrelevant")

	reg := &fakeRegistry{}
	ok := RegisterDrivers(dir, reg)

	require.False(t, ok, "a bad file should mark the overall pass as not fully registered")
	require.Equal(t, []string{"sbmd-on-off-light"}, reg.registered)
}

func TestRegisterDriversAllGoodReturnsTrue(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "good.sbmd", validSpec)

	reg := &fakeRegistry{}
	ok := RegisterDrivers(dir, reg)
	require.True(t, ok)
	require.Len(t, reg.registered, 1)
}

func TestRegisterDriversMissingDirectoryFails(t *testing.T) {
	reg := &fakeRegistry{}
	ok := RegisterDrivers(filepath.Join(t.TempDir(), "does-not-exist"), reg)
	require.False(t, ok)
}

func TestRegisterDriversEmptyPathFails(t *testing.T) {
	reg := &fakeRegistry{}
	require.False(t, RegisterDrivers("", reg))
}
