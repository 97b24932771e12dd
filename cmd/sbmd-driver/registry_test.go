package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driver"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

const onOffSpec = `
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

func TestDriverRegistryRegisterAndSummarize(t *testing.T) {
	spec, err := sbmd.ParseString(onOffSpec)
	require.NoError(t, err)
	d := driver.NewSpecBasedMatterDeviceDriver(spec)

	r := newDriverRegistry()
	require.NoError(t, r.RegisterDriver(d))
	require.Error(t, r.RegisterDriver(d), "registering the same driver twice should fail")

	summaries := r.Drivers()
	require.Len(t, summaries, 1)
	require.Equal(t, "sbmd-on-off-light", summaries[0].Name)
	require.Equal(t, 1, summaries[0].ResourceCount)
}

func TestDriverRegistryDriverByDeviceType(t *testing.T) {
	spec, err := sbmd.ParseString(onOffSpec)
	require.NoError(t, err)
	d := driver.NewSpecBasedMatterDeviceDriver(spec)

	r := newDriverRegistry()
	require.NoError(t, r.RegisterDriver(d))

	require.Same(t, d, r.driverByDeviceType(0x0100))
	require.Nil(t, r.driverByDeviceType(0x9999))
}
