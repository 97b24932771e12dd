package sbmd

import (
	"testing"

	"github.com/stretchr/testify/require"
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
reporting:
  minSecs: 1
  maxSecs: 60
resources:
  - id: isOn
    type: boolean
    modes: [read, write, dynamic]
    mapper:
      read:
        attribute:
          clusterId: "0x0006"
          attributeId: "0x0000"
          name: OnOff
          type: bool
        script: "return { output: sbmdReadArgs.input ? 'true' : 'false' };"
      write:
        script: "return { output: null, command: 'On' };"
        commands:
          - clusterId: "0x0006"
            commandId: "0x01"
            name: On
endpoints:
  - id: "1"
    profile: onoff-light
    profileVersion: 1
    resources:
      - id: level
        type: number
        modes: [write]
        mapper:
          write:
            commands:
              - clusterId: "0x0008"
                commandId: "0x00"
                name: MoveToLevel
                args:
                  - name: level
                    type: uint8
              - clusterId: "0x0008"
                commandId: "0x04"
                name: MoveToLevelWithOnOff
                args:
                  - name: level
                    type: uint8
            script: "return { output: String(sbmdReadArgs.input), command: 'MoveToLevel' };"
`

func TestParseStringOnOffSpec(t *testing.T) {
	spec, err := ParseString(onOffSpec)
	require.NoError(t, err)
	require.Equal(t, "on-off-light", spec.Name)
	require.Equal(t, "light", spec.BartonMeta.DeviceClass)
	require.Equal(t, []uint16{0x0100}, spec.MatterMeta.DeviceTypes)
	require.EqualValues(t, 1, spec.Reporting.MinSecs)
	require.EqualValues(t, 60, spec.Reporting.MaxSecs)

	require.Len(t, spec.Resources, 1)
	isOn := spec.Resources[0]
	require.Equal(t, "isOn", isOn.ID)
	require.NotNil(t, isOn.Mapper.Read)
	require.NotNil(t, isOn.Mapper.Read.Attribute)
	require.EqualValues(t, 0x0006, isOn.Mapper.Read.Attribute.ClusterID)
	require.EqualValues(t, 0x0000, isOn.Mapper.Read.Attribute.AttributeID)
	require.NotNil(t, isOn.Mapper.Write)
	require.NotEmpty(t, isOn.Mapper.Write.Script)

	require.Len(t, spec.Endpoints, 1)
	level := spec.Endpoints[0].Resources[0]
	require.Equal(t, "1/level", level.URI())
	require.Len(t, level.Mapper.Write.Commands, 2)
}

func TestParseStringParsesFeatureClusters(t *testing.T) {
	yamlDoc := `
name: dimmable-light
bartonMeta:
  deviceClass: light
matterMeta:
  deviceTypes: ["0x0101"]
  featureClusters: ["0x0008", "0x0300"]
`
	spec, err := ParseString(yamlDoc)
	require.NoError(t, err)
	require.Equal(t, []uint32{0x0008, 0x0300}, spec.MatterMeta.FeatureClusters)
}

func TestParseStringRejectsMissingName(t *testing.T) {
	yamlDoc := `
bartonMeta:
  deviceClass: light
matterMeta:
  deviceTypes: ["0x0100"]
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}

func TestParseStringRejectsMissingDeviceClass(t *testing.T) {
	yamlDoc := `
name: on-off-light
matterMeta:
  deviceTypes: ["0x0100"]
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}

func TestParseStringRejectsMissingDeviceTypes(t *testing.T) {
	yamlDoc := `
name: on-off-light
bartonMeta:
  deviceClass: light
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}

func TestParseHexOrDecimal(t *testing.T) {
	cases := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0x10", 16, false},
		{"0X10", 16, false},
		{"16", 16, false},
		{"", 0, false},
		{"0xZZ", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := parseHexOrDecimal(c.in)
		if c.wantErr {
			require.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestValidateMapperRejectsReadCommand(t *testing.T) {
	yamlDoc := `
resources:
  - id: bad
    modes: [read]
    mapper:
      read:
        command:
          clusterId: "0x0006"
          commandId: "0x00"
          name: Toggle
        script: "return { output: 'x' };"
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}

func TestValidateMapperRejectsMissingScript(t *testing.T) {
	yamlDoc := `
resources:
  - id: bad
    modes: [read]
    mapper:
      read:
        attribute:
          clusterId: "0x0006"
          attributeId: "0x0000"
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}

func TestParseCommandRejectsOversizedTimedInvokeTimeout(t *testing.T) {
	yamlDoc := `
resources:
  - id: bad
    modes: [execute]
    mapper:
      execute:
        command:
          clusterId: "0x0006"
          commandId: "0x00"
          name: Toggle
          timedInvokeTimeoutMs: 70000
        script: "return { output: null };"
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}

func TestParseMapperRejectsMultipleWriteCarriers(t *testing.T) {
	yamlDoc := `
resources:
  - id: bad
    modes: [write]
    mapper:
      write:
        attribute:
          clusterId: "0x0006"
          attributeId: "0x0000"
        command:
          clusterId: "0x0006"
          commandId: "0x00"
          name: Toggle
        script: "return { output: null };"
`
	_, err := ParseString(yamlDoc)
	require.Error(t, err)
}
