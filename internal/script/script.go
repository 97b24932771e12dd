// Package script implements the SbmdScript mapping trait: the embedded
// scripted layer that translates between Matter TLV wire values and the
// plain strings a device-service resource deals in. The trait is
// engine-agnostic by design (the original driver could swap its QuickJS
// engine for another without touching callers); this package provides one
// implementation, GojaScript, over github.com/dop251/goja.
package script

import (
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/tlv"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// SbmdScript maps Barton resource strings to and from Matter attribute,
// command, and event payloads. Implementations may use any scripting
// engine; callers only depend on this interface. One instance serves
// exactly one device — there is no cross-device script state.
type SbmdScript interface {
	AddAttributeReadMapper(attr sbmd.Attribute, script string) error
	AddAttributeWriteMapper(attr sbmd.Attribute, script string) error
	AddCommandExecuteMapper(cmd sbmd.Command, script string) error
	AddCommandExecuteResponseMapper(cmd sbmd.Command, script string) error
	AddCommandsWriteMapper(commands []sbmd.Command, script string) error
	AddEventReadMapper(event sbmd.Event, script string) error

	// MapAttributeRead converts the TLV-decoded attribute value at reader
	// into a Barton resource string.
	MapAttributeRead(attr sbmd.Attribute, reader *tlv.Reader) (string, error)

	// MapAttributeWrite converts a Barton resource string into an
	// encoded Matter attribute value.
	MapAttributeWrite(attr sbmd.Attribute, inValue string) ([]byte, error)

	// MapCommandExecute converts ordered Barton argument strings into an
	// encoded Matter command input payload.
	MapCommandExecute(cmd sbmd.Command, argumentValues []string) ([]byte, error)

	// MapCommandExecuteResponse converts a command response's TLV
	// payload into a Barton resource string.
	MapCommandExecuteResponse(cmd sbmd.Command, reader *tlv.Reader) (string, error)

	// MapWriteCommand converts a Barton write value into a command
	// selection (auto-selected when len(availableCommands)==1) and
	// encoded argument payload.
	MapWriteCommand(availableCommands []sbmd.Command, inValue string) (selectedCommandName string, payload []byte, err error)

	// MapEventRead converts an event's TLV payload into a Barton
	// resource string.
	MapEventRead(event sbmd.Event, reader *tlv.Reader) (string, error)

	// SetClusterFeatureMaps installs the cluster ID -> FeatureMap value
	// table mapper scripts consult for sbmdReadArgs.featureMap, replacing
	// whatever table was previously installed.
	SetClusterFeatureMaps(featureMaps map[uint32]uint32)
}
