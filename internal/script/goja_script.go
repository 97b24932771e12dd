package script

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/tlv"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// matterTypeToTLVKind maps Barton type strings onto the wire TLV element
// kind used to encode/decode them, matching QuickJsScript's
// matterTypeToJsonTlvType table.
var matterTypeToTLVKind = map[string]tlv.Type{
	"bool": tlv.TypeBool, "boolean": tlv.TypeBool,

	"uint8": tlv.TypeUint, "uint16": tlv.TypeUint, "uint32": tlv.TypeUint, "uint64": tlv.TypeUint,
	"enum8": tlv.TypeUint, "enum16": tlv.TypeUint,
	"bitmap8": tlv.TypeUint, "bitmap16": tlv.TypeUint, "bitmap32": tlv.TypeUint, "bitmap64": tlv.TypeUint,
	"percent": tlv.TypeUint, "percent100ths": tlv.TypeUint,
	"epoch-s": tlv.TypeUint, "epoch-us": tlv.TypeUint, "posix-ms": tlv.TypeUint,
	"elapsed-s": tlv.TypeUint, "utc": tlv.TypeUint,
	"fabric-idx": tlv.TypeUint, "fabric-id": tlv.TypeUint, "node-id": tlv.TypeUint,
	"vendor-id": tlv.TypeUint, "devtype-id": tlv.TypeUint, "group-id": tlv.TypeUint,
	"endpoint-no": tlv.TypeUint, "cluster-id": tlv.TypeUint, "attrib-id": tlv.TypeUint,
	"field-id": tlv.TypeUint, "event-id": tlv.TypeUint, "command-id": tlv.TypeUint,
	"action-id": tlv.TypeUint, "trans-id": tlv.TypeUint, "data-ver": tlv.TypeUint,
	"entry-idx": tlv.TypeUint, "systime-ms": tlv.TypeUint, "systime-us": tlv.TypeUint,

	"int8": tlv.TypeInt, "int16": tlv.TypeInt, "int24": tlv.TypeInt, "int32": tlv.TypeInt,
	"int40": tlv.TypeInt, "int48": tlv.TypeInt, "int56": tlv.TypeInt, "int64": tlv.TypeInt,
	"temperature": tlv.TypeInt, "amperage-ma": tlv.TypeInt, "voltage-mv": tlv.TypeInt,
	"power-mw": tlv.TypeInt, "energy-mwh": tlv.TypeInt,

	"single": tlv.TypeFloat, "float": tlv.TypeFloat,
	"double": tlv.TypeDouble,

	"string": tlv.TypeString, "char_string": tlv.TypeString, "long_char_string": tlv.TypeString,

	"octstr": tlv.TypeBytes, "octet_string": tlv.TypeBytes, "long_octet_string": tlv.TypeBytes,
	"ipadr": tlv.TypeBytes, "ipv4adr": tlv.TypeBytes, "ipv6adr": tlv.TypeBytes, "ipv6pre": tlv.TypeBytes,
	"hwadr": tlv.TypeBytes, "semtag": tlv.TypeBytes,

	"struct": tlv.TypeStruct,
	"list":   tlv.TypeArray, "array": tlv.TypeArray,

	"null": tlv.TypeNull,
}

func tlvKindForType(bartonType string) tlv.Type {
	if k, ok := matterTypeToTLVKind[bartonType]; ok {
		return k
	}
	return tlv.TypeStruct
}

type registeredLeaf struct {
	script string
}

// GojaScript is the SbmdScript implementation backed by
// github.com/dop251/goja. One instance serves exactly one device.
// runScript holds runtimeMu for the whole of each script evaluation, since
// a goja.Runtime is not safe for concurrent use; the Add*Mapper methods,
// and the mapper-table lookups and TLV decoding in the Map* methods, run
// without it.
type GojaScript struct {
	deviceID string
	runtime  *goja.Runtime
	runtimeMu sync.Mutex

	attrReadScripts  map[string]registeredLeaf
	attrWriteScripts map[string]registeredLeaf
	cmdExecScripts   map[string]registeredLeaf
	cmdRespScripts   map[string]registeredLeaf
	writeCmdScripts  map[string]registeredLeaf
	eventScripts     map[string]registeredLeaf

	featureMapsMu sync.RWMutex
	featureMaps   map[uint32]uint32
}

// NewGojaScript constructs an interpreter for a single device.
func NewGojaScript(deviceID string) *GojaScript {
	return &GojaScript{
		deviceID:         deviceID,
		runtime:          goja.New(),
		attrReadScripts:  map[string]registeredLeaf{},
		attrWriteScripts: map[string]registeredLeaf{},
		cmdExecScripts:   map[string]registeredLeaf{},
		cmdRespScripts:   map[string]registeredLeaf{},
		writeCmdScripts:  map[string]registeredLeaf{},
		eventScripts:     map[string]registeredLeaf{},
	}
}

// SetClusterFeatureMaps installs the cluster ID -> FeatureMap value table
// whose entry for the mapped cluster is handed to attribute and command
// mapper scripts as sbmdReadArgs.featureMap.
func (g *GojaScript) SetClusterFeatureMaps(featureMaps map[uint32]uint32) {
	g.featureMapsMu.Lock()
	defer g.featureMapsMu.Unlock()
	g.featureMaps = featureMaps
}

func (g *GojaScript) featureMapFor(clusterID uint32) uint32 {
	g.featureMapsMu.RLock()
	defer g.featureMapsMu.RUnlock()
	return g.featureMaps[clusterID]
}

func attrKey(attr sbmd.Attribute) string {
	return fmt.Sprintf("%d:%d:%s:%s", attr.ClusterID, attr.AttributeID, attr.ResourceEndpointID, attr.ResourceID)
}

func cmdKey(cmd sbmd.Command) string {
	return fmt.Sprintf("%d:%d:%s:%s", cmd.ClusterID, cmd.CommandID, cmd.ResourceEndpointID, cmd.ResourceID)
}

func cmdSetKey(commands []sbmd.Command) string {
	if len(commands) == 0 {
		return ""
	}
	return cmdKey(commands[0]) + fmt.Sprintf("+%d", len(commands))
}

func eventKey(ev sbmd.Event) string {
	return fmt.Sprintf("%d:%d:%s:%s", ev.ClusterID, ev.EventID, ev.ResourceEndpointID, ev.ResourceID)
}

func (g *GojaScript) AddAttributeReadMapper(attr sbmd.Attribute, script string) error {
	g.attrReadScripts[attrKey(attr)] = registeredLeaf{script: script}
	return nil
}

func (g *GojaScript) AddAttributeWriteMapper(attr sbmd.Attribute, script string) error {
	g.attrWriteScripts[attrKey(attr)] = registeredLeaf{script: script}
	return nil
}

func (g *GojaScript) AddCommandExecuteMapper(cmd sbmd.Command, script string) error {
	g.cmdExecScripts[cmdKey(cmd)] = registeredLeaf{script: script}
	return nil
}

func (g *GojaScript) AddCommandExecuteResponseMapper(cmd sbmd.Command, script string) error {
	g.cmdRespScripts[cmdKey(cmd)] = registeredLeaf{script: script}
	return nil
}

func (g *GojaScript) AddCommandsWriteMapper(commands []sbmd.Command, script string) error {
	g.writeCmdScripts[cmdSetKey(commands)] = registeredLeaf{script: script}
	return nil
}

func (g *GojaScript) AddEventReadMapper(event sbmd.Event, script string) error {
	g.eventScripts[eventKey(event)] = registeredLeaf{script: script}
	return nil
}

// runScript wraps body in an IIFE, sets sbmdReadArgs as a global before
// evaluating, and returns the resulting object; callers extract its
// "output" field with outputField. Missing output or a thrown exception is
// always a mapping failure.
func (g *GojaScript) runScript(script string, args map[string]interface{}) (*goja.Object, error) {
	g.runtimeMu.Lock()
	defer g.runtimeMu.Unlock()

	argsObj := g.runtime.NewObject()
	for k, v := range args {
		_ = argsObj.Set(k, v)
	}
	if err := g.runtime.Set("sbmdReadArgs", argsObj); err != nil {
		return nil, errors.Wrap(err, "failed to set sbmdReadArgs global")
	}

	wrapped := "(function() { " + script + " })()"
	v, err := g.runtime.RunString(wrapped)
	if err != nil {
		return nil, errors.Wrap(err, "script evaluation failed")
	}

	obj := v.ToObject(g.runtime)
	if obj == nil {
		return nil, errors.New("script did not return an object")
	}
	return obj, nil
}

func outputField(obj *goja.Object) (goja.Value, error) {
	output := obj.Get("output")
	if output == nil || goja.IsUndefined(output) {
		return nil, errors.New("script result missing required 'output' field")
	}
	return output, nil
}

func (g *GojaScript) MapAttributeRead(attr sbmd.Attribute, reader *tlv.Reader) (string, error) {
	leaf, ok := g.attrReadScripts[attrKey(attr)]
	if !ok {
		return "", errors.Errorf("no read mapper registered for attribute %d/%d", attr.ClusterID, attr.AttributeID)
	}

	input, err := decodeToNative(reader, attr.Type)
	if err != nil {
		return "", errors.Wrap(err, "decoding attribute value")
	}

	obj, err := g.runScript(leaf.script, map[string]interface{}{
		"deviceUuid":    g.deviceID,
		"clusterId":     attr.ClusterID,
		"featureMap":    g.featureMapFor(attr.ClusterID),
		"endpointId":    attr.ResourceEndpointID,
		"attributeId":   attr.AttributeID,
		"attributeName": attr.Name,
		"input":         input,
	})
	if err != nil {
		return "", err
	}
	out, err := outputField(obj)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func (g *GojaScript) MapAttributeWrite(attr sbmd.Attribute, inValue string) ([]byte, error) {
	leaf, ok := g.attrWriteScripts[attrKey(attr)]
	if !ok {
		return nil, errors.Errorf("no write mapper registered for attribute %d/%d", attr.ClusterID, attr.AttributeID)
	}

	obj, err := g.runScript(leaf.script, map[string]interface{}{
		"deviceUuid":    g.deviceID,
		"clusterId":     attr.ClusterID,
		"featureMap":    g.featureMapFor(attr.ClusterID),
		"endpointId":    attr.ResourceEndpointID,
		"attributeId":   attr.AttributeID,
		"attributeName": attr.Name,
		"input":         inValue,
	})
	if err != nil {
		return nil, err
	}
	out, err := outputField(obj)
	if err != nil {
		return nil, err
	}
	return encodeFromNative(out.Export(), attr.Type)
}

func (g *GojaScript) MapCommandExecute(cmd sbmd.Command, argumentValues []string) ([]byte, error) {
	leaf, ok := g.cmdExecScripts[cmdKey(cmd)]
	if !ok {
		return nil, errors.Errorf("no execute mapper registered for command %d/%d", cmd.ClusterID, cmd.CommandID)
	}

	obj, err := g.runScript(leaf.script, map[string]interface{}{
		"deviceUuid":  g.deviceID,
		"clusterId":   cmd.ClusterID,
		"featureMap":  g.featureMapFor(cmd.ClusterID),
		"endpointId":  cmd.ResourceEndpointID,
		"commandId":   cmd.CommandID,
		"commandName": cmd.Name,
		"input":       argumentValues,
	})
	if err != nil {
		return nil, err
	}
	out, err := outputField(obj)
	if err != nil {
		return nil, err
	}
	return encodeCommandArgs(out.Export(), cmd.Args)
}

// MapCommandExecuteResponse runs cmd's response mapper over the reply
// payload. A command with no response mapper registered maps to "".
func (g *GojaScript) MapCommandExecuteResponse(cmd sbmd.Command, reader *tlv.Reader) (string, error) {
	leaf, ok := g.cmdRespScripts[cmdKey(cmd)]
	if !ok {
		return "", nil
	}

	input, err := decodeStructToNative(reader)
	if err != nil {
		return "", errors.Wrap(err, "decoding command response")
	}

	obj, err := g.runScript(leaf.script, map[string]interface{}{
		"deviceUuid":  g.deviceID,
		"clusterId":   cmd.ClusterID,
		"featureMap":  g.featureMapFor(cmd.ClusterID),
		"endpointId":  cmd.ResourceEndpointID,
		"commandId":   cmd.CommandID,
		"commandName": cmd.Name,
		"input":       input,
	})
	if err != nil {
		return "", err
	}
	out, err := outputField(obj)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// MapWriteCommand selects a command from availableCommands (auto-selecting
// when there is exactly one) and converts inValue into its argument
// payload, matching the command-selection rule: a single command ignores
// any "command" field in the script result; multiple commands require one
// naming an available command.
func (g *GojaScript) MapWriteCommand(availableCommands []sbmd.Command, inValue string) (string, []byte, error) {
	if len(availableCommands) == 0 {
		return "", nil, errors.New("write-command-set has no commands")
	}

	leaf, ok := g.writeCmdScripts[cmdSetKey(availableCommands)]
	if !ok {
		return "", nil, errors.New("no write mapper registered for this command set")
	}

	names := make([]string, len(availableCommands))
	for i, c := range availableCommands {
		names[i] = c.Name
	}

	obj, err := g.runScript(leaf.script, map[string]interface{}{
		"deviceUuid": g.deviceID,
		"input":      inValue,
		"commands":   names,
	})
	if err != nil {
		return "", nil, err
	}
	out, err := outputField(obj)
	if err != nil {
		return "", nil, err
	}

	var selected *sbmd.Command
	if len(availableCommands) == 1 {
		selected = &availableCommands[0]
	} else {
		commandField := obj.Get("command")
		if commandField == nil || goja.IsUndefined(commandField) {
			return "", nil, errors.New("write-command-set has multiple commands; script must select one via 'command'")
		}
		name := commandField.String()
		for i := range availableCommands {
			if availableCommands[i].Name == name {
				selected = &availableCommands[i]
				break
			}
		}
		if selected == nil {
			return "", nil, errors.Errorf("script selected unknown command '%s'", name)
		}
	}

	if goja.IsNull(out) || goja.IsUndefined(out) {
		if len(selected.Args) != 0 {
			return "", nil, errors.Errorf("command '%s' requires arguments; script output was null", selected.Name)
		}
		return selected.Name, nil, nil
	}

	payload, err := encodeCommandArgs(out.Export(), selected.Args)
	if err != nil {
		return "", nil, err
	}
	return selected.Name, payload, nil
}

func (g *GojaScript) MapEventRead(event sbmd.Event, reader *tlv.Reader) (string, error) {
	leaf, ok := g.eventScripts[eventKey(event)]
	if !ok {
		return "", errors.Errorf("no event mapper registered for event %d/%d", event.ClusterID, event.EventID)
	}

	input, err := decodeToNative(reader, event.Type)
	if err != nil {
		return "", errors.Wrap(err, "decoding event payload")
	}

	obj, err := g.runScript(leaf.script, map[string]interface{}{
		"deviceUuid": g.deviceID,
		"clusterId":  event.ClusterID,
		"endpointId": event.ResourceEndpointID,
		"eventId":    event.EventID,
		"eventName":  event.Name,
		"input":      input,
	})
	if err != nil {
		return "", err
	}
	out, err := outputField(obj)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// decodeToNative reads one TLV element per the Barton type hint and
// returns a native Go value suitable to hand a script as "input": octstr
// becomes a []int of byte values (the mirror of the encode side's
// expectation), scalars become bool/float64/string/int64/uint64 as
// appropriate.
func decodeToNative(reader *tlv.Reader, bartonType string) (interface{}, error) {
	ok, err := reader.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("no TLV data to decode")
	}

	switch tlvKindForType(bartonType) {
	case tlv.TypeBool:
		return reader.GetBool()
	case tlv.TypeUint:
		v, err := reader.GetUint()
		return v, err
	case tlv.TypeInt:
		v, err := reader.GetInt()
		return v, err
	case tlv.TypeFloat:
		v, err := reader.GetFloat32()
		return float64(v), err
	case tlv.TypeDouble:
		return reader.GetFloat64()
	case tlv.TypeString:
		return reader.GetString()
	case tlv.TypeBytes:
		b, err := reader.GetBytes()
		if err != nil {
			return nil, err
		}
		out := make([]int, len(b))
		for i, by := range b {
			out[i] = int(by)
		}
		return out, nil
	case tlv.TypeNull:
		return nil, nil
	default:
		return decodeCurrentToNative(reader)
	}
}

// decodeStructToNative is a best-effort decode of a struct/array container
// into a slice of its members' values for command-response scripts that don't carry a single
// scalar Barton type hint. Unlike decodeToNative it advances the reader
// itself; callers must not have called reader.Next() for this element yet.
func decodeStructToNative(reader *tlv.Reader) (interface{}, error) {
	ok, err := reader.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("no TLV data to decode")
	}
	return decodeCurrentToNative(reader)
}

// decodeCurrentToNative decodes the element the reader is already
// positioned on (reader.Next() has been called), recursing into nested
// struct/array containers without re-consuming the outer element.
func decodeCurrentToNative(reader *tlv.Reader) (interface{}, error) {
	switch reader.Type() {
	case tlv.TypeStruct, tlv.TypeArray:
		if err := reader.EnterContainer(); err != nil {
			return nil, err
		}
		var items []interface{}
		for {
			ok, err := reader.Next()
			if err != nil {
				return nil, err
			}
			if !ok || reader.AtEndOfContainer() {
				break
			}
			item, err := decodeCurrentToNative(reader)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		reader.ExitContainer()
		return items, nil
	case tlv.TypeBool:
		return reader.GetBool()
	case tlv.TypeUint:
		return reader.GetUint()
	case tlv.TypeInt:
		return reader.GetInt()
	case tlv.TypeFloat:
		v, err := reader.GetFloat32()
		return float64(v), err
	case tlv.TypeDouble:
		return reader.GetFloat64()
	case tlv.TypeString:
		return reader.GetString()
	case tlv.TypeBytes:
		b, err := reader.GetBytes()
		if err != nil {
			return nil, err
		}
		out := make([]int, len(b))
		for i, by := range b {
			out[i] = int(by)
		}
		return out, nil
	default:
		return nil, nil
	}
}

// encodeFromNative writes a script's native JS output value into TLV per
// the Barton type hint. For "octstr" the script produces an array of
// byte-valued ints (the same representation MapAttributeRead hands in) or
// a base64 string; see byteArrayFromNative. The raw bytes are written.
func encodeFromNative(value interface{}, bartonType string) ([]byte, error) {
	w := tlv.NewWriter()
	if err := writeNative(w, value, bartonType); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func writeNative(w *tlv.Writer, value interface{}, bartonType string) error {
	kind := tlvKindForType(bartonType)
	switch kind {
	case tlv.TypeBool:
		b, ok := value.(bool)
		if !ok {
			return errors.Errorf("expected bool output for type %s", bartonType)
		}
		w.PutBool(b)
	case tlv.TypeUint:
		n, err := toUint64(value)
		if err != nil {
			return err
		}
		w.PutUint(n)
	case tlv.TypeInt:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		w.PutInt(n)
	case tlv.TypeFloat:
		f, err := toFloat64(value)
		if err != nil {
			return err
		}
		w.PutFloat32(float32(f))
	case tlv.TypeDouble:
		f, err := toFloat64(value)
		if err != nil {
			return err
		}
		w.PutFloat64(f)
	case tlv.TypeString:
		s, ok := value.(string)
		if !ok {
			return errors.Errorf("expected string output for type %s", bartonType)
		}
		w.PutString(s)
	case tlv.TypeBytes:
		b, err := byteArrayFromNative(value)
		if err != nil {
			return err
		}
		if len(b) > 0xffff {
			return errors.New("octstr output exceeds 16-bit length limit")
		}
		w.PutBytes(b)
	case tlv.TypeNull:
		w.PutNull()
	default:
		return errors.Errorf("encoding struct/array output for type %s is not supported outside command arguments", bartonType)
	}
	return nil
}

// byteArrayFromNative accepts a []interface{} of byte-valued ints (the
// script-produced array form), a raw []byte, or a base64-encoded string,
// which it decodes.
func byteArrayFromNative(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case []interface{}:
		out := make([]byte, len(v))
		for i, item := range v {
			n, err := toUint64(item)
			if err != nil {
				return nil, errors.Wrap(err, "octstr array element is not byte-valued")
			}
			if n > 255 {
				return nil, errors.Errorf("octstr array element %d out of byte range", n)
			}
			out[i] = byte(n)
		}
		return out, nil
	case string:
		return base64.StdEncoding.DecodeString(v)
	default:
		return nil, errors.New("expected array of byte-valued ints for octstr output")
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case int64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, errors.Errorf("expected numeric value, got %T", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, errors.Errorf("expected numeric value, got %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, errors.Errorf("expected numeric value, got %T", v)
	}
}

// encodeCommandArgs writes a script's output as a command's argument
// structure: a single unnamed argument is written directly, while
// multiple named arguments are expected as an object whose fields match
// argument names, emitted as a TLV structure in argument declaration
// order.
func encodeCommandArgs(value interface{}, args []sbmd.Argument) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) == 1 {
		return encodeFromNative(value, args[0].Type)
	}

	fields, ok := value.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected an object output for a multi-argument command")
	}

	w := tlv.NewWriter()
	w.StartStruct()
	for _, arg := range args {
		fv, ok := fields[arg.Name]
		if !ok {
			return nil, errors.Errorf("script output missing argument '%s'", arg.Name)
		}
		if err := writeNative(w, fv, arg.Type); err != nil {
			return nil, errors.Wrapf(err, "encoding argument '%s'", arg.Name)
		}
	}
	w.EndContainer()
	return w.Bytes(), nil
}

var _ SbmdScript = (*GojaScript)(nil)
