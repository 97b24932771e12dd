package sbmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// yamlNode is the tolerant intermediate representation parseRoot walks,
// mirroring the original parser's YAML::Node-based approach: fields are
// read opportunistically and missing ones are simply left at their zero
// value rather than failing the whole document.
type yamlNode map[interface{}]interface{}

// ParseFile reads and parses a single .sbmd YAML file from disk.
func ParseFile(path string) (*Spec, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sbmd file %s", path)
	}
	spec, err := ParseString(string(contents))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing sbmd file %s", path)
	}
	return spec, nil
}

// ParseString parses an in-memory .sbmd YAML document.
func ParseString(yamlContent string) (*Spec, error) {
	var root yamlNode
	if err := yaml.Unmarshal([]byte(yamlContent), &root); err != nil {
		return nil, errors.Wrap(err, "yaml parsing error")
	}
	return parseRoot(root)
}

func asMap(v interface{}) (yamlNode, bool) {
	switch m := v.(type) {
	case yamlNode:
		return m, true
	case map[interface{}]interface{}:
		return yamlNode(m), true
	case map[string]interface{}:
		out := make(yamlNode, len(m))
		for k, vv := range m {
			out[k] = vv
		}
		return out, true
	default:
		return nil, false
	}
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asUint32(v interface{}) uint32 {
	switch t := v.(type) {
	case int:
		return uint32(t)
	case int64:
		return uint32(t)
	case uint64:
		return uint32(t)
	case string:
		n, _ := strconv.ParseUint(t, 10, 32)
		return uint32(n)
	default:
		return 0
	}
}

func parseRoot(root yamlNode) (*Spec, error) {
	spec := &Spec{}

	if v, ok := root["schemaVersion"]; ok {
		spec.SchemaVersion = asString(v)
	}
	if v, ok := root["driverVersion"]; ok {
		spec.DriverVersion = asString(v)
	}
	if v, ok := root["name"]; ok {
		spec.Name = asString(v)
	}
	if v, ok := root["scriptType"]; ok {
		spec.ScriptType = asString(v)
	}

	if v, ok := root["bartonMeta"]; ok {
		m, ok := asMap(v)
		if !ok {
			return nil, errors.New("bartonMeta is not a map")
		}
		parseBartonMeta(m, &spec.BartonMeta)
	}

	if v, ok := root["matterMeta"]; ok {
		m, ok := asMap(v)
		if !ok {
			return nil, errors.New("matterMeta is not a map")
		}
		if err := parseMatterMeta(m, &spec.MatterMeta); err != nil {
			return nil, errors.Wrap(err, "failed to parse matterMeta section")
		}
	}

	if v, ok := root["reporting"]; ok {
		m, ok := asMap(v)
		if !ok {
			return nil, errors.New("reporting is not a map")
		}
		parseReporting(m, &spec.Reporting)
	}

	if v, ok := root["resources"]; ok {
		items, ok := asSlice(v)
		if ok {
			for _, item := range items {
				m, ok := asMap(item)
				if !ok {
					return nil, errors.New("resource is not a map")
				}
				resource, err := parseResource(m)
				if err != nil {
					return nil, errors.Wrap(err, "failed to parse top-level resource, aborting spec load")
				}
				setMapperIDs(resource, "")
				spec.Resources = append(spec.Resources, *resource)
			}
		}
	}

	if v, ok := root["endpoints"]; ok {
		items, ok := asSlice(v)
		if ok {
			for _, item := range items {
				m, ok := asMap(item)
				if !ok {
					return nil, errors.New("endpoint is not a map")
				}
				ep, err := parseEndpoint(m)
				if err != nil {
					return nil, errors.Wrap(err, "failed to parse endpoint, aborting spec load")
				}
				spec.Endpoints = append(spec.Endpoints, *ep)
			}
		}
	}

	if spec.Name == "" {
		return nil, errors.New("spec is missing required field name")
	}
	if spec.BartonMeta.DeviceClass == "" {
		return nil, errors.New("spec is missing required field bartonMeta.deviceClass")
	}
	if len(spec.MatterMeta.DeviceTypes) == 0 {
		return nil, errors.New("spec is missing required field matterMeta.deviceTypes")
	}

	return spec, nil
}

func parseBartonMeta(m yamlNode, meta *BartonMeta) {
	if v, ok := m["deviceClass"]; ok {
		meta.DeviceClass = asString(v)
	}
	if v, ok := m["deviceClassVersion"]; ok {
		meta.DeviceClassVersion = asUint32(v)
	}
}

func parseMatterMeta(m yamlNode, meta *MatterMeta) error {
	if v, ok := m["deviceTypes"]; ok {
		items, ok := asSlice(v)
		if ok {
			for _, item := range items {
				n, err := parseHexOrDecimal(asString(item))
				if err != nil {
					return err
				}
				meta.DeviceTypes = append(meta.DeviceTypes, uint16(n))
			}
		}
	}
	if v, ok := m["revision"]; ok {
		meta.Revision = asUint32(v)
	}
	if v, ok := m["featureClusters"]; ok {
		items, ok := asSlice(v)
		if ok {
			for _, item := range items {
				n, err := parseHexOrDecimal(asString(item))
				if err != nil {
					return err
				}
				meta.FeatureClusters = append(meta.FeatureClusters, n)
			}
		}
	}
	return nil
}

func parseReporting(m yamlNode, reporting *Reporting) {
	if v, ok := m["minSecs"]; ok {
		reporting.MinSecs = uint16(asUint32(v))
	}
	if v, ok := m["maxSecs"]; ok {
		reporting.MaxSecs = uint16(asUint32(v))
	}
}

func parseResource(m yamlNode) (*Resource, error) {
	resource := &Resource{}
	if v, ok := m["id"]; ok {
		resource.ID = asString(v)
	}
	if v, ok := m["type"]; ok {
		resource.Type = asString(v)
	}
	if v, ok := m["modes"]; ok {
		items, _ := asSlice(v)
		for _, item := range items {
			resource.Modes = append(resource.Modes, asString(item))
		}
	}
	if v, ok := m["mapper"]; ok {
		mm, ok := asMap(v)
		if !ok {
			return nil, errors.New("mapper is not a map")
		}
		mapper, err := parseMapper(mm)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse mapper for resource %s", resource.ID)
		}
		resource.Mapper = *mapper
		if err := validateMapper(resource.Mapper, resource.ID); err != nil {
			return nil, errors.Wrapf(err, "mapper validation failed for resource %s", resource.ID)
		}
	}
	return resource, nil
}

func parseEndpoint(m yamlNode) (*Endpoint, error) {
	ep := &Endpoint{}
	if v, ok := m["id"]; ok {
		ep.ID = asString(v)
	}
	if v, ok := m["profile"]; ok {
		ep.Profile = asString(v)
	}
	if v, ok := m["profileVersion"]; ok {
		ep.ProfileVersion = asUint32(v)
	}
	if v, ok := m["resources"]; ok {
		items, ok := asSlice(v)
		if ok {
			for _, item := range items {
				rm, ok := asMap(item)
				if !ok {
					return nil, errors.New("resource is not a map")
				}
				resource, err := parseResource(rm)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to parse resource in endpoint %s", ep.ID)
				}
				setMapperIDs(resource, ep.ID)
				ep.Resources = append(ep.Resources, *resource)
			}
		}
	}
	return ep, nil
}

// parseMapper parses the read/write/execute sub-mappers generally: each
// leaf may carry attribute, command, or commands, plus a script. Mode
// specific carrier restrictions (read: attribute only; execute: command
// only) are enforced by validateMapper, matching the read/write/execute
// column in the resource grammar.
func parseMapper(m yamlNode) (*Mapper, error) {
	mapper := &Mapper{}

	if v, ok := m["read"]; ok {
		leafMap, ok := asMap(v)
		if !ok {
			return nil, errors.New("read mapper is not a map")
		}
		leaf, err := parseMapperLeaf(leafMap)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse read mapper")
		}
		mapper.Read = leaf
	}

	if v, ok := m["write"]; ok {
		leafMap, ok := asMap(v)
		if !ok {
			return nil, errors.New("write mapper is not a map")
		}
		leaf, err := parseMapperLeaf(leafMap)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse write mapper")
		}
		mapper.Write = leaf
	}

	if v, ok := m["execute"]; ok {
		leafMap, ok := asMap(v)
		if !ok {
			return nil, errors.New("execute mapper is not a map")
		}
		leaf, err := parseMapperLeaf(leafMap)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse execute mapper")
		}
		mapper.Execute = leaf
	}

	if v, ok := m["event"]; ok {
		leafMap, ok := asMap(v)
		if !ok {
			return nil, errors.New("event mapper is not a map")
		}
		leaf, err := parseEventLeaf(leafMap)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse event mapper")
		}
		mapper.Event = leaf
	}

	return mapper, nil
}

func parseEventLeaf(m yamlNode) (*EventLeaf, error) {
	leaf := &EventLeaf{}
	if v, ok := m["event"]; ok {
		em, ok := asMap(v)
		if !ok {
			return nil, errors.New("event is not a map")
		}
		event := &Event{}
		if cv, ok := em["clusterId"]; ok {
			n, err := parseHexOrDecimal(asString(cv))
			if err != nil {
				return nil, err
			}
			event.ClusterID = n
		}
		if ev, ok := em["eventId"]; ok {
			n, err := parseHexOrDecimal(asString(ev))
			if err != nil {
				return nil, err
			}
			event.EventID = n
		}
		if nv, ok := em["name"]; ok {
			event.Name = asString(nv)
		}
		if tv, ok := em["type"]; ok {
			event.Type = asString(tv)
		}
		leaf.Event = event
	}
	if v, ok := m["script"]; ok {
		leaf.Script = asString(v)
	}
	return leaf, nil
}

func parseMapperLeaf(m yamlNode) (*MapperLeaf, error) {
	leaf := &MapperLeaf{}

	if v, ok := m["attribute"]; ok {
		am, ok := asMap(v)
		if !ok {
			return nil, errors.New("attribute is not a map")
		}
		attr, err := parseAttribute(am)
		if err != nil {
			return nil, err
		}
		leaf.Attribute = attr
	}

	if v, ok := m["command"]; ok {
		cm, ok := asMap(v)
		if !ok {
			return nil, errors.New("command is not a map")
		}
		cmd, err := parseCommand(cm)
		if err != nil {
			return nil, err
		}
		leaf.Command = cmd
	}

	if v, ok := m["commands"]; ok {
		items, ok := asSlice(v)
		if !ok {
			return nil, errors.New("commands is not a sequence")
		}
		for _, item := range items {
			cm, ok := asMap(item)
			if !ok {
				return nil, errors.New("command is not a map")
			}
			cmd, err := parseCommand(cm)
			if err != nil {
				return nil, err
			}
			leaf.Commands = append(leaf.Commands, *cmd)
		}
	}

	if v, ok := m["script"]; ok {
		leaf.Script = asString(v)
	}
	if v, ok := m["scriptResponse"]; ok {
		leaf.ResponseScript = asString(v)
	}

	return leaf, nil
}

func parseAttribute(m yamlNode) (*Attribute, error) {
	attr := &Attribute{}
	if v, ok := m["clusterId"]; ok {
		n, err := parseHexOrDecimal(asString(v))
		if err != nil {
			return nil, err
		}
		attr.ClusterID = n
	}
	if v, ok := m["attributeId"]; ok {
		n, err := parseHexOrDecimal(asString(v))
		if err != nil {
			return nil, err
		}
		attr.AttributeID = n
	}
	if v, ok := m["name"]; ok {
		attr.Name = asString(v)
	}
	if v, ok := m["type"]; ok {
		attr.Type = asString(v)
	}
	return attr, nil
}

func parseCommand(m yamlNode) (*Command, error) {
	cmd := &Command{}
	if v, ok := m["clusterId"]; ok {
		n, err := parseHexOrDecimal(asString(v))
		if err != nil {
			return nil, err
		}
		cmd.ClusterID = n
	}
	if v, ok := m["commandId"]; ok {
		n, err := parseHexOrDecimal(asString(v))
		if err != nil {
			return nil, err
		}
		cmd.CommandID = n
	}
	if v, ok := m["name"]; ok {
		cmd.Name = asString(v)
	}

	if v, ok := m["timedInvokeTimeoutMs"]; ok {
		timeout := asUint32(v)
		if timeout > 65535 {
			if cmd.Name != "" {
				return nil, errors.Errorf("timedInvokeTimeoutMs value %d for command '%s' exceeds maximum allowed value of 65535", timeout, cmd.Name)
			}
			return nil, errors.Errorf("timedInvokeTimeoutMs value %d exceeds maximum allowed value of 65535", timeout)
		}
		t := timeout
		cmd.TimedInvokeTimeoutMs = &t
	}

	if v, ok := m["args"]; ok {
		items, ok := asSlice(v)
		if ok {
			for _, item := range items {
				am, ok := asMap(item)
				if !ok {
					continue
				}
				var arg Argument
				if n, ok := am["name"]; ok {
					arg.Name = asString(n)
				}
				if t, ok := am["type"]; ok {
					arg.Type = asString(t)
				}
				cmd.Args = append(cmd.Args, arg)
			}
		}
	}

	return cmd, nil
}

// parseHexOrDecimal accepts a "0x"/"0X"-prefixed hex string or a bare
// decimal string, and returns zero for an empty string; any other form is
// rejected rather than defaulted to zero.
func parseHexOrDecimal(value string) (uint32, error) {
	if value == "" {
		return 0, nil
	}
	if len(value) > 2 && value[0] == '0' && (value[1] == 'x' || value[1] == 'X') {
		n, err := strconv.ParseUint(value[2:], 16, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid hex numeric value '%s'", value)
		}
		return uint32(n), nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid numeric value '%s'", value)
	}
	return uint32(n), nil
}

// setMapperIDs stamps the owning resource/endpoint identity onto every
// carrier the mapper holds, mirroring SetMapperIds in the original parser.
func setMapperIDs(resource *Resource, endpointID string) {
	resource.ResourceEndpointID = endpointID

	stampAttr := func(a *Attribute) {
		if a == nil {
			return
		}
		a.ResourceEndpointID = endpointID
		a.ResourceID = resource.ID
	}
	stampCmd := func(c *Command) {
		if c == nil {
			return
		}
		c.ResourceEndpointID = endpointID
		c.ResourceID = resource.ID
	}
	stampLeaf := func(leaf *MapperLeaf) {
		if leaf == nil {
			return
		}
		stampAttr(leaf.Attribute)
		stampCmd(leaf.Command)
		for i := range leaf.Commands {
			stampCmd(&leaf.Commands[i])
		}
	}

	stampLeaf(resource.Mapper.Read)
	stampLeaf(resource.Mapper.Write)
	stampLeaf(resource.Mapper.Execute)
	if leaf := resource.Mapper.Event; leaf != nil && leaf.Event != nil {
		leaf.Event.ResourceEndpointID = endpointID
		leaf.Event.ResourceID = resource.ID
	}
}

// validateMapper enforces the exactly-one-carrier-plus-script invariant for
// whichever sub-mappers are present: read is attribute-only, write accepts
// attribute xor command xor command-set, execute is command-only.
func validateMapper(mapper Mapper, resourceID string) error {
	if mapper.Read != nil {
		leaf := mapper.Read
		if strings.TrimSpace(leaf.Script) == "" {
			return errors.Errorf("resource %s has read enabled but script is empty", resourceID)
		}
		if leaf.Attribute == nil {
			return errors.Errorf("resource %s has read enabled but no attribute specified", resourceID)
		}
		if leaf.Command != nil || len(leaf.Commands) > 0 {
			return errors.Errorf("resource %s uses read command which is not yet supported", resourceID)
		}
	}

	if mapper.Write != nil {
		leaf := mapper.Write
		if strings.TrimSpace(leaf.Script) == "" {
			return errors.Errorf("resource %s has write enabled but script is empty", resourceID)
		}
		if err := validateExactlyOneCarrier(leaf, resourceID, "write"); err != nil {
			return err
		}
	}

	if mapper.Execute != nil {
		leaf := mapper.Execute
		if strings.TrimSpace(leaf.Script) == "" {
			return errors.Errorf("resource %s has execute enabled but script is empty", resourceID)
		}
		if leaf.Attribute != nil {
			return errors.Errorf("resource %s uses execute attribute which is not yet supported", resourceID)
		}
		if leaf.Command == nil && len(leaf.Commands) == 0 {
			return errors.Errorf("resource %s has execute enabled but no command specified", resourceID)
		}
		if len(leaf.Commands) > 0 {
			return errors.Errorf("resource %s execute mapper must have a single command, not a command list", resourceID)
		}
	}

	if mapper.Event != nil {
		leaf := mapper.Event
		if strings.TrimSpace(leaf.Script) == "" {
			return errors.Errorf("resource %s has event enabled but script is empty", resourceID)
		}
		if leaf.Event == nil {
			return errors.Errorf("resource %s has event enabled but no event specified", resourceID)
		}
	}

	return nil
}

func validateExactlyOneCarrier(leaf *MapperLeaf, resourceID, mode string) error {
	carriers := 0
	if leaf.Attribute != nil {
		carriers++
	}
	if leaf.Command != nil {
		carriers++
	}
	if len(leaf.Commands) > 0 {
		carriers++
	}
	if carriers == 0 {
		return errors.Errorf("resource %s has %s enabled but no attribute, command, or commands specified", resourceID, mode)
	}
	if carriers > 1 {
		return errors.Errorf("resource %s %s mapper must have exactly one of attribute, command, or commands", resourceID, mode)
	}
	return nil
}
