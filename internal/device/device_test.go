package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/cache"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/script"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/tlv"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// fakeCommandSender records the one command sent to it and immediately
// replies through its callback, synchronously, as if the interaction
// completed inline.
type fakeCommandSender struct {
	cb           matterim.CommandCallback
	sentPath     matterim.CommandPath
	sentPayload  []byte
	responseData []byte
	responseErr  error
}

func (f *fakeCommandSender) SendCommand(_ context.Context, path matterim.CommandPath, payload []byte, _ uint16) error {
	f.sentPath = path
	f.sentPayload = payload
	f.cb.OnResponse(path, f.responseData, f.responseErr)
	f.cb.OnDone()
	return nil
}

func (f *fakeCommandSender) Close() {}

type fakeExchangeManager struct {
	sender *fakeCommandSender
}

func (f *fakeExchangeManager) NewWriteClient(context.Context, matterim.NodeID, matterim.WriteCallback) (matterim.WriteClient, error) {
	panic("not used by this test")
}

func (f *fakeExchangeManager) NewCommandSender(_ context.Context, _ matterim.NodeID, cb matterim.CommandCallback) (matterim.CommandSender, error) {
	f.sender.cb = cb
	return f.sender, nil
}

func (f *fakeExchangeManager) NewSubscription(context.Context, matterim.NodeID, []matterim.AttributePath, []matterim.EventPath, matterim.SubscriptionCallback) (matterim.SubscriptionClient, error) {
	panic("not used by this test")
}

func newTestDevice(t *testing.T) (*MatterDevice, *cache.DeviceDataCache) {
	t.Helper()
	c := cache.NewDeviceDataCache()
	d := NewMatterDevice("dev-1", c)
	d.SetScript(script.NewGojaScript("dev-1"))
	return d, c
}

func TestHandleResourceReadFromCache(t *testing.T) {
	d, c := newTestDevice(t)
	attr := sbmd.Attribute{ClusterID: 6, AttributeID: 0, Name: "OnOff", Type: "bool"}
	require.NoError(t, d.script.AddAttributeReadMapper(attr, "return { output: sbmdReadArgs.input ? 'true' : 'false' };"))
	require.NoError(t, d.BindResourceReadInfo("1/onOff", attr, matterim.EndpointID(1)))

	w := tlv.NewWriter()
	w.PutBool(true)
	c.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 6, Attribute: 0}, w.Bytes())

	value, err := d.HandleResourceRead("1/onOff")
	require.NoError(t, err)
	require.Equal(t, "true", value)
}

func TestHandleResourceReadMissingCacheFails(t *testing.T) {
	d, _ := newTestDevice(t)
	attr := sbmd.Attribute{ClusterID: 6, AttributeID: 0, Type: "bool"}
	require.NoError(t, d.script.AddAttributeReadMapper(attr, "return { output: 'x' };"))
	require.NoError(t, d.BindResourceReadInfo("1/onOff", attr, matterim.EndpointID(1)))

	_, err := d.HandleResourceRead("1/onOff")
	require.Error(t, err)
}

func TestHandleResourceWriteSingleCommand(t *testing.T) {
	d, _ := newTestDevice(t)
	cmd := sbmd.Command{ClusterID: 6, CommandID: 1, Name: "On"}
	require.NoError(t, d.script.AddCommandsWriteMapper([]sbmd.Command{cmd}, "return { output: null };"))
	require.NoError(t, d.BindWriteCommandInfo("1/onOff", cmd, matterim.EndpointID(1)))
	d.NoteEndpoint(matterim.ClusterID(6), matterim.EndpointID(1))

	exch := &fakeExchangeManager{sender: &fakeCommandSender{}}
	err := d.HandleResourceWrite(context.Background(), exch, matterim.NodeID(42), "1/onOff", "true")
	require.NoError(t, err)
	require.Equal(t, matterim.CommandPath{Endpoint: 1, Cluster: 6, Command: 1}, exch.sender.sentPath)
}

func TestHandleResourceExecuteMapsResponse(t *testing.T) {
	d, _ := newTestDevice(t)
	cmd := sbmd.Command{ClusterID: 8, CommandID: 2, Name: "MoveToLevel", Args: []sbmd.Argument{{Name: "level", Type: "uint8"}}}
	require.NoError(t, d.script.AddCommandExecuteMapper(cmd, "return { output: parseInt(sbmdReadArgs.input[0], 10) };"))
	require.NoError(t, d.script.AddCommandExecuteResponseMapper(cmd, "return { output: 'ok' };"))
	require.NoError(t, d.BindExecuteInfo("1/moveToLevel", cmd, matterim.EndpointID(1)))
	d.NoteEndpoint(matterim.ClusterID(8), matterim.EndpointID(1))

	respW := tlv.NewWriter()
	respW.PutUint(5)
	exch := &fakeExchangeManager{sender: &fakeCommandSender{responseData: respW.Bytes()}}

	value, err := d.HandleResourceExecute(context.Background(), exch, matterim.NodeID(42), "1/moveToLevel", []string{"50"})
	require.NoError(t, err)
	require.Equal(t, "ok", value)
}

type recordingResourceSink struct {
	deviceID, uri, value string
	calls                int
}

func (s *recordingResourceSink) OnResourceEvent(deviceID, uri, value string) {
	s.deviceID, s.uri, s.value = deviceID, uri, value
	s.calls++
}

func TestOnAttributeChangedMapsAndDeliversToSink(t *testing.T) {
	d, c := newTestDevice(t)
	attr := sbmd.Attribute{ClusterID: 6, AttributeID: 0, Name: "OnOff", Type: "bool"}
	require.NoError(t, d.script.AddAttributeReadMapper(attr, "return { output: sbmdReadArgs.input ? 'true' : 'false' };"))
	require.NoError(t, d.BindResourceReadInfo("1/onOff", attr, matterim.EndpointID(1)))

	sink := &recordingResourceSink{}
	d.SetResourceSink(sink)

	w := tlv.NewWriter()
	w.PutBool(true)
	c.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 6, Attribute: 0}, w.Bytes())

	require.Equal(t, 1, sink.calls)
	require.Equal(t, "dev-1", sink.deviceID)
	require.Equal(t, "1/onOff", sink.uri)
	require.Equal(t, "true", sink.value)
}

func TestOnAttributeChangedIgnoresUnboundPath(t *testing.T) {
	d, c := newTestDevice(t)
	sink := &recordingResourceSink{}
	d.SetResourceSink(sink)

	c.SetAttributeData(matterim.AttributePath{Endpoint: 9, Cluster: 99, Attribute: 0}, []byte{0x01})

	require.Equal(t, 0, sink.calls)
}

func TestOnAttributeChangedEmitsZeroValueOnMapError(t *testing.T) {
	d, c := newTestDevice(t)
	attr := sbmd.Attribute{ClusterID: 6, AttributeID: 0, Name: "OnOff", Type: "bool"}
	require.NoError(t, d.script.AddAttributeReadMapper(attr, "throw new Error('boom');"))
	require.NoError(t, d.BindResourceReadInfo("1/onOff", attr, matterim.EndpointID(1)))

	sink := &recordingResourceSink{}
	d.SetResourceSink(sink)

	w := tlv.NewWriter()
	w.PutBool(true)
	c.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 6, Attribute: 0}, w.Bytes())

	require.Equal(t, 1, sink.calls)
	require.Equal(t, "1/onOff", sink.uri)
	require.Equal(t, "", sink.value)
}

func TestUpdateCachedFeatureMapsFeedsScript(t *testing.T) {
	d, c := newTestDevice(t)
	d.SetFeatureClusters([]uint32{8})

	attr := sbmd.Attribute{ClusterID: 8, AttributeID: 0, Name: "CurrentLevel", Type: "uint8"}
	require.NoError(t, d.script.AddAttributeReadMapper(attr, "return { output: sbmdReadArgs.input + ':' + sbmdReadArgs.featureMap };"))
	require.NoError(t, d.BindResourceReadInfo("level", attr, matterim.EndpointID(1)))

	featureMapW := tlv.NewWriter()
	featureMapW.PutUint(0x5)
	c.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 8, Attribute: cache.FeatureMapAttributeID}, featureMapW.Bytes())

	d.UpdateCachedFeatureMaps()

	levelW := tlv.NewWriter()
	levelW.PutUint(7)
	c.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 8, Attribute: 0}, levelW.Bytes())

	value, err := d.HandleResourceRead("level")
	require.NoError(t, err)
	require.Equal(t, "7:5", value)
}

func TestUpdateCachedFeatureMapsSkipsUnresolvableClusters(t *testing.T) {
	d, _ := newTestDevice(t)
	d.SetFeatureClusters([]uint32{99})

	require.NotPanics(t, func() { d.UpdateCachedFeatureMaps() })
}

func TestOnEventReceivedMapsBoundEvent(t *testing.T) {
	d, _ := newTestDevice(t)
	ev := sbmd.Event{ClusterID: 6, EventID: 0, Name: "OnOffChanged", Type: "bool"}
	require.NoError(t, d.script.AddEventReadMapper(ev, "return { output: sbmdReadArgs.input ? 'true' : 'false' };"))
	require.NoError(t, d.BindResourceEventInfo("1/onOffEvent", ev, matterim.EndpointID(1)))

	w := tlv.NewWriter()
	w.PutBool(false)
	uri, value, ok, err := d.OnEventReceived(matterim.EventPath{Endpoint: 1, Cluster: 6, Event: 0}, w.Bytes())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1/onOffEvent", uri)
	require.Equal(t, "false", value)
}
