package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/cache"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/commissioner"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/device"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driver"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/script"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/tlv"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

type fakeSubscriptionClient struct {
	sendErr error
}

func (f *fakeSubscriptionClient) Send(context.Context, uint16, uint16) error { return f.sendErr }
func (f *fakeSubscriptionClient) Shutdown()                                 {}

type fakeExchangeManager struct {
	subscribeErr error
	client       *fakeSubscriptionClient
}

func (f *fakeExchangeManager) NewWriteClient(context.Context, matterim.NodeID, matterim.WriteCallback) (matterim.WriteClient, error) {
	panic("not used")
}
func (f *fakeExchangeManager) NewCommandSender(context.Context, matterim.NodeID, matterim.CommandCallback) (matterim.CommandSender, error) {
	panic("not used")
}
func (f *fakeExchangeManager) NewSubscription(context.Context, matterim.NodeID, []matterim.AttributePath, []matterim.EventPath, matterim.SubscriptionCallback) (matterim.SubscriptionClient, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.client, nil
}

type fakeDriver struct {
	removedIDs []string
}

func (d *fakeDriver) Name() string                   { return "sbmd-fake" }
func (d *fakeDriver) SupportedDeviceTypes() []uint16 { return []uint16{0x0100} }
func (d *fakeDriver) DesiredSubscriptionInterval() sbmd.Reporting { return sbmd.Reporting{} }
func (d *fakeDriver) DescribeResources() []driver.ResourceDescriptor { return nil }
func (d *fakeDriver) AddDevice(deviceID string, dataCache *cache.DeviceDataCache, resolveEndpoint func(string) (matterim.EndpointID, error)) (*device.MatterDevice, error) {
	return device.NewMatterDevice(deviceID, dataCache), nil
}
func (d *fakeDriver) GetDevice(deviceID string) *device.MatterDevice { return nil }
func (d *fakeDriver) RemoveDevice(deviceID string)                   { d.removedIDs = append(d.removedIDs, deviceID) }
func (d *fakeDriver) ReadResource(deviceID, uri string) (string, error) {
	return "", nil
}
func (d *fakeDriver) WriteResource(context.Context, matterim.ExchangeManager, matterim.NodeID, string, string, string) (bool, error) {
	return false, nil
}
func (d *fakeDriver) ExecuteResource(context.Context, matterim.ExchangeManager, matterim.NodeID, string, string, []string) (string, error) {
	return "", nil
}

func resolveEndpoint(string) (matterim.EndpointID, error) { return 1, nil }

func TestAddDeviceOpensSubscriptionAndTracksIt(t *testing.T) {
	exch := &fakeExchangeManager{client: &fakeSubscriptionClient{}}
	connect := func(ctx context.Context) (matterim.ExchangeManager, matterim.NodeID, error) {
		return exch, matterim.NodeID(1), nil
	}
	d := &fakeDriver{}
	m := NewDeviceManager(nil)

	err := m.AddDevice(context.Background(), d, connect, "dev-1", 120, resolveEndpoint, time.Second)
	require.NoError(t, err)

	m.mu.RLock()
	_, ok := m.subscriptions["dev-1"]
	m.mu.RUnlock()
	require.True(t, ok)
}

func TestAddDeviceSubscribeFailureCleansUp(t *testing.T) {
	exch := &fakeExchangeManager{subscribeErr: errors.New("boom")}
	connect := func(ctx context.Context) (matterim.ExchangeManager, matterim.NodeID, error) {
		return exch, matterim.NodeID(1), nil
	}
	d := &fakeDriver{}
	m := NewDeviceManager(nil)

	err := m.AddDevice(context.Background(), d, connect, "dev-1", 120, resolveEndpoint, time.Second)
	require.Error(t, err)
	require.Contains(t, d.removedIDs, "dev-1")

	m.mu.RLock()
	_, ok := m.subscriptions["dev-1"]
	m.mu.RUnlock()
	require.False(t, ok)
}

func TestRemoveDeviceShutsDownSubscription(t *testing.T) {
	exch := &fakeExchangeManager{client: &fakeSubscriptionClient{}}
	connect := func(ctx context.Context) (matterim.ExchangeManager, matterim.NodeID, error) {
		return exch, matterim.NodeID(1), nil
	}
	d := &fakeDriver{}
	m := NewDeviceManager(nil)
	require.NoError(t, m.AddDevice(context.Background(), d, connect, "dev-1", 120, resolveEndpoint, time.Second))

	m.RemoveDevice(d, "dev-1")

	require.Contains(t, d.removedIDs, "dev-1")
	m.mu.RLock()
	_, ok := m.subscriptions["dev-1"]
	m.mu.RUnlock()
	require.False(t, ok)
}

func TestReconfigureRespectsContextCancellation(t *testing.T) {
	exch := &fakeExchangeManager{client: &fakeSubscriptionClient{}}
	connect := func(ctx context.Context) (matterim.ExchangeManager, matterim.NodeID, error) {
		return exch, matterim.NodeID(1), nil
	}
	d := &fakeDriver{}
	m := NewDeviceManager(nil)
	require.NoError(t, m.AddDevice(context.Background(), d, connect, "dev-1", 120, resolveEndpoint, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.Reconfigure(ctx, d, connect, "dev-1", 240, resolveEndpoint, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The old subscription was already torn down by RemoveDevice before the
	// reconfiguration delay began waiting.
	require.Contains(t, d.removedIDs, "dev-1")
}

type recordingSink struct {
	deviceID, uri, value string
}

func (s *recordingSink) OnResourceEvent(deviceID, uri, value string) {
	s.deviceID, s.uri, s.value = deviceID, uri, value
}

func TestOnSubscriptionEstablishedUpdatesCachedFeatureMaps(t *testing.T) {
	dataCache := cache.NewDeviceDataCache()
	dev := device.NewMatterDevice("dev-1", dataCache)
	s := script.NewGojaScript("dev-1")
	dev.SetScript(s)
	dev.SetFeatureClusters([]uint32{8})

	attr := sbmd.Attribute{ClusterID: 8, AttributeID: 0, Name: "CurrentLevel", Type: "uint8"}
	require.NoError(t, s.AddAttributeReadMapper(attr, "return { output: sbmdReadArgs.input + ':' + sbmdReadArgs.featureMap };"))
	require.NoError(t, dev.BindResourceReadInfo("level", attr, matterim.EndpointID(1)))

	featureMapW := tlv.NewWriter()
	featureMapW.PutUint(0x3)
	dataCache.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 8, Attribute: cache.FeatureMapAttributeID}, featureMapW.Bytes())

	h := &deviceEventHandler{manager: NewDeviceManager(nil), deviceID: "dev-1", dev: dev}
	h.OnSubscriptionEstablished(1)

	levelW := tlv.NewWriter()
	levelW.PutUint(42)
	dataCache.SetAttributeData(matterim.AttributePath{Endpoint: 1, Cluster: 8, Attribute: 0}, levelW.Bytes())

	value, err := dev.HandleResourceRead("level")
	require.NoError(t, err)
	require.Equal(t, "42:3", value)
}

func TestDeviceEventHandlerFeedsCacheOnAttributeChanged(t *testing.T) {
	dataCache := cache.NewDeviceDataCache()
	dev := device.NewMatterDevice("dev-1", dataCache)
	sink := &recordingSink{}
	h := &deviceEventHandler{manager: NewDeviceManager(sink), deviceID: "dev-1", dev: dev}

	path := matterim.AttributePath{Endpoint: 1, Cluster: 6, Attribute: 0}
	h.OnAttributeChanged(path, []byte{0x01})

	stored, ok := dataCache.GetAttributeData(path)
	require.True(t, ok)
	require.Equal(t, []byte{0x01}, stored)
}
