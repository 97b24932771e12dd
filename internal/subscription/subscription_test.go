package subscription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
)

func TestNegotiateIntervalKeepsCeilingBelowCommFailTimeout(t *testing.T) {
	interval := NegotiateInterval(3600)
	require.Less(t, interval.MaxIntervalCeilingSecs, uint16(3600))
	require.LessOrEqual(t, interval.MinIntervalFloorSecs, interval.MaxIntervalCeilingSecs)
}

func TestNegotiateIntervalHandlesTinyCommFailTimeout(t *testing.T) {
	interval := NegotiateInterval(1)
	require.GreaterOrEqual(t, interval.MaxIntervalCeilingSecs, uint16(1))
	require.LessOrEqual(t, interval.MinIntervalFloorSecs, interval.MaxIntervalCeilingSecs)
}

type fakeSubscriptionClient struct {
	sentFloor, sentCeiling uint16
	shutdown               bool
}

func (f *fakeSubscriptionClient) Send(_ context.Context, floor, ceiling uint16) error {
	f.sentFloor, f.sentCeiling = floor, ceiling
	return nil
}

func (f *fakeSubscriptionClient) Shutdown() { f.shutdown = true }

type fakeExchangeManager struct {
	client *fakeSubscriptionClient
	cb     matterim.SubscriptionCallback
}

func (f *fakeExchangeManager) NewWriteClient(context.Context, matterim.NodeID, matterim.WriteCallback) (matterim.WriteClient, error) {
	panic("not used")
}

func (f *fakeExchangeManager) NewCommandSender(context.Context, matterim.NodeID, matterim.CommandCallback) (matterim.CommandSender, error) {
	panic("not used")
}

func (f *fakeExchangeManager) NewSubscription(_ context.Context, _ matterim.NodeID, _ []matterim.AttributePath, _ []matterim.EventPath, cb matterim.SubscriptionCallback) (matterim.SubscriptionClient, error) {
	f.cb = cb
	return f.client, nil
}

type fakeEventHandler struct {
	established bool
	abandoned   bool
	lastAttr    matterim.AttributePath
}

func (f *fakeEventHandler) OnSubscriptionEstablished(uint64)                             { f.established = true }
func (f *fakeEventHandler) OnAttributeChanged(path matterim.AttributePath, _ []byte)      { f.lastAttr = path }
func (f *fakeEventHandler) OnEventData(matterim.EventPath, []byte)                        {}
func (f *fakeEventHandler) AbandonSubscription()                                         { f.abandoned = true }

func TestInteractionLifecycle(t *testing.T) {
	exch := &fakeExchangeManager{client: &fakeSubscriptionClient{}}
	handler := &fakeEventHandler{}

	si, err := NewInteraction(context.Background(), exch, matterim.NodeID(1), "dev-1", nil, nil, handler)
	require.NoError(t, err)

	require.NoError(t, si.Send(context.Background(), IntervalSecs{MinIntervalFloorSecs: 1, MaxIntervalCeilingSecs: 30}))
	require.Equal(t, uint16(1), exch.client.sentFloor)
	require.Equal(t, uint16(30), exch.client.sentCeiling)

	si.OnEstablished(42)
	require.True(t, handler.established)

	si.resubscribeAttempts = 5
	delay := si.OnResubscriptionNeeded(nil)
	require.Equal(t, uint32(6), si.resubscribeAttempts)
	require.LessOrEqual(t, delay, uint32(624000))

	si.OnEstablished(43)
	require.Equal(t, uint32(0), si.resubscribeAttempts)

	path := matterim.AttributePath{Endpoint: 1, Cluster: 6, Attribute: 0}
	si.OnAttributeChanged(path, []byte{1})
	require.Equal(t, path, handler.lastAttr)

	si.Shutdown()
	require.True(t, exch.client.shutdown)
	require.True(t, handler.abandoned)
}
