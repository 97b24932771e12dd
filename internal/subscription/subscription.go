// Package subscription implements the long-lived subscribe interaction a
// device's attribute and event reporting rides on: establishment, the
// Fibonacci+jitter resubscription backoff, and interval negotiation
// against a device's comm-fail timeout.
package subscription

import (
	"context"
	"fmt"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
)

// IntervalSecs is the negotiated [floor, ceiling] reporting interval sent
// in a subscribe request, matching SubscriptionIntervalSecs.
type IntervalSecs struct {
	MinIntervalFloorSecs   uint16
	MaxIntervalCeilingSecs uint16
}

// NegotiateInterval derives a subscription interval for a device whose
// comm-fail timeout is commFailTimeoutSecs: the ceiling is kept strictly
// below the comm-fail timeout so a missed report is detected as device
// unavailability before the comm-fail alarm itself would fire, and the
// floor never exceeds the ceiling.
func NegotiateInterval(commFailTimeoutSecs uint32) IntervalSecs {
	ceiling := commFailTimeoutSecs / 2
	if ceiling == 0 {
		ceiling = 1
	}
	if ceiling > 0xFFFF {
		ceiling = 0xFFFF
	}
	floor := uint32(common.DefaultSubscriptionFloorSecs)
	if floor > ceiling {
		floor = ceiling
	}
	return IntervalSecs{MinIntervalFloorSecs: uint16(floor), MaxIntervalCeilingSecs: uint16(ceiling)}
}

// EventHandler receives a subscription's lifecycle transitions and the
// attribute/event reports it delivers, mirroring SubscribeInteraction's
// inner EventHandler interface.
type EventHandler interface {
	OnSubscriptionEstablished(subscriptionID uint64)
	OnAttributeChanged(path matterim.AttributePath, payload []byte)
	OnEventData(path matterim.EventPath, payload []byte)
	AbandonSubscription()
}

// Interaction wraps one device's subscribe interaction: the
// resubscribe-attempt counter that feeds the backoff algorithm and the
// SubscriptionClient it drives through matterim.ExchangeManager.
type Interaction struct {
	deviceID string
	handler  EventHandler
	client   matterim.SubscriptionClient

	resubscribeAttempts uint32
}

// NewInteraction opens a subscription to node over attrs/events through
// exch, handing report callbacks to handler.
func NewInteraction(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, deviceID string, attrs []matterim.AttributePath, events []matterim.EventPath, handler EventHandler) (*Interaction, error) {
	si := &Interaction{deviceID: deviceID, handler: handler}
	client, err := exch.NewSubscription(ctx, node, attrs, events, si)
	if err != nil {
		return nil, fmt.Errorf("sbmd: %s: opening subscription: %w", deviceID, err)
	}
	si.client = client
	return si, nil
}

// Send starts the subscription at the given negotiated interval.
func (si *Interaction) Send(ctx context.Context, interval IntervalSecs) error {
	return si.client.Send(ctx, interval.MinIntervalFloorSecs, interval.MaxIntervalCeilingSecs)
}

// Shutdown tears down the subscription and abandons any handler state.
func (si *Interaction) Shutdown() {
	if si.client != nil {
		si.client.Shutdown()
	}
	si.handler.AbandonSubscription()
}

// OnEstablished implements matterim.SubscriptionCallback: a successful
// (re)establishment resets the resubscribe-attempt counter, matching
// SubscribeInteraction::OnSubscriptionEstablished.
func (si *Interaction) OnEstablished(subscriptionID uint64) {
	si.resubscribeAttempts = 0
	si.handler.OnSubscriptionEstablished(subscriptionID)
}

// OnResubscriptionNeeded implements matterim.SubscriptionCallback: it
// increments the attempt counter and returns the next backoff delay,
// matching SubscribeInteraction::OnResubscriptionNeeded /
// CustomComputeTimeTillNextSubscription.
func (si *Interaction) OnResubscriptionNeeded(terminationCause error) uint32 {
	si.resubscribeAttempts++
	return ComputeResubscribeWaitMs(si.resubscribeAttempts)
}

// OnAttributeChanged implements matterim.SubscriptionCallback.
func (si *Interaction) OnAttributeChanged(path matterim.AttributePath, payload []byte) {
	si.handler.OnAttributeChanged(path, payload)
}

// OnEventReceived implements matterim.SubscriptionCallback.
func (si *Interaction) OnEventReceived(path matterim.EventPath, payload []byte) {
	si.handler.OnEventData(path, payload)
}

var _ matterim.SubscriptionCallback = (*Interaction)(nil)
