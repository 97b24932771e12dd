package matterim

import "context"

// ExchangeManager is the single entry point this driver uses to reach a
// node's interaction-model engine. A concrete Matter stack implements
// this; the driver core only ever calls through the interface, scheduling
// every call onto the stack's own event-loop thread.
type ExchangeManager interface {
	// NewWriteClient opens a write interaction to the given node.
	NewWriteClient(ctx context.Context, node NodeID, cb WriteCallback) (WriteClient, error)
	// NewCommandSender opens an invoke interaction to the given node.
	NewCommandSender(ctx context.Context, node NodeID, cb CommandCallback) (CommandSender, error)
	// NewSubscription opens a long-lived subscribe interaction to the
	// given node over the supplied attribute and event paths.
	NewSubscription(ctx context.Context, node NodeID, attrs []AttributePath, events []EventPath, cb SubscriptionCallback) (SubscriptionClient, error)
}

// WriteCallback mirrors chip::app::WriteClient::Callback: OnResponse and
// OnError mark the outcome of one path in the write; OnDone always fires
// exactly once, after which the context must never be touched again.
type WriteCallback interface {
	OnResponse(path AttributePath, err error)
	OnError(err error)
	OnDone()
}

// CommandCallback mirrors chip::app::CommandSender::ExtendableCallback:
// OnResponse carries the decoded TLV payload (nil for a status-only
// response); OnError marks an invoke failure; OnDone always fires exactly
// once.
type CommandCallback interface {
	OnResponse(path CommandPath, payload []byte, err error)
	OnError(err error)
	OnDone()
}

// SubscriptionCallback mirrors SubscribeInteraction's EventHandler: it
// receives lifecycle transitions and the decoded attribute/event reports
// that flow over an established subscription.
type SubscriptionCallback interface {
	OnEstablished(subscriptionID uint64)
	OnResubscriptionNeeded(terminationCause error) (nextAttemptDelayMs uint32)
	OnAttributeChanged(path AttributePath, payload []byte)
	OnEventReceived(path EventPath, payload []byte)
}

// WriteClient is a single in-flight write interaction.
type WriteClient interface {
	SendWrite(ctx context.Context, path AttributePath, payload []byte, timedInvokeTimeoutMs uint16) error
	Close()
}

// CommandSender is a single in-flight invoke interaction.
type CommandSender interface {
	SendCommand(ctx context.Context, path CommandPath, payload []byte, timedInvokeTimeoutMs uint16) error
	Close()
}

// SubscriptionClient is one long-lived subscribe interaction with
// auto-resubscribe semantics, matching SubscribeInteraction's ReadClient
// wrapper.
type SubscriptionClient interface {
	Send(ctx context.Context, minIntervalFloorSecs, maxIntervalCeilingSecs uint16) error
	Shutdown()
}
