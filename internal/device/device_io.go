package device

import (
	"context"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/tlv"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

func tlvReaderOf(payload []byte) *tlv.Reader {
	return tlv.NewReader(payload)
}

// commandCallback adapts one invoke interaction's async callbacks into a
// single blocking completion, mirroring the way MatterDevice's
// CommandSender::ExtendableCallback overrides feed activeCommandContexts.
type commandCallback struct {
	onResponse func(payload []byte, err error)
	done       chan struct{}
	fatalErr   error
}

func (c *commandCallback) OnResponse(_ matterim.CommandPath, payload []byte, err error) {
	if c.onResponse != nil {
		c.onResponse(payload, err)
	} else if err != nil {
		c.fatalErr = err
	}
}

func (c *commandCallback) OnError(err error) {
	c.fatalErr = err
}

func (c *commandCallback) OnDone() {
	close(c.done)
}

// sendCommand invokes cmd on endpoint and blocks until the interaction
// completes, mirroring MatterDevice::SendCommandFromTlv. onResponse, when
// non-nil, receives the decoded response payload (nil for status-only
// responses); when nil, a non-nil response error becomes the call's
// returned error.
func (d *MatterDevice) sendCommand(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, endpoint matterim.EndpointID, cmd sbmd.Command, payload []byte, onResponse func([]byte, error)) error {
	var timeout uint16
	if cmd.TimedInvokeTimeoutMs != nil {
		timeout = uint16(*cmd.TimedInvokeTimeoutMs)
	}

	cb := &commandCallback{onResponse: onResponse, done: make(chan struct{})}
	sender, err := exch.NewCommandSender(ctx, node, cb)
	if err != nil {
		return err
	}

	path := matterim.CommandPath{Endpoint: endpoint, Cluster: matterim.ClusterID(cmd.ClusterID), Command: matterim.CommandID(cmd.CommandID)}
	if err := sender.SendCommand(ctx, path, payload, timeout); err != nil {
		sender.Close()
		return err
	}

	select {
	case <-cb.done:
	case <-ctx.Done():
		sender.Close()
		return ctx.Err()
	}
	sender.Close()
	return cb.fatalErr
}
