package driver

import (
	"context"
	"fmt"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
)

// ReadResource maps a resource's cached attribute data to a value string.
// Reads never touch the device — they are always served from the data
// cache a subscription keeps current — so there is no commissioner
// involvement here, matching DoReadResource's delegation straight to
// MatterDevice::HandleResourceRead.
func (d *SpecBasedMatterDeviceDriver) ReadResource(deviceID, uri string) (string, error) {
	dev := d.GetDevice(deviceID)
	if dev == nil {
		return "", fmt.Errorf("sbmd: device %s not found", deviceID)
	}
	return dev.HandleResourceRead(uri)
}

// WriteResource dispatches a resource write through exch against node.
// Callers reach this from within a commissioner.ConnectAndExecute work
// function, matching WriteResource's delegation to
// MatterDevice::HandleResourceWrite. It always returns true for
// shouldUpdateCache on success — the base driver updates the resource's
// cached value once the write completes — mirroring the original's
// unconditional `return true`.
func (d *SpecBasedMatterDeviceDriver) WriteResource(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, deviceID, uri, newValue string) (shouldUpdateCache bool, err error) {
	dev := d.GetDevice(deviceID)
	if dev == nil {
		return false, fmt.Errorf("sbmd: device %s not found", deviceID)
	}
	if err := dev.HandleResourceWrite(ctx, exch, node, uri, newValue); err != nil {
		return false, err
	}
	return true, nil
}

// ExecuteResource dispatches a resource execution through exch against
// node and returns the mapped response value.
func (d *SpecBasedMatterDeviceDriver) ExecuteResource(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, deviceID, uri string, args []string) (string, error) {
	dev := d.GetDevice(deviceID)
	if dev == nil {
		return "", fmt.Errorf("sbmd: device %s not found", deviceID)
	}
	return dev.HandleResourceExecute(ctx, exch, node, uri, args)
}
