// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package handler wires a driver's device lifecycle together: adding a
// device creates its data cache and runtime bindings, opens its
// subscription, and starts report delivery; removing a device tears the
// subscription down and forgets its runtime state.
package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/cache"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/commissioner"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/device"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/subscription"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/models"
)

// EventSink receives resource value changes produced by a device's
// subscription, for delivery upstream (an event bus, a webhook, whatever a
// concrete deployment wires in).
type EventSink interface {
	OnResourceEvent(deviceID, uri, value string)
}

// DeviceManager owns every device's active subscription, keyed by device
// ID, so RemoveDevice can tear one down without the caller having to track
// it separately.
type DeviceManager struct {
	sink EventSink

	mu            sync.RWMutex
	subscriptions map[string]*subscription.Interaction
}

// NewDeviceManager constructs a DeviceManager that delivers resource
// events to sink.
func NewDeviceManager(sink EventSink) *DeviceManager {
	return &DeviceManager{
		sink:          sink,
		subscriptions: map[string]*subscription.Interaction{},
	}
}

// OnResourceEvent implements device.ResourceSink, forwarding a device's
// mapped attribute-report resource updates to the manager's own EventSink.
func (m *DeviceManager) OnResourceEvent(deviceID, uri, value string) {
	if m.sink != nil {
		m.sink.OnResourceEvent(deviceID, uri, value)
	}
}

// AddDevice binds deviceID's resources against driver, negotiates and
// opens its subscription, and starts report delivery. connect supplies the
// commissioner session; commFailTimeoutSecs bounds the negotiated
// subscription ceiling; timeout bounds how long the whole sequence may
// take to complete.
func (m *DeviceManager) AddDevice(
	ctx context.Context,
	driver models.MatterDriver,
	connect commissioner.ConnectFunc,
	deviceID string,
	commFailTimeoutSecs uint32,
	resolveEndpoint func(resourceEndpointID string) (matterim.EndpointID, error),
	timeout time.Duration,
) error {
	dataCache := cache.NewDeviceDataCache()

	work := func(wctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID) ([]commissioner.Completion, error) {
		dev, err := driver.AddDevice(deviceID, dataCache, resolveEndpoint)
		if err != nil {
			return nil, fmt.Errorf("sbmd: adding device %s: %w", deviceID, err)
		}
		dev.SetResourceSink(m)

		attrs, events := dev.SubscriptionPaths()
		interval := subscription.NegotiateInterval(commFailTimeoutSecs)

		eh := &deviceEventHandler{manager: m, deviceID: deviceID, dev: dev}
		interaction, err := subscription.NewInteraction(wctx, exch, node, deviceID, attrs, events, eh)
		if err != nil {
			driver.RemoveDevice(deviceID)
			return nil, err
		}

		m.mu.Lock()
		m.subscriptions[deviceID] = interaction
		m.mu.Unlock()

		completion := commissioner.NewCompletion()
		go func() { completion <- interaction.Send(wctx, interval) }()
		return []commissioner.Completion{completion}, nil
	}

	if err := commissioner.ConnectAndExecute(ctx, connect, work, timeout); err != nil {
		m.mu.Lock()
		delete(m.subscriptions, deviceID)
		m.mu.Unlock()
		driver.RemoveDevice(deviceID)
		return err
	}

	if common.Log != nil {
		common.Log.Infof("handler: added device %s", deviceID)
	}
	return nil
}

// Reconfigure tears down deviceID's current subscription and re-adds it
// with a new comm-fail timeout, waiting common.DefaultReconfigurationDelay
// before resubscribing so a device that is mid-renegotiation on its own
// side has time to settle before a fresh subscribe request arrives.
func (m *DeviceManager) Reconfigure(
	ctx context.Context,
	driver models.MatterDriver,
	connect commissioner.ConnectFunc,
	deviceID string,
	newCommFailTimeoutSecs uint32,
	resolveEndpoint func(resourceEndpointID string) (matterim.EndpointID, error),
	timeout time.Duration,
) error {
	m.RemoveDevice(driver, deviceID)

	select {
	case <-time.After(common.DefaultReconfigurationDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return m.AddDevice(ctx, driver, connect, deviceID, newCommFailTimeoutSecs, resolveEndpoint, timeout)
}

// RemoveDevice shuts down deviceID's subscription, if any, and forgets its
// runtime state in driver.
func (m *DeviceManager) RemoveDevice(driver models.MatterDriver, deviceID string) {
	m.mu.Lock()
	interaction, ok := m.subscriptions[deviceID]
	delete(m.subscriptions, deviceID)
	m.mu.Unlock()

	if ok {
		interaction.Shutdown()
	}
	driver.RemoveDevice(deviceID)

	if common.Log != nil {
		common.Log.Infof("handler: removed device %s", deviceID)
	}
}

// deviceEventHandler adapts a subscription.Interaction's lifecycle and
// report callbacks onto a device's data cache and the manager's event
// sink.
type deviceEventHandler struct {
	manager  *DeviceManager
	deviceID string
	dev      *device.MatterDevice
}

func (h *deviceEventHandler) OnSubscriptionEstablished(subscriptionID uint64) {
	if common.Log != nil {
		common.Log.Infof("handler: device %s: subscription established (id=%d)", h.deviceID, subscriptionID)
	}
	h.dev.UpdateCachedFeatureMaps()
}

// OnAttributeChanged feeds the raw report into the device's data cache;
// the cache's registered change callback (the device itself) takes it from
// there to map the affected resource, matching CacheCallback::OnAttributeChanged's
// role of bridging a report into resource-level change notification.
func (h *deviceEventHandler) OnAttributeChanged(path matterim.AttributePath, payload []byte) {
	h.dev.GetDeviceDataCache().SetAttributeData(path, payload)
}

func (h *deviceEventHandler) OnEventData(path matterim.EventPath, payload []byte) {
	uri, value, ok, err := h.dev.OnEventReceived(path, payload)
	if err != nil {
		if common.Log != nil {
			common.Log.Errorf("handler: device %s: event mapping failed: %v", h.deviceID, err)
		}
		return
	}
	if !ok {
		return
	}
	if h.manager.sink != nil {
		h.manager.sink.OnResourceEvent(h.deviceID, uri, value)
	}
}

func (h *deviceEventHandler) AbandonSubscription() {
	if common.Log != nil {
		common.Log.Infof("handler: device %s: subscription abandoned", h.deviceID)
	}
}

var _ subscription.EventHandler = (*deviceEventHandler)(nil)
var _ device.ResourceSink = (*DeviceManager)(nil)
