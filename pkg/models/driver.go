// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package models defines the interface handler.DeviceManager uses to talk
// to a device driver without depending on its concrete type.
package models

import (
	"context"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/cache"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/device"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driver"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
	"github.com/comcast-iotdm/sbmd-matter-driver/pkg/sbmd"
)

// MatterDriver is the interface other components of the driver service use
// to interact with a spec-configured device driver: registering devices,
// serving reads from cache, and dispatching writes/executes through a
// commissioner session. SpecBasedMatterDeviceDriver is the sole concrete
// implementation; handler.DeviceManager depends on this interface, while
// the driver registry and driverfactory use the concrete type.
type MatterDriver interface {
	// Name returns the driver's registered name, "sbmd-<spec name>".
	Name() string

	// SupportedDeviceTypes returns the Matter device types this driver
	// claims.
	SupportedDeviceTypes() []uint16

	// DesiredSubscriptionInterval returns the spec's requested reporting
	// interval as parsed; subscription.NegotiateInterval does not take it
	// into account.
	DesiredSubscriptionInterval() sbmd.Reporting

	// DescribeResources enumerates every resource this driver exposes,
	// with its computed mode bitmask and caching policy.
	DescribeResources() []driver.ResourceDescriptor

	// AddDevice creates a device's runtime state, binding every resource
	// this driver's spec declares against resolveEndpoint's commissioned
	// endpoint mapping.
	AddDevice(deviceID string, dataCache *cache.DeviceDataCache, resolveEndpoint func(resourceEndpointID string) (matterim.EndpointID, error)) (*device.MatterDevice, error)

	// GetDevice returns a previously added device, or nil if unknown.
	GetDevice(deviceID string) *device.MatterDevice

	// RemoveDevice forgets a device's runtime state.
	RemoveDevice(deviceID string)

	// ReadResource maps a resource's cached attribute data to a value
	// string.
	ReadResource(deviceID, uri string) (string, error)

	// WriteResource dispatches a resource write through exch against
	// node, returning whether the driver's cache should be updated.
	WriteResource(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, deviceID, uri, newValue string) (shouldUpdateCache bool, err error)

	// ExecuteResource dispatches a resource execution through exch
	// against node and returns the mapped response value.
	ExecuteResource(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID, deviceID, uri string, args []string) (string, error)
}

var _ MatterDriver = (*driver.SpecBasedMatterDeviceDriver)(nil)
