// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 Circutor S.A.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sync"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driver"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/httpapi"
)

// driverRegistry is the process-wide set of drivers driverfactory.RegisterDrivers
// populates from the configured .sbmd directory, keyed by name. It
// satisfies both driverfactory.Registry and httpapi.StatusProvider, so the
// same set backs both device registration and the /status admin route.
type driverRegistry struct {
	mu      sync.RWMutex
	drivers map[string]*driver.SpecBasedMatterDeviceDriver
}

func newDriverRegistry() *driverRegistry {
	return &driverRegistry{drivers: map[string]*driver.SpecBasedMatterDeviceDriver{}}
}

// RegisterDriver implements driverfactory.Registry.
func (r *driverRegistry) RegisterDriver(d *driver.SpecBasedMatterDeviceDriver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[d.Name()]; exists {
		return fmt.Errorf("driver %s already registered", d.Name())
	}
	r.drivers[d.Name()] = d
	return nil
}

// Drivers implements httpapi.StatusProvider.
func (r *driverRegistry) Drivers() []httpapi.DriverSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]httpapi.DriverSummary, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, httpapi.DriverSummary{
			Name:          d.Name(),
			ResourceCount: len(d.DescribeResources()),
		})
	}
	return out
}

// driverByDeviceType returns the first registered driver claiming
// deviceType, or nil if none does.
func (r *driverRegistry) driverByDeviceType(deviceType uint16) *driver.SpecBasedMatterDeviceDriver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.drivers {
		for _, dt := range d.SupportedDeviceTypes() {
			if dt == deviceType {
				return d
			}
		}
	}
	return nil
}
