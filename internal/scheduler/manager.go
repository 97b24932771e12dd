// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package scheduler arms and disarms the per-device resubscription timers a
// dropped subscription needs, keyed by device ID: a resubscribe attempt is
// not a recurring job, it is a single backoff wait whose next occurrence
// (if any) is only known once the previous attempt has failed.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/subscription"
)

var (
	mgrOnce sync.Once
	mgr     *Manager
)

// Manager arms one pending resubscribe timer per device at a time, guarded
// by a mutex-protected entry map and backed by time.AfterFunc rather than
// a cron spec, since a resubscribe wait is a one-shot delay, not a
// recurring schedule.
type Manager struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewManager constructs an empty Manager. Most callers use the process-wide
// instance returned by Default.
func NewManager() *Manager {
	return &Manager{timers: make(map[string]*time.Timer)}
}

// Default returns the process-wide scheduler instance, constructing it on
// first use.
func Default() *Manager {
	mgrOnce.Do(func() {
		mgr = NewManager()
	})
	return mgr
}

// ScheduleResubscribe arms a one-shot timer for deviceID that fires onFire
// after the backoff wait computed for attempt. Re-arming a device that
// already has a pending timer replaces it, matching
// AddScheduleEvent/RemoveScheduleEvent's "one active entry per name"
// invariant.
func (m *Manager) ScheduleResubscribe(deviceID string, attempt uint32, onFire func()) {
	waitMs := subscription.ComputeResubscribeWaitMs(attempt)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.timers[deviceID]; ok {
		existing.Stop()
	}

	if common.Log != nil {
		common.Log.Infof("scheduler: device %s: resubscribe attempt %d in %dms", deviceID, attempt, waitMs)
	}
	m.timers[deviceID] = time.AfterFunc(time.Duration(waitMs)*time.Millisecond, onFire)
}

// CancelResubscribe disarms deviceID's pending resubscribe timer, if any.
// It returns an error if no timer was armed, matching
// RemoveScheduleEvent's "does not exist" failure mode.
func (m *Manager) CancelResubscribe(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	timer, ok := m.timers[deviceID]
	if !ok {
		return fmt.Errorf("scheduler: no resubscribe timer armed for device %s", deviceID)
	}
	timer.Stop()
	delete(m.timers, deviceID)
	return nil
}

// StopAll disarms every pending resubscribe timer, used during shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for deviceID, timer := range m.timers {
		timer.Stop()
		delete(m.timers, deviceID)
	}
	if common.Log != nil {
		common.Log.Info("scheduler: stopped all resubscribe timers")
	}
}
