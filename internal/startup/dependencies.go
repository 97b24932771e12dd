// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 IOTech Ltd
// Copyright (c) 2019 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package startup validates configuration and waits for the Matter stack's
// commissioner to come up before the driver starts registering devices, by
// polling a readiness probe against the local Matter exchange manager.
package startup

import (
	"fmt"
	"time"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/providers"
)

// ReadyFunc reports whether the Matter stack is ready to accept
// commissioner work. A concrete caller wires this to a single lightweight
// call against its ExchangeManager implementation (for example, confirming
// the local fabric table has been loaded).
type ReadyFunc func() error

// InitDependencies validates cfg and polls ready until it succeeds, using
// cfg.Service's configured retry count and timeout, matching
// checkServiceAvailable's "poll N times, sleep Timeout between attempts"
// loop. It returns an error if configuration is invalid or the stack never
// becomes ready within the configured retry budget.
func InitDependencies(cfg *common.Config, ready ReadyFunc) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	if err := waitForMatterStack(cfg, ready); err != nil {
		return err
	}

	if common.Log != nil {
		common.Log.Info("startup: dependencies initialized successfully")
	}
	return nil
}

func validateConfig(cfg *common.Config) error {
	if cfg.SbmdDirectory == "" {
		return fmt.Errorf("fatal error: SbmdDirectory not configured")
	}

	if !providers.NewInstanceInfoProvider(&cfg.InstanceInfo).ValidateProperties() {
		return fmt.Errorf("fatal error: required InstanceInfo properties missing from configuration")
	}

	return nil
}

func waitForMatterStack(cfg *common.Config, ready ReadyFunc) error {
	if ready == nil {
		return nil
	}

	retries := cfg.Service.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	timeout := time.Duration(cfg.Service.TimeoutMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if lastErr = ready(); lastErr == nil {
			return nil
		}
		if common.Log != nil {
			common.Log.Debugf("startup: matter stack not ready (attempt %d/%d): %v", attempt+1, retries, lastErr)
		}
		if attempt < retries-1 {
			time.Sleep(timeout)
		}
	}

	if common.Log != nil {
		common.Log.Errorf("startup: matter stack readiness check timed out: %v", lastErr)
	}
	return fmt.Errorf("matter stack dependency check timed out: %w", lastErr)
}
