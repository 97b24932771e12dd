// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
// Copyright (c) 2019 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package common

import "time"

const (
	ConfigDirectory = "./res"
	ConfigFileName  = "configuration.toml"

	// BaseDriverName prefixes every device claimed by this driver, matching
	// the original "sbmd-" device-type namespace.
	BaseDriverName = "sbmd-"

	// Default per-operation timeouts for work scheduled onto the Matter
	// stack's single event-loop thread.
	DefaultAsyncDeviceTimeout    = 15 * time.Second
	DefaultSynchronizeTimeout    = 90 * time.Second
	DefaultReconfigurationDelay  = 60 * time.Second
	DefaultCommFailTimeoutSecs   = 60 * 60
	DefaultSubscriptionFloorSecs = 1

	// Resubscription backoff bounds. ResubscribeBaseMs mirrors the Matter
	// SDK's own CHIP_RESUBSCRIBE_WAIT_TIME_MULTIPLIER_MS default; the rest
	// narrow the SDK's open-ended retry interval to a bounded ceiling so a
	// recovering device is retried within a reasonable time.
	ResubscribeBaseMs                = 300
	ResubscribeMaxFibonacciStepIndex = 10
	ResubscribeMaxRetryWaitMs        = 624000
	ResubscribeMinPercent            = 30

	MaxSubscriptions        = 3
	MaxPathsPerSubscribe    = 3
	MaxPathsPerPublisher    = MaxSubscriptions * MaxPathsPerSubscribe
	MaxTimedInvokeTimeoutMs = 65535
)
