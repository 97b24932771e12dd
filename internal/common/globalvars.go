// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

import "go.uber.org/zap"

var (
	ServiceName    string
	ServiceVersion string
	CurrentConfig  *Config
	Log            *zap.SugaredLogger
)

// Config is the service-level runtime configuration, loaded from
// configuration.toml. It is distinct from an .sbmd bundle, which describes
// a single device type's resource mappings rather than service behavior.
type Config struct {
	Service        ServiceConfig
	Subscription   SubscriptionConfig
	InstanceInfo   InstanceInfoConfig
	SbmdDirectory  string
	LogLevel       string
}

// ServiceConfig holds generic service bring-up settings: how many times to
// poll a dependency before giving up, and how long to wait between polls.
type ServiceConfig struct {
	ConnectRetries int
	TimeoutMs      int
}

// SubscriptionConfig holds the default reporting interval and the
// comm-fail timeout used to bound negotiated subscription ceilings.
type SubscriptionConfig struct {
	DefaultFloorSecs   uint16
	DefaultCeilingSecs uint16
	CommFailTimeoutSecs int
}

// InstanceInfoConfig carries the onboarding/commissioning-payload fields a
// DeviceInstanceInfoProvider would otherwise source from device attestation
// storage: vendor/product identifiers, discriminator, setup passcode, the
// SPAKE2+ verifier parameters used during PASE, and the descriptive fields
// surfaced through Matter's Basic Information cluster.
type InstanceInfoConfig struct {
	VendorID          uint16
	ProductID         uint16
	Discriminator     uint16
	SetupPasscode     uint32
	Spake2pIterations uint32
	Spake2pSalt       string
	Spake2pVerifier   string

	VendorName            string
	ProductName           string
	PartNumber            string
	ProductURL            string
	ProductLabel          string
	SerialNumber          string
	ManufacturingDate     string // "YYYY-MM-DD"
	HardwareVersion       uint16
	HardwareVersionString string
	SoftwareVersionString string
	RotatingDeviceIDUniqueID string // hex-encoded
}
