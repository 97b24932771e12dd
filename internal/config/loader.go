// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018 IOTech Ltd
// Copyright (c) 2019 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
)

// LoadConfig loads the local configuration file based upon the specified
// parameters and returns a pointer to the global Config struct which holds
// all of the local configuration settings for the driver. confDir is used
// to locate the local TOML config file.
func LoadConfig(confDir string) (*common.Config, error) {
	fmt.Fprintf(os.Stdout, "Init: confDir: %s\n", confDir)

	return loadConfigFromFile(confDir)
}

func loadConfigFromFile(confDir string) (config *common.Config, err error) {
	if len(confDir) == 0 {
		confDir = common.ConfigDirectory
	}

	p := path.Join(confDir, common.ConfigFileName)
	absPath, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("could not create absolute path to load configuration: %s; %v", p, err)
	}
	fmt.Fprintf(os.Stdout, "Loading configuration from: %s\n", absPath)

	// As the toml package can panic if TOML is invalid, or elements are
	// found that don't match members of the given struct, use a deferred
	// func to recover from the panic and output a useful error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("could not load configuration file; invalid TOML (%s): %v", p, r)
		}
	}()

	config = defaultConfig()
	contents, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration file (%s): %v; be sure to change to program folder or set working directory", p, err)
	}

	if err = toml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file (%s): %v", p, err)
	}

	return config, nil
}

func defaultConfig() *common.Config {
	return &common.Config{
		SbmdDirectory: common.ConfigDirectory + "/sbmd",
		LogLevel:      "info",
		Service: common.ServiceConfig{
			ConnectRetries: 3,
			TimeoutMs:      5000,
		},
		Subscription: common.SubscriptionConfig{
			DefaultFloorSecs:    uint16(common.DefaultSubscriptionFloorSecs),
			DefaultCeilingSecs:  60,
			CommFailTimeoutSecs: common.DefaultCommFailTimeoutSecs,
		},
	}
}
