// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 Circutor S.A.
//
// SPDX-License-Identifier: Apache-2.0

// Command sbmd-driver is the SBMD Matter device driver's entrypoint: parse
// flags, load configuration, register every .sbmd-described driver from
// the configured directory, start the admin HTTP surface, and block until
// signaled to shut down.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/config"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/driverfactory"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/httpapi"
	"github.com/comcast-iotdm/sbmd-matter-driver/internal/startup"
)

const (
	serviceName    = "sbmd-matter-driver"
	serviceVersion = "0.1.0"
)

func main() {
	var confDir string
	var adminAddr string

	root := &cobra.Command{
		Use:     serviceName,
		Short:   "Schema-Based Matter Driver for the SBMD device-service fabric",
		Version: serviceVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(confDir, adminAddr)
		},
	}
	root.Flags().StringVar(&confDir, "confdir", "", "directory containing configuration.toml (defaults to ./res)")
	root.Flags().StringVar(&adminAddr, "admin-addr", ":48080", "address the /status and /healthz admin routes listen on")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(confDir, adminAddr string) error {
	common.ServiceName = serviceName
	common.ServiceVersion = serviceVersion

	cfg, err := config.LoadConfig(confDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	common.CurrentConfig = cfg

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	common.Log = logger.Sugar()

	if err := startup.InitDependencies(cfg, nil); err != nil {
		return fmt.Errorf("dependency initialization failed: %w", err)
	}

	registry := newDriverRegistry()
	if !driverfactory.RegisterDrivers(cfg.SbmdDirectory, registry) {
		common.Log.Warn("one or more .sbmd files failed to register; continuing with the drivers that loaded")
	}

	admin := httpapi.NewServer(registry)
	server := &http.Server{Addr: adminAddr, Handler: admin.Handler()}
	go func() {
		common.Log.Infof("admin: listening on %s", adminAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Log.Errorf("admin: server failed: %v", err)
		}
	}()

	waitForShutdown()

	common.Log.Info("shutting down")
	return server.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	return cfg.Build()
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
