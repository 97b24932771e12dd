// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package httpapi serves the driver's small admin surface: liveness and a
// status summary of registered drivers and devices.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
)

// DriverSummary is one registered driver's identity and resource count, as
// reported by GET /status.
type DriverSummary struct {
	Name          string `json:"name"`
	ResourceCount int    `json:"resourceCount"`
}

// StatusProvider supplies the data GET /status reports. A concrete
// registry implements this directly.
type StatusProvider interface {
	Drivers() []DriverSummary
}

// Server wraps a mux.Router with this driver's admin routes, matching
// initUpdate's "s.r.HandleFunc(path, handler)" registration style.
type Server struct {
	r *mux.Router
}

// NewServer builds a Server exposing status for the drivers status
// reports on.
func NewServer(status StatusProvider) *Server {
	s := &Server{r: mux.NewRouter()}
	s.initRoutes(status)
	return s
}

// Handler returns the underlying http.Handler for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) initRoutes(status StatusProvider) {
	s.r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	s.r.HandleFunc("/status", statusHandler(status)).Methods(http.MethodGet)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func statusHandler(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		drivers := status.Drivers()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(drivers); err != nil {
			if common.Log != nil {
				common.Log.Errorf("httpapi: encoding status response: %v", err)
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
