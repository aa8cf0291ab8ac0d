// Package gateway provides the public API for embedding the diagnosis gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/medsim/diagnosis-gateway/internal/registration"
	"github.com/medsim/diagnosis-gateway/internal/runtime"
)

// Gateway is the main entry point for running the diagnosis gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gateway.RegisterBuiltins()
//	gw, err := gateway.New(
//	    gateway.WithConfigFile("config.yaml"),
//	    gateway.WithLogger(logger),
//	)
var New = runtime.New

// RegisterBuiltins registers the built-in providers and frontdoors. Call it
// once before Start.
var RegisterBuiltins = registration.RegisterBuiltins

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile

	// Storage
	WithStorage     = runtime.WithStorage
	WithMemoryStore = runtime.WithMemoryStore

	// Models
	WithCompleter = runtime.WithCompleter
	WithEmbedder  = runtime.WithEmbedder

	// Observability
	WithLogger         = runtime.WithLogger
	WithMetricsHandler = runtime.WithMetricsHandler
)
