// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/reactor/internal/adapters/cas"
	_ "go.trai.ch/reactor/internal/adapters/config"
	_ "go.trai.ch/reactor/internal/adapters/events"
	_ "go.trai.ch/reactor/internal/adapters/git"
	_ "go.trai.ch/reactor/internal/adapters/host"
	_ "go.trai.ch/reactor/internal/adapters/logger"
	_ "go.trai.ch/reactor/internal/adapters/metrics"
	_ "go.trai.ch/reactor/internal/adapters/records"
	_ "go.trai.ch/reactor/internal/adapters/shell"
	_ "go.trai.ch/reactor/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/reactor/internal/app"
	_ "go.trai.ch/reactor/internal/engine/aggregator"
	_ "go.trai.ch/reactor/internal/engine/launcher"
	_ "go.trai.ch/reactor/internal/engine/pool"
)
