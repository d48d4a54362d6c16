// Package services controls the Tor daemon through the host service manager.
package services

import (
	"context"
)

// ServiceStatus represents the current state of a service.
type ServiceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Service defines the lifecycle methods of a managed daemon.
type Service interface {
	// Name returns the unit name of the service.
	Name() string

	// Start starts the service.
	Start(ctx context.Context) error

	// Stop stops the service.
	Stop(ctx context.Context) error

	// Reload asks the service to re-read its configuration.
	Reload(ctx context.Context) error

	// Status returns the current status of the service.
	Status() ServiceStatus
}

// ServiceState is a point-in-time view of the daemon on this host.
// It is derived on every query and never cached.
type ServiceState struct {
	TorInstalled bool `json:"tor_installed"`
	TorRunning   bool `json:"tor_running"`
	Manager      Kind `json:"manager"`
}
