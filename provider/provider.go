// Package provider defines the minimal contract shared by every
// recognition backend and the registry that constructs them by name.
package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// Closeable is implemented by providers holding resources that must be
// released when the process shuts down, such as a loaded model.
type Closeable interface {
	Close() error
}

// Factory creates a provider instance from configuration.
type Factory[T Provider] func(cfg map[string]any) (T, error)
