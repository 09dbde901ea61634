package settings

import "context"

// Repository provides persistence for the system settings singleton.
type Repository interface {
	// Get returns the current settings. Returns zero-valued Settings
	// (not an error) if none have been stored yet.
	Get(ctx context.Context) (*Settings, error)

	// Update replaces the stored settings.
	Update(ctx context.Context, s *Settings) error
}
