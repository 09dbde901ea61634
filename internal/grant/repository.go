package grant

import "context"

// Repository persists individual permission grants.
type Repository interface {
	Create(ctx context.Context, g *Grant) error

	// List returns grants matching the filter, in creation order.
	List(ctx context.Context, f Filter) ([]*Grant, error)

	// DeleteMatching removes all grants matching the filter and reports
	// how many rows went away.
	DeleteMatching(ctx context.Context, f Filter) (int64, error)
}
