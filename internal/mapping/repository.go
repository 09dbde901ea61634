package mapping

import "context"

// Repository provides persistence for mapping documents.
type Repository interface {
	Create(ctx context.Context, d *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]*Document, error)
	Update(ctx context.Context, d *Document) error
	Delete(ctx context.Context, id string) error
}
