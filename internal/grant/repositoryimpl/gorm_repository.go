package repositoryimpl

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dhwaniris/permsync/internal/grant"
	"github.com/dhwaniris/permsync/pkg/cerr"
)

// Model exposes the gorm model for schema migration.
func Model() any {
	return &grant.Grant{}
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, g *grant.Grant) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to create grant: %w", err))
	}
	return nil
}

func (r *GormRepository) List(ctx context.Context, f grant.Filter) ([]*grant.Grant, error) {
	var grants []*grant.Grant
	if err := applyFilter(r.db.WithContext(ctx), f).Order("id").Find(&grants).Error; err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to list grants: %w", err))
	}
	return grants, nil
}

func (r *GormRepository) DeleteMatching(ctx context.Context, f grant.Filter) (int64, error) {
	res := applyFilter(r.db.WithContext(ctx), f).Delete(&grant.Grant{})
	if res.Error != nil {
		return 0, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to delete grants: %w", res.Error))
	}
	return res.RowsAffected, nil
}

func applyFilter(db *gorm.DB, f grant.Filter) *gorm.DB {
	q := db.Model(&grant.Grant{})
	if f.User != "" {
		// user is a reserved word in Postgres; the column must be quoted.
		q = q.Where(clause.Eq{Column: clause.Column{Name: "user"}, Value: f.User})
	}
	if f.Allow != "" {
		q = q.Where("allow = ?", f.Allow)
	}
	if f.ForValue != "" {
		q = q.Where("for_value = ?", f.ForValue)
	}
	if f.ApplyToAllDoctypes != nil {
		q = q.Where("apply_to_all_doctypes = ?", *f.ApplyToAllDoctypes)
	}
	if f.ApplicableFor != nil {
		q = q.Where("applicable_for = ?", *f.ApplicableFor)
	}
	if f.OwnerDocument != "" {
		q = q.Where("owner_document = ?", f.OwnerDocument)
	}
	return q
}
