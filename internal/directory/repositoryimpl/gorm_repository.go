package repositoryimpl

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dhwaniris/permsync/internal/directory"
	"github.com/dhwaniris/permsync/pkg/cerr"
)

// Models exposes the gorm models for schema migration.
func Models() []any {
	return []any{&directory.User{}, &directory.RoleAssignment{}}
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) UsersWithRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	enabled := r.db.Model(&directory.User{}).
		Select("name").
		Where("enabled = ?", true)

	var assigned []string
	err := r.db.WithContext(ctx).
		Model(&directory.RoleAssignment{}).
		Where("role IN ? AND parent_type = ?", roles, directory.ParentTypeUser).
		// user is a reserved word in Postgres; the column must be quoted.
		Where(clause.Expr{SQL: "? IN (?)", Vars: []any{clause.Column{Name: "user"}, enabled}}).
		Order("id").
		Pluck("user", &assigned).Error
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to resolve role members: %w", err))
	}

	// De-duplicate preserving first-seen (assignment) order.
	seen := make(map[string]struct{}, len(assigned))
	users := make([]string, 0, len(assigned))
	for _, u := range assigned {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		users = append(users, u)
	}
	return users, nil
}

func (r *GormRepository) Search(ctx context.Context, txt string, roles []string, start, pageLen int) ([]directory.Match, error) {
	q := r.db.WithContext(ctx).
		Model(&directory.User{}).
		Select("name", "full_name").
		// No wildcard escaping: literal % and _ in the input act as SQL
		// wildcards, same as the upstream autocomplete behaved.
		Where("name LIKE ?", "%"+txt+"%").
		Where("enabled = ?", true)
	if len(roles) > 0 {
		sub := r.db.Model(&directory.RoleAssignment{}).
			Distinct("user").
			Where("role IN ?", roles)
		q = q.Where("name IN (?)", sub)
	}

	var rows []directory.User
	if err := q.Order("name").Offset(start).Limit(pageLen).Find(&rows).Error; err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to search users: %w", err))
	}
	matches := make([]directory.Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, directory.Match{ID: row.ID, FullName: row.FullName})
	}
	return matches, nil
}

func (r *GormRepository) CreateUser(ctx context.Context, u *directory.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to create user: %w", err))
	}
	return nil
}

func (r *GormRepository) AssignRole(ctx context.Context, a *directory.RoleAssignment) error {
	if a.ParentType == "" {
		a.ParentType = directory.ParentTypeUser
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to assign role: %w", err))
	}
	return nil
}
