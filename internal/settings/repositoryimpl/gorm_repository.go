package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dhwaniris/permsync/internal/settings"
	"github.com/dhwaniris/permsync/pkg/cerr"
)

// settingsRow is the single-row table holding system settings.
type settingsRow struct {
	ID                         uint `gorm:"primaryKey"`
	ApplyStrictUserPermissions bool
}

func (settingsRow) TableName() string {
	return "system_settings"
}

// Model exposes the gorm model for schema migration.
func Model() any {
	return &settingsRow{}
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Get(ctx context.Context) (*settings.Settings, error) {
	var row settingsRow
	err := r.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &settings.Settings{}, nil
	}
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to read settings: %w", err))
	}
	return &settings.Settings{
		ApplyStrictUserPermissions: row.ApplyStrictUserPermissions,
	}, nil
}

func (r *GormRepository) Update(ctx context.Context, s *settings.Settings) error {
	row := settingsRow{
		ID:                         1,
		ApplyStrictUserPermissions: s.ApplyStrictUserPermissions,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to write settings: %w", err))
	}
	return nil
}
