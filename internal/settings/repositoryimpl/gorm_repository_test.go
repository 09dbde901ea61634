package repositoryimpl

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dhwaniris/permsync/internal/settings"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Model()))
	return NewGormRepository(db)
}

func TestGetDefaultsToDisabled(t *testing.T) {
	repo := newTestRepo(t)

	s, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.False(t, s.ApplyStrictUserPermissions)
}

func TestUpdateRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, &settings.Settings{ApplyStrictUserPermissions: true}))
	s, err := repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, s.ApplyStrictUserPermissions)

	require.NoError(t, repo.Update(ctx, &settings.Settings{ApplyStrictUserPermissions: false}))
	s, err = repo.Get(ctx)
	require.NoError(t, err)
	require.False(t, s.ApplyStrictUserPermissions)
}
