package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
)

func TestFactory_SharedIsSingleton(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	f := repository.NewFactory(db)
	assert.Same(t, f.Shared(), f.Shared())
	assert.Same(t, db, f.DB())
	assert.NotSame(t, f.Shared(), f.ForContext(context.Background()))
}

func TestProfileRepository_UpsertOverwrites(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	repo := repository.NewFactory(db).ForContext(context.Background()).Profile

	require.NoError(t, repo.Upsert(&models.UserProfile{UserID: "u-1", Phone: "0712345678", SMSOptIn: true, EmailOptIn: true}))
	require.NoError(t, repo.Upsert(&models.UserProfile{UserID: "u-1", Phone: "254700000001", SMSOptIn: false, EmailOptIn: true}))

	p, err := repo.GetByUserID("u-1")
	require.NoError(t, err)
	assert.Equal(t, "254700000001", p.Phone)
	assert.False(t, p.SMSOptIn)
}

func TestProfileRepository_ListAdminIDs(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.AdminUser{ID: "b-admin"}).Error)
	require.NoError(t, db.Create(&models.AdminUser{ID: "a-admin"}).Error)

	ids, err := repository.NewProfileRepository(db).ListAdminIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-admin", "b-admin"}, ids)
}
