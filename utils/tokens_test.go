package utils

import (
	"os"
	"testing"

	"carshare-server/models"
	"carshare-server/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTokenTest(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")
	os.Setenv("REFRESH_TOKEN_SECRET", "testsecret2")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}))
	storage.DB = db

	mr := miniredis.RunT(t)
	storage.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr
}

func TestCreateTokenPairWhitelistsRefreshToken(t *testing.T) {
	mr := setupTokenTest(t)

	user := models.User{Name: "Aatish", Email: "a@gmail.com", Role: models.RoleOwner}
	require.NoError(t, storage.DB.Create(&user).Error)

	pair, err := CreateTokenPair(user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	whitelisted, err := mr.Get(string(pair.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, "true", whitelisted)
}

// A token pair for an unknown user must fail outright, not fall back to a
// default role. A refresh for a since-deleted account dies here.
func TestCreateTokenPairFailsForMissingUser(t *testing.T) {
	setupTokenTest(t)

	_, err := CreateTokenPair(999)
	assert.Error(t, err)
}
