package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"carshare-server/models"
	"carshare-server/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/kataras/iris/v12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func buildUserTestApp(t *testing.T) *iris.Application {
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

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Listing{}, &models.Booking{}))
	storage.DB = db

	mr := miniredis.RunT(t)
	storage.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := iris.New()
	app.Validator = validator.New()

	user := app.Party("/api/user")
	{
		user.Post("/register", Register)
		user.Post("/login", Login)
	}

	require.NoError(t, app.Build())
	return app
}

func TestRegisterAndLogin(t *testing.T) {
	app := buildUserTestApp(t)

	registered := doJSON(t, app, http.MethodPost, "/api/user/register", "",
		`{"name":"Aatish","email":"a@gmail.com","password":"secret1","role":"Owner"}`)
	require.Equal(t, http.StatusOK, registered.Code, registered.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(registered.Body.Bytes(), &body))
	assert.Equal(t, "Owner", body["role"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	loggedIn := doJSON(t, app, http.MethodPost, "/api/user/login", "",
		`{"email":"a@gmail.com","password":"secret1","role":"Owner"}`)
	assert.Equal(t, http.StatusOK, loggedIn.Code, loggedIn.Body.String())
}

// The role claimed at sign-in must match the role fixed at signup.
func TestLoginRejectsWrongRole(t *testing.T) {
	app := buildUserTestApp(t)

	registered := doJSON(t, app, http.MethodPost, "/api/user/register", "",
		`{"name":"Aatish","email":"a@gmail.com","password":"secret1","role":"Owner"}`)
	require.Equal(t, http.StatusOK, registered.Code)

	resp := doJSON(t, app, http.MethodPost, "/api/user/login", "",
		`{"email":"a@gmail.com","password":"secret1","role":"Renter"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	app := buildUserTestApp(t)

	registered := doJSON(t, app, http.MethodPost, "/api/user/register", "",
		`{"name":"Aatish","email":"a@gmail.com","password":"secret1","role":"Renter"}`)
	require.Equal(t, http.StatusOK, registered.Code)

	resp := doJSON(t, app, http.MethodPost, "/api/user/login", "",
		`{"email":"a@gmail.com","password":"wrong!","role":"Renter"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	app := buildUserTestApp(t)

	first := doJSON(t, app, http.MethodPost, "/api/user/register", "",
		`{"name":"Aatish","email":"a@gmail.com","password":"secret1","role":"Renter"}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, app, http.MethodPost, "/api/user/register", "",
		`{"name":"Someone","email":"A@gmail.com","password":"secret2","role":"Owner"}`)
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	app := buildUserTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/user/register", "",
		`{"name":"Aatish","email":"a@gmail.com","password":"secret1","role":"Admin"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
