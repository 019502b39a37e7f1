package routes

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"carshare-server/models"
	"carshare-server/storage"
	"carshare-server/utils"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

func Register(ctx iris.Context) {
	var userInput RegisterUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !slices.Contains([]string{models.RoleRenter, models.RoleOwner}, userInput.Role) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "role must be Renter or Owner", ctx)
		return
	}

	var newUser models.User
	userExists, userExistsErr := getAndHandleUserExists(&newUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if userExists {
		utils.CreateEmailAlreadyRegistered(ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(userInput.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	profileImageURL := ""
	if userInput.ProfileImage != "" {
		url, uploadErr := storage.UploadBase64Image(userInput.ProfileImage, "profile_"+uuid.NewString())
		if uploadErr != nil {
			utils.CreateError(iris.StatusBadGateway, "Upload Error", "Failed to store profile image.", ctx)
			return
		}
		profileImageURL = url
	}

	newUser = models.User{
		Name:            userInput.Name,
		Email:           strings.ToLower(userInput.Email),
		Password:        hashedPassword,
		Role:            userInput.Role,
		ProfileImageURL: profileImageURL,
		SocialLogin:     false,
	}

	if err := storage.DB.Create(&newUser).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	returnUser(newUser, ctx)
}

// Login authenticates with email and password, and re-asserts the role the
// client claims to be signing in as. A mismatch against the stored role is
// rejected, matching the sign-in rule of the mobile app.
func Login(ctx iris.Context) {
	var userInput LoginUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existingUser models.User
	errorMsg := "Invalid email or password."
	userExists, userExistsErr := getAndHandleUserExists(&existingUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	if existingUser.SocialLogin {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Social Login Account", ctx)
		return
	}

	passwordErr := bcrypt.CompareHashAndPassword([]byte(existingUser.Password), []byte(userInput.Password))
	if passwordErr != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	if existingUser.Role != userInput.Role {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid user type", ctx)
		return
	}

	returnUser(existingUser, ctx)
}

// GoogleLoginOrSignUp verifies a Google ID token against Google's JWKS and
// signs the user in, creating the account on first sight. The role is taken
// from the request on first sign-up and immutable afterwards.
func GoogleLoginOrSignUp(ctx iris.Context) {
	var userInput GoogleUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	res, httpErr := http.Get(googleJWKSURL)
	if httpErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	defer res.Body.Close()

	body, bodyErr := io.ReadAll(res.Body)
	if bodyErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	jwks, jwksErr := keyfunc.NewJSON(body)
	if jwksErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	token, tokenErr := jwt.Parse(userInput.IdentityToken, jwks.Keyfunc)
	if tokenErr != nil || !token.Valid {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid user token.", ctx)
		return
	}

	claims := token.Claims.(jwt.MapClaims)
	email := fmt.Sprint(claims["email"])
	if email == "" || email == "<nil>" {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Token carries no email.", ctx)
		return
	}

	var user models.User
	userExists, userExistsErr := getAndHandleUserExists(&user, email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		if !slices.Contains([]string{models.RoleRenter, models.RoleOwner}, userInput.Role) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "role must be Renter or Owner", ctx)
			return
		}
		user = models.User{
			Name:           fmt.Sprint(claims["name"]),
			Email:          strings.ToLower(email),
			Role:           userInput.Role,
			SocialLogin:    true,
			SocialProvider: "Google",
		}
		if err := storage.DB.Create(&user).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		returnUser(user, ctx)
		return
	}

	if user.SocialLogin && user.SocialProvider == "Google" {
		returnUser(user, ctx)
		return
	}

	utils.CreateEmailAlreadyRegistered(ctx)
}

func GetUser(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":              user.ID,
		"name":            user.Name,
		"email":           user.Email,
		"role":            user.Role,
		"profileImageURL": user.ProfileImageURL,
	})
}

func getAndHandleUserExists(user *models.User, email string) (exists bool, err error) {
	userExistsQuery := storage.DB.Where("email = ?", strings.ToLower(email)).Limit(1).Find(user)

	if userExistsQuery.Error != nil && userExistsQuery.Error != gorm.ErrRecordNotFound {
		return false, userExistsQuery.Error
	}

	return userExistsQuery.RowsAffected > 0, nil
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func returnUser(user models.User, ctx iris.Context) {
	tokenPair, tokenErr := utils.CreateTokenPair(user.ID)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":              user.ID,
		"name":            user.Name,
		"email":           user.Email,
		"role":            user.Role,
		"profileImageURL": user.ProfileImageURL,
		"accessToken":     string(tokenPair.AccessToken),
		"refreshToken":    string(tokenPair.RefreshToken),
	})
}

type RegisterUserInput struct {
	Name         string `json:"name" validate:"required,max=256"`
	Email        string `json:"email" validate:"required,max=256,email"`
	Password     string `json:"password" validate:"required,min=6,max=256"`
	Role         string `json:"role" validate:"required"`
	ProfileImage string `json:"profileImage"` // base64, optional
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type GoogleUserInput struct {
	IdentityToken string `json:"identityToken" validate:"required"`
	Role          string `json:"role"`
}
