package utils

import (
	"carshare-server/models"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// UserIDFromTokenMiddleware extracts the user ID from the JWT and stores it
// in the request context for downstream handlers.
func UserIDFromTokenMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	ctx.Values().Set("userID", claims.ID)
	ctx.Values().Set("role", claims.Role)
	ctx.Next()
}

// RenterOnlyMiddleware gates booking creation on the Renter role.
func RenterOnlyMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	if claims.Role != models.RoleRenter {
		ctx.StatusCode(iris.StatusForbidden)
		ctx.JSON(iris.Map{"error": "forbidden", "message": "renter access required"})
		return
	}
	ctx.Values().Set("userID", claims.ID)
	ctx.Next()
}

// OwnerOnlyMiddleware gates listing creation and booking management on the
// Owner role.
func OwnerOnlyMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	if claims.Role != models.RoleOwner {
		ctx.StatusCode(iris.StatusForbidden)
		ctx.JSON(iris.Map{"error": "forbidden", "message": "owner access required"})
		return
	}
	ctx.Values().Set("userID", claims.ID)
	ctx.Next()
}
