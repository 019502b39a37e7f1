package main

import (
	"log"
	"os"

	"carshare-server/routes"
	"carshare-server/storage"
	"carshare-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}

		return tokenInput.RefreshToken
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/google", routes.GoogleLoginOrSignUp)
		user.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		user.Post("/signout", utils.SignOut)
		user.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetUser)
	}

	listing := app.Party("/api/listing")
	{
		listing.Post("/", accessTokenVerifierMiddleware, utils.OwnerOnlyMiddleware, routes.CreateListing)
		listing.Get("/mine", accessTokenVerifierMiddleware, utils.OwnerOnlyMiddleware, routes.GetOwnerListings)
		listing.Get("/search", accessTokenVerifierMiddleware, routes.SearchListingsByCity)
		listing.Get("/nearby", accessTokenVerifierMiddleware, routes.GetNearbyListings)
		listing.Get("/plate/{plate}", accessTokenVerifierMiddleware, routes.GetListingByPlate)
		listing.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetListing)
		listing.Post("/{id:uint}/booking", accessTokenVerifierMiddleware, utils.RenterOnlyMiddleware, routes.CreateBooking)
	}

	booking := app.Party("/api/booking", accessTokenVerifierMiddleware)
	{
		booking.Get("/owner", utils.OwnerOnlyMiddleware, routes.GetOwnerBookings)
		booking.Get("/renter", utils.RenterOnlyMiddleware, routes.GetRenterBookings)
		booking.Get("/stream", utils.UserIDFromTokenMiddleware, routes.StreamBookings)
		booking.Get("/{id:uint}", utils.UserIDFromTokenMiddleware, routes.GetBooking)
		booking.Post("/{id:uint}/confirm", utils.OwnerOnlyMiddleware, routes.ConfirmBooking)
		booking.Post("/{id:uint}/cancel", utils.UserIDFromTokenMiddleware, routes.CancelBooking)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	log.Printf("listening on :%s", port)
	app.Listen(":" + port)
}
