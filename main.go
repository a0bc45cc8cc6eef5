package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"

	"rompin-booking-server/routes"
	"rompin-booking-server/storage"
	"rompin-booking-server/utils"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	// Initialize services
	storage.InitializeDB()
	storage.InitializeRedis()
	storage.InitializeUploads()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	// Minimal middleware - compression only
	app.Use(iris.Compression)

	// JWT Verifiers
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

	// Health check endpoint - CRITICAL for Render
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	// Uploaded booking documents are served statically
	app.HandleDir("/uploads", iris.Dir(storage.UploadDir()))

	// Routes
	auth := app.Party("/api/auth")
	{
		auth.Post("/register", routes.Register)
		auth.Post("/login", routes.Login)
	}

	users := app.Party("/api/users", accessTokenVerifierMiddleware)
	{
		users.Get("/", utils.AdminOnlyMiddleware, routes.GetUsers)
		users.Put("/profile", utils.UserIDFromTokenMiddleware, routes.UpdateProfile)
		users.Patch("/saved-units", utils.UserIDFromTokenMiddleware, routes.AlterSavedUnits)
		users.Delete("/{id:uint}", utils.AdminOnlyMiddleware, routes.DeleteUser)
	}

	units := app.Party("/api/units", accessTokenVerifierMiddleware)
	{
		units.Get("/", routes.GetUnits)
		units.Get("/stats", routes.GetUnitStats)
		units.Get("/{id:uint}", routes.GetUnit)
		units.Post("/", utils.AdminOnlyMiddleware, routes.CreateUnit)
		units.Put("/{id:uint}", utils.AdminOnlyMiddleware, routes.UpdateUnit)
		units.Delete("/{id:uint}", utils.AdminOnlyMiddleware, routes.DeleteUnit)
		units.Put("/{id:uint}/reserve", routes.ReserveUnit)
		units.Post("/{id:uint}/files", utils.UserIDFromTokenMiddleware, routes.UploadUnitBookingFiles)
	}

	bookings := app.Party("/api/bookings", accessTokenVerifierMiddleware)
	{
		bookings.Get("/", routes.GetBookings)
		bookings.Get("/user", utils.UserIDFromTokenMiddleware, routes.GetUserBookings)
		bookings.Get("/{id:uint}", routes.GetBooking)
		bookings.Put("/{id:uint}/status", utils.AdminOnlyMiddleware, routes.UpdateBookingStatus)
		bookings.Put("/{id:uint}/cancel", utils.UserIDFromTokenMiddleware, routes.CancelBooking)
		bookings.Post("/{id:uint}/files", routes.UploadBookingFiles)
	}

	notifications := app.Party("/api/notifications", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		notifications.Get("/", routes.GetNotifications)
		notifications.Patch("/{id:uint}/read", routes.MarkNotificationRead)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
