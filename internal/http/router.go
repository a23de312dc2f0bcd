package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/foodsafety/internal/accounts"
	"github.com/geocoder89/foodsafety/internal/auth"
	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/http/handlers"
	"github.com/geocoder89/foodsafety/internal/http/middlewares"
	"github.com/geocoder89/foodsafety/internal/media"
	"github.com/geocoder89/foodsafety/internal/notifications"
	"github.com/geocoder89/foodsafety/internal/observability"
	"github.com/geocoder89/foodsafety/internal/restaurants"
	"github.com/geocoder89/foodsafety/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the long-lived clients built once in cmd/api and shared by every request.
type Deps struct {
	Config      config.Config
	Users       accounts.UserStore
	Restaurants restaurants.Store
	Lookups     restaurants.Lookups
	Media       media.Store
	Notifier    notifications.Notifier
	Hasher      security.PasswordHasher

	// optional
	Prom      *observability.Prom
	Gatherer  prometheus.Gatherer
	Checks    []handlers.Check
	StaticDir string
	Now       func() time.Time
}

const (
	jsonBodyLimit   = 1 << 20
	authRateLimit   = 10
	authRateWindow  = time.Minute
	multipartSlack  = 1 << 20
	inlineImageSlot = 21 // logo plus up to 20 images on update
)

func NewRouter(log *slog.Logger, deps Deps) *gin.Engine {
	cfg := deps.Config

	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.AppName))
	}

	// ops
	health := handlers.NewHealthHandler(deps.Checks...)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)
	if deps.StaticDir != "" {
		r.Static("/static", deps.StaticDir)
	}

	// wire up services
	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	gateway := auth.NewGateway(tokens, deps.Users)

	opts := []accounts.Option{
		accounts.WithInvitationTTL(cfg.InvitationTTL()),
		accounts.WithOTPTTL(cfg.OTPTTL()),
		accounts.WithActivationURL(cfg.ActivationURL),
		accounts.WithLogger(log),
	}
	restaurantSvc := restaurants.NewService(deps.Restaurants, deps.Lookups, deps.Media, cfg.MaxUploadBytes, log)
	if deps.Now != nil {
		tokens = tokens.WithClock(deps.Now)
		opts = append(opts, accounts.WithClock(deps.Now))
		restaurantSvc = restaurantSvc.WithClock(deps.Now)
	}
	accountSvc := accounts.NewService(deps.Users, deps.Hasher, tokens, deps.Notifier, opts...)

	// wire up handlers
	authMW := middlewares.NewAuthMiddleware(gateway, log)
	authHandler := handlers.NewAuthHandler(accountSvc, cfg.AppName, cfg.AppDescription, log)
	usersHandler := handlers.NewUsersHandler(accountSvc, log)
	restaurantsHandler := handlers.NewRestaurantsHandler(restaurantSvc, cfg.MaxUploadBytes, log)
	if deps.Prom != nil {
		authMW.WithObserver(func(result string) { deps.Prom.ObserveAuth("bearer", result) })
		authHandler.WithObserver(deps.Prom.ObserveAuth)
		restaurantsHandler.WithUploadObserver(deps.Prom.ObserveUpload)
	}

	limiter := middlewares.NewRateLimiter(authRateLimit, authRateWindow)
	throttle := limiter.RateLimiterMiddleware(middlewares.KeyByIP)
	throttleCaller := limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP)
	jsonBody := []gin.HandlerFunc{middlewares.MaxBodyBytes(jsonBodyLimit), middlewares.RequireJSON()}
	requireAuth := authMW.RequireAuth()
	can := authMW.RequirePermission

	// Routes

	biz := r.Group("/business")
	{
		biz.GET("/", authHandler.Home)
		biz.POST("/login", chain(throttle, jsonBody, authHandler.Login)...)
		biz.POST("/token",
			throttle,
			middlewares.MaxBodyBytes(jsonBodyLimit),
			middlewares.RequireContentType("application/x-www-form-urlencoded", "multipart/form-data"),
			authHandler.Token,
		)
		biz.POST("/complete_registration", chain(throttle, jsonBody, authHandler.CompleteRegistration)...)
		biz.POST("/forgot_password", chain(throttle, jsonBody, authHandler.ForgotPassword)...)
		biz.POST("/reset_password", chain(throttle, jsonBody, authHandler.ResetPassword)...)
		biz.POST("/change_password",
			requireAuth,
			throttleCaller,
			middlewares.MaxBodyBytes(jsonBodyLimit),
			middlewares.RequireJSON(),
			authHandler.ChangePassword,
		)
		biz.GET("/confirm-email/:user_id/:code", authHandler.ConfirmEmail)
		biz.POST("/set-password", chain(throttle, jsonBody, authHandler.SetPassword)...)
		biz.POST("/refresh_token", requireAuth, authHandler.RefreshToken)
		biz.POST("/log_out", authHandler.LogOut)
	}

	users := biz.Group("/users", requireAuth)
	{
		users.GET("/list-role", usersHandler.ListRoles)
		users.GET("", can(auth.PermUsersList), usersHandler.ListUsers)
		users.GET("/:user_id", can(auth.PermUsersRead), usersHandler.GetUser)
		users.POST("", chain(can(auth.PermUsersCreate), jsonBody, usersHandler.InviteUser)...)
		users.POST("/:user_id/resend-activation-link", can(auth.PermUsersCreate), usersHandler.ResendActivationLink)
		users.PUT("/:user_id", chain(can(auth.PermUsersUpdate), jsonBody, usersHandler.UpdateUser)...)
		users.DELETE("/:user_id", can(auth.PermUsersDelete), usersHandler.DeleteUser)
	}

	inlineBody := []gin.HandlerFunc{
		middlewares.MaxBodyBytes(cfg.MaxUploadBytes*inlineImageSlot*4/3 + jsonBodyLimit),
		middlewares.RequireJSON(),
	}

	admin := biz.Group("", requireAuth)
	{
		admin.GET("/restaurants", can(auth.PermRestaurantList), restaurantsHandler.ListRestaurants(false))
		admin.POST("/restaurants", chain(can(auth.PermRestaurantCreate), inlineBody, restaurantsHandler.CreateRestaurant)...)
		admin.POST("/restaurants/upload-image",
			can(auth.PermRestaurantUpdate),
			middlewares.MaxBodyBytes(cfg.MaxUploadBytes+multipartSlack),
			middlewares.RequireContentType("multipart/form-data"),
			restaurantsHandler.UploadImage,
		)
		admin.DELETE("/restaurants/delete-image", can(auth.PermRestaurantUpdate), restaurantsHandler.DeleteImage)
		admin.GET("/restaurants/restaurant_type", restaurantsHandler.ListTypes)
		admin.GET("/restaurants/:id", can(auth.PermRestaurantRead), restaurantsHandler.GetRestaurant)
		admin.PUT("/restaurants/:id", chain(can(auth.PermRestaurantUpdate), inlineBody, restaurantsHandler.UpdateRestaurant)...)
		admin.DELETE("/restaurants/:id", can(auth.PermRestaurantDelete), restaurantsHandler.DeleteRestaurant)
		admin.GET("/restaurant_type", restaurantsHandler.ListTypes)
		admin.GET("/district", restaurantsHandler.ListDistricts)
		admin.GET("/district/circles", restaurantsHandler.ListCircles)
	}

	// public read model, no auth
	r.GET("/restaurants", restaurantsHandler.ListRestaurants(true))
	r.GET("/restaurants/restaurant_type", restaurantsHandler.ListTypes)
	r.GET("/restaurants/:id", restaurantsHandler.GetRestaurant)
	r.GET("/district", restaurantsHandler.ListDistricts)
	r.GET("/district/circles", restaurantsHandler.ListCircles)

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Not Found.")
	})

	return r
}

// chain flattens a route's middleware list ahead of its handler.
func chain(first gin.HandlerFunc, mid []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mid)+2)
	out = append(out, first)
	out = append(out, mid...)
	return append(out, last)
}
