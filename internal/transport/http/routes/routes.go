package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/infra/config"
	"github.com/serenbook/account-service/internal/infra/security"
	"github.com/serenbook/account-service/internal/transport/http/handlers"
	"github.com/serenbook/account-service/internal/transport/http/middleware"
	"github.com/serenbook/account-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	OTP           *usecase.OTPService
	PasswordReset *usecase.PasswordResetService
	Verification  *usecase.VerificationService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	TokenIssuer *security.TokenIssuer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Trace())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if len(deps.Config.App.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		directoryHandler := handlers.NewDirectoryHandler(deps.Services.Verification)

		// Public directory listing plus the moderation hook for the external
		// review process.
		api.GET("/experts", directoryHandler.ListExperts)

		registerAccountRoutes(api.Group("/experts"), domain.AccountTypeExpert, deps, directoryHandler)
		registerAccountRoutes(api.Group("/users"), domain.AccountTypeUser, deps, directoryHandler)

		api.PATCH("/experts/:id/verification", directoryHandler.SetVerificationStatus)
	}

	return r
}

func registerAccountRoutes(group *gin.RouterGroup, accountType domain.AccountType, deps Dependencies, directory *handlers.DirectoryHandler) {
	authHandler := handlers.NewAuthHandler(deps.Services.Auth, accountType)
	otpHandler := handlers.NewOTPHandler(deps.Services.OTP, accountType)
	passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, accountType)

	authHandler.RegisterRoutes(group, buildLoginMiddlewares(deps)...)
	otpHandler.RegisterRoutes(group)

	resetMiddlewares := buildPasswordResetMiddlewares(deps)
	forgotHandlers := append([]gin.HandlerFunc{}, resetMiddlewares...)
	forgotHandlers = append(forgotHandlers, passwordHandler.ForgotPassword)
	group.POST("/forgot-password", forgotHandlers...)

	group.POST("/reset-password-otp", passwordHandler.ResetPasswordOTP)
	group.POST("/reset-password", passwordHandler.ResetPassword)

	if deps.TokenIssuer != nil {
		authenticated := []gin.HandlerFunc{
			middleware.RequireAuth(deps.TokenIssuer),
			middleware.RequireAccountType(accountType),
		}
		group.PUT("/change-password", append(append([]gin.HandlerFunc{}, authenticated...), passwordHandler.ChangePassword)...)
		group.DELETE("/deactivate", append(append([]gin.HandlerFunc{}, authenticated...), directory.Deactivate)...)
	}
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.ThrottleRule{
		Name:   "auth_login_ip",
		Limit:  limit,
		Window: window,
	}

	return []gin.HandlerFunc{deps.RateLimiter.Throttle(rule)}
}

func buildPasswordResetMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.ResetMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.ThrottleRule{
		Name:   "password_reset_ip",
		Limit:  limit,
		Window: window,
	}

	return []gin.HandlerFunc{deps.RateLimiter.Throttle(rule)}
}
