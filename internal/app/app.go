package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandlers "github.com/Brownie44l1/attendance/internal/api/handlers"
	"github.com/Brownie44l1/attendance/internal/config"
	"github.com/Brownie44l1/attendance/internal/db"
	"github.com/Brownie44l1/attendance/internal/handlers"
	"github.com/Brownie44l1/attendance/internal/i18n"
	"github.com/Brownie44l1/attendance/internal/messaging"
	"github.com/Brownie44l1/attendance/internal/middleware"
	"github.com/Brownie44l1/attendance/internal/repository"
	"github.com/Brownie44l1/attendance/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const otpThrottlePrefix = "attendance:otp:"

// App holds the long-lived dependencies shared by the server and the admin
// CLI.
type App struct {
	Config config.Config
	Log    *logrus.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client

	Sessions   *repository.SessionRepository
	OTPs       *repository.OTPRepository
	Employees  *repository.EmployeeRepository
	Attendance *repository.AttendanceRepository
	Requests   *repository.RequestRepository

	Provider   *messaging.TelegramProvider
	Translator *i18n.Translator
}

// New connects to Postgres (and Redis when configured) and builds the
// repositories.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*App, error) {
	pool, err := db.NewPool(ctx, cfg.DBUrl, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		Pool:       pool,
		Sessions:   repository.NewSessionRepository(pool),
		OTPs:       repository.NewOTPRepository(pool),
		Employees:  repository.NewEmployeeRepository(pool),
		Attendance: repository.NewAttendanceRepository(pool),
		Requests:   repository.NewRequestRepository(pool),
		Provider:   messaging.NewTelegramProvider(cfg.TelegramAPIURL, log),
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, OTP resend cooldown disabled")
			_ = a.Redis.Close()
			a.Redis = nil
		}
	}

	a.Translator, err = i18n.New(cfg.DefaultLocale)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}

// Router wires services and handlers into a gin engine.
func (a *App) Router() *gin.Engine {
	now := func() time.Time { return time.Now().UTC() }
	log := a.Log

	var throttle service.Throttle = service.NoThrottle{}
	if a.Redis != nil {
		throttle = service.NewRedisThrottle(a.Redis, otpThrottlePrefix)
	}

	notifier := service.NewNotifier(a.Provider, a.Translator, log)
	sessionService := service.NewSessionService(a.Sessions, a.Employees, now, log)
	attendanceService := service.NewAttendanceService(a.Attendance, now, log)
	registrationService := service.NewRegistrationService(sessionService, a.Sessions, a.Employees, notifier, now, log)
	completionService := service.NewCompletionService(
		sessionService,
		a.Sessions,
		a.Employees,
		attendanceService,
		notifier,
		service.NewTranslatedNextSteps(a.Translator),
		now,
		log,
	)
	otpService := service.NewOTPService(
		sessionService,
		a.OTPs,
		a.Employees,
		completionService,
		a.Provider,
		notifier,
		throttle,
		a.Config.OTPResendCooldown,
		now,
		log,
	)
	botService := service.NewBotService(
		a.Employees,
		a.Requests,
		attendanceService,
		registrationService,
		a.Provider,
		notifier,
		a.Config.PublicBaseURL,
		now,
		log,
	)
	verificationService := service.NewVerificationService(registrationService, completionService, otpService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(corsMiddleware(a.Config.AllowedOrigins()))

	apihandlers.NewHealthHandler(a.Pool).RegisterRoutes(router)
	handlers.NewVerificationHandler(verificationService, log).RegisterRoutes(router)
	handlers.NewWebhookHandler(botService, a.Config.WebhookSecret, log).RegisterRoutes(router)
	if a.Config.JWTSecret != "" {
		handlers.NewSessionHandler(sessionService, a.Config.PublicBaseURL, log).
			RegisterRoutes(router, middleware.AuthMiddleware(a.Config.JWTSecret))
	} else {
		log.Warn("JWT_SECRET not set, session admin endpoint disabled")
	}

	return router
}

// corsMiddleware lets the hosted verification pages call the API. An empty
// allow-list admits every origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AddAllowHeaders("Authorization")
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
