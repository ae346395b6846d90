package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/background"
	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/config"
	"github.com/Ibrahim99575/authentication-system/internal/database"
	"github.com/Ibrahim99575/authentication-system/internal/handlers"
	middlewareCustom "github.com/Ibrahim99575/authentication-system/internal/middleware"
	"github.com/Ibrahim99575/authentication-system/internal/repositories"
	"github.com/Ibrahim99575/authentication-system/internal/routes"
	"github.com/Ibrahim99575/authentication-system/internal/services"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Rebuild the logger at the configured level
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := database.Migrate(migrateCtx, db, logger)
		migrateCancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	templateRepo := repositories.NewBiometricTemplateRepository(db)
	attemptRepo := repositories.NewAuthAttemptRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// Initialize cleanup manager
	attemptRetention := time.Duration(cfg.Auth.AttemptRetentionDays) * 24 * time.Hour
	cleanupManager := background.NewCleanupManager(attemptRepo, resetRepo, logger, cfg.Auth.CleanupInterval, attemptRetention)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Account lockout driven by the auth attempt ledger
	lockoutConfig := services.LockoutConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		MaxIPFailures:     cfg.Auth.MaxIPFailures,
		MaxDeviceFailures: cfg.Auth.MaxDeviceFailures,
		LockoutDuration:   cfg.Auth.LockoutDuration,
		Window:            cfg.Auth.LockoutWindow,
	}
	lockoutService := services.NewLockoutService(attemptRepo, userRepo, lockoutConfig, logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(cfg.Auth.TimingDelayBaseMs, cfg.Auth.TimingDelayRandomMs)

	// Biometric pipeline: payload decoding, feature extraction, encrypted
	// template storage
	templateCipher, err := biometric.NewTemplateCipher(cfg.Biometric.EncryptionSecret)
	if err != nil {
		logger.Error("failed to initialize template cipher", slog.Any("error", err))
		os.Exit(1)
	}
	extractors := []biometric.Extractor{
		biometric.NewFaceExtractor(cfg.Biometric.FrameLimit, cfg.Biometric.FaceSize),
		biometric.NewFingerprintExtractor(),
	}
	thresholds := services.ThresholdConfig{
		FaceThreshold:        cfg.Biometric.FaceThreshold,
		FingerprintThreshold: cfg.Biometric.FingerprintThreshold,
	}
	biometricService := services.NewBiometricService(templateRepo, userRepo, templateCipher, extractors, thresholds, logger, auditLogger)

	// Password reset email delivery
	var emailService services.EmailService
	if cfg.Email.Enabled {
		sesService, err := services.NewAWSSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.ResetURLBase,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		emailService = sesService
	} else {
		emailService = services.NewLogOnlyEmailService(logger)
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, tokenManager, lockoutService, biometricService, timingDelay, logger, auditLogger)
	userService := services.NewUserService(userRepo, attemptRepo, templateRepo, logger, auditLogger)
	passwordResetService := services.NewPasswordResetService(resetRepo, userRepo, emailService, logger, auditLogger, cfg.Auth.ResetTokenExpiry)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, passwordResetService, ipConfig)
	biometricHandler := handlers.NewBiometricHandler(biometricService, ipConfig)
	userHandler := handlers.NewUserHandler(userService, ipConfig)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	// No RealIP in the chain: client addresses are resolved through
	// ExtractClientIP with the trusted proxy list, never by rewriting
	// RemoteAddr from forwarding headers.
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, biometricHandler, userHandler, tokenManager, userRepo, ipConfig)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
