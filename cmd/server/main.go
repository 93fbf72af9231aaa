package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"ticketer/internal/app"
	"ticketer/internal/clock"
	"ticketer/internal/config"
	"ticketer/internal/handlers"
	"ticketer/internal/logging"
	"ticketer/internal/middleware"
	"ticketer/internal/server"
	"ticketer/internal/services"
	"ticketer/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped with error")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	if err := stores.Prepare(ctx, cfg); err != nil {
		return err
	}

	cutoffs, err := services.NewCutoffPolicy(cfg.Tickets.Cutoffs, cfg.Tickets.Timezone)
	if err != nil {
		return err
	}

	clk := clock.NewSystem()

	storage := services.NewStorageService(ctx, cfg.Storage, logger)
	mailer := services.NewMailer(services.MailerSendConfig{
		APIKey:    cfg.MailerSend.APIKey,
		FromEmail: cfg.MailerSend.FromEmail,
		FromName:  cfg.MailerSend.FromName,
	}, logger)

	ticketService := services.NewTicketService(
		stores.Tickets,
		services.NewQRCodeService(),
		storage,
		mailer,
		cutoffs,
		clk,
		logger,
	)
	authService := services.NewAuthService(
		stores.Users,
		utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, clk),
		clk,
		logger,
	)

	limiter := middleware.NewLoginRateLimiter(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow, clk)
	defer limiter.Close()

	router := server.NewRouter(server.Deps{
		Tickets:      ticketService,
		Auth:         authService,
		Sessions:     middleware.NewSessionStore(cfg.Auth.SessionSecret, !cfg.IsDevelopment(), cfg.Auth.JWTTTL),
		CORS:         middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins),
		LoginLimiter: limiter,
		HealthChecks: map[string]handlers.HealthCheck{
			"store": stores.Ping,
		},
		UploadsDir:     cfg.Storage.LocalPath,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})

	logger.WithFields(logrus.Fields{
		"env":     cfg.Server.Env,
		"backend": stores.Backend,
	}).Info("Starting ticketer")

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return server.New(addr, router, logger).Run(ctx)
}
