package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizbook-service/internal/app"
	"quizbook-service/internal/auth"
	"quizbook-service/internal/config"
	"quizbook-service/internal/delivery/telegram"
	"quizbook-service/internal/logger"
	transport "quizbook-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Store.Driver == config.DriverPostgres {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	stores, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	service := app.NewQuizService(stores, app.Settings{
		DefaultMinutes:  cfg.Quiz.DefaultMinutes,
		DefaultCorrect:  cfg.Quiz.DefaultCorrect,
		DefaultNegative: cfg.Quiz.DefaultNegative,
		TickInterval:    config.TTLDuration(cfg.Server.TickInterval, time.Second),
	}, log.Named("quiz"))

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("auth secret not configured, tokens will not survive a restart")
	}
	authService := auth.NewAuthService(secret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, 0))

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(service, authService, transport.RouterOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         log.Named("http"),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		bot.Debug = cfg.Telegram.Debug
		log.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))

		handler := telegram.NewHandler(bot, log.Named("telegram"), service, telegram.Options{
			Admins:        cfg.Telegram.Admins,
			UpdateTimeout: cfg.Telegram.Timeout,
		})
		go func() {
			if err := handler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("telegram handler stopped", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting quiz service", zap.String("port", finalPort), zap.String("driver", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("failed to start server", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
