package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/config"
	"github.com/velikanov/calsec/internal/google"
	"github.com/velikanov/calsec/internal/instrumentation"
	"github.com/velikanov/calsec/internal/server"
	"github.com/velikanov/calsec/internal/telegram"
	"github.com/velikanov/calsec/internal/tools/calendar_tools"
	"github.com/velikanov/calsec/internal/tools/common"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		botToken           string
		botUsername        string
		googleClientID     string
		googleClientSecret string
		redirectURL        string
		callbackAddr       string
		mcpAddr            string
		successURL         string
		metricsEnabled     bool
		metricsAddr        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot, the OAuth callback server, and the tool server",
		Long: `Start the Telegram bot together with the Google OAuth callback server.

The bot accepts commands (/start, /login, /events, /logout) and free-form
text. /login hands out a per-user authorization URL; Google redirects the
browser back to the callback server, which stores the credential and
confirms the authorization in the chat.

With --mcp-addr set, the calendar operations are additionally served as
MCP tools over streamable HTTP for AI assistants.

Configuration is read from environment variables (TELEGRAM_BOT_TOKEN,
GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, OAUTH_REDIRECT_URL, ...); flags
override individual values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Flags override environment values only when explicitly set.
			if cmd.Flags().Changed("bot-token") {
				cfg.TelegramBotToken = botToken
			}
			if cmd.Flags().Changed("bot-username") {
				cfg.TelegramBotUsername = botUsername
			}
			if cmd.Flags().Changed("google-client-id") {
				cfg.GoogleClientID = googleClientID
			}
			if cmd.Flags().Changed("google-client-secret") {
				cfg.GoogleClientSecret = googleClientSecret
			}
			if cmd.Flags().Changed("redirect-url") {
				cfg.OAuthRedirectURL = redirectURL
			}
			if cmd.Flags().Changed("callback-addr") {
				cfg.CallbackAddr = callbackAddr
			}
			if cmd.Flags().Changed("mcp-addr") {
				cfg.MCPAddr = mcpAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debugMode
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return runServe(cfg, metricsEnabled, successURL)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging. Can also use DEBUG env var.")
	cmd.Flags().StringVar(&botToken, "bot-token", "", "Telegram bot API token. Can also use TELEGRAM_BOT_TOKEN env var.")
	cmd.Flags().StringVar(&botUsername, "bot-username", "", "Telegram bot @username, used for command mentions and the post-authorization redirect. Can also use TELEGRAM_BOT_USERNAME env var.")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "Externally reachable OAuth callback URL registered with the Google client. Can also use OAUTH_REDIRECT_URL env var.")
	cmd.Flags().StringVar(&callbackAddr, "callback-addr", "", "Listen address of the OAuth callback server. Can also use CALLBACK_ADDR env var.")
	cmd.Flags().StringVar(&mcpAddr, "mcp-addr", "", "Listen address of the streamable HTTP tool server. Empty disables it. Can also use MCP_ADDR env var.")
	cmd.Flags().StringVar(&successURL, "success-url", "", "Browser redirect target after a successful authorization. Defaults to the bot's t.me link.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg *config.Config, metricsEnabled bool, successURL string) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err.Error())
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	errCh := make(chan error, 4)

	// Start metrics server when there is a prometheus pipeline to scrape
	var metricsServer *server.MetricsServer
	if metricsEnabled && provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsConfig{
			Addr:     cfg.MetricsAddr,
			Provider: provider,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		logger.Info("metrics server listening", "addr", metricsServer.Addr())
	}

	// Authorization state
	oauthConf := google.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	flows := auth.NewFlowTracker(oauthConf, logger)
	creds := auth.NewCredentialStore()
	if metrics != nil {
		flows.SetMetrics(metrics)
	}

	// Telegram client, notifier, and bot
	tgClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}
	notifier := telegram.NewNotifier(tgClient, logger)
	if metrics != nil {
		notifier.SetMetrics(metrics)
	}

	bot := telegram.NewBot(telegram.BotConfig{
		Client:   tgClient,
		Flows:    flows,
		Creds:    creds,
		Username: cfg.TelegramBotUsername,
		Logger:   logger,
	})
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- fmt.Errorf("bot: %w", err)
		}
	}()

	// OAuth callback server, with the probe endpoints on the same mux
	healthChecker := server.NewHealthChecker()
	callbackServer, err := server.NewCallbackServer(server.CallbackConfig{
		Flows:      flows,
		Creds:      creds,
		Notifier:   notifier,
		SuccessURL: resolveSuccessURL(successURL, cfg.TelegramBotUsername),
		Addr:       cfg.CallbackAddr,
		Health:     healthChecker,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create callback server: %w", err)
	}
	go func() {
		if err := callbackServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	logger.Info("serving", "callback_addr", cfg.CallbackAddr, "redirect_url", cfg.OAuthRedirectURL)
	healthChecker.SetReady(true)

	// Streamable HTTP tool server, optional
	var toolServer *mcpserver.StreamableHTTPServer
	if cfg.MCPAddr != "" {
		mcpSrv := mcpserver.NewMCPServer("calsec", version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithRecovery(),
		)
		dispatcher := calendar_tools.NewDispatcher(creds, nil, logger)
		if provider.Enabled() {
			dispatcher.SetInstrumentation(&common.Instrumentation{
				Metrics: metrics,
				Audit: instrumentation.NewAuditLoggerWithConfig(logger, instrumentation.AuditLoggingConfig{
					Enabled:    true,
					IncludePII: os.Getenv("AUDIT_LOGGING_INCLUDE_PII") == "true",
				}),
			})
		}
		if err := calendar_tools.RegisterCalendarTools(mcpSrv, dispatcher); err != nil {
			return fmt.Errorf("failed to register calendar tools: %w", err)
		}

		toolServer = mcpserver.NewStreamableHTTPServer(mcpSrv)
		go func() {
			if err := toolServer.Start(cfg.MCPAddr); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("tool server: %w", err)
			}
		}()
		logger.Info("tool server listening", "addr", cfg.MCPAddr)
	}

	// Block until a shutdown signal or a component failure
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("component failed", "error", runErr.Error())
		cancel()
	}

	healthChecker.SetShuttingDown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := callbackServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("callback server shutdown failed", "error", err.Error())
	}
	if toolServer != nil {
		if err := toolServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("tool server shutdown failed", "error", err.Error())
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err.Error())
		}
	}

	return runErr
}

// newLogger builds the process-wide logger. Debug mode switches to text
// output at debug level for local development.
func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// resolveSuccessURL returns the post-authorization browser redirect.
// An explicit URL wins; otherwise the bot's t.me deep link is used.
func resolveSuccessURL(explicit, botUsername string) string {
	if explicit != "" {
		return explicit
	}
	if botUsername != "" {
		return "https://t.me/" + botUsername
	}
	return ""
}
