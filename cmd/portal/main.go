package main

import (
	"context"
	"net/http"
	"time"

	"blocklytics/portal/internal/handlers"
	"blocklytics/portal/internal/pricing"
	"blocklytics/portal/internal/session"
	"blocklytics/portal/internal/wizard"
	"blocklytics/portal/pkg/auth"
	"blocklytics/portal/pkg/clients"
	"blocklytics/portal/pkg/clients/coreapi"
	"blocklytics/portal/pkg/config"
	"blocklytics/portal/pkg/logging"
	"blocklytics/portal/pkg/monitoring"
	"blocklytics/portal/pkg/server"
	"blocklytics/portal/pkg/version"

	"github.com/shopspring/decimal"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("portal")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Portal (Billing BFF)")

	coreAPIURL := config.RequireEnv("CORE_API_URL")
	gatewayURL := config.GetEnv("PAYMENT_GATEWAY_URL", "https://ht-payway.com")
	jwtSecret := config.GetEnv("PORTAL_JWT_SECRET", "")
	idleTimeout := config.GetEnvDuration("SESSION_IDLE_TIMEOUT", session.DefaultIdleTimeout)
	wizardTTL := config.GetEnvDuration("WIZARD_SESSION_TTL", 30*time.Minute)

	// Credit price tiers, overridable per deployment
	priceTable := pricing.DefaultTable()
	if tierSpec := config.GetEnv("CREDIT_PRICE_TIERS", ""); tierSpec != "" {
		tiers, err := pricing.ParseTiers(tierSpec)
		if err != nil {
			logger.WithError(err).Fatal("Invalid CREDIT_PRICE_TIERS")
		}
		taxPercent, err := decimal.NewFromString(config.GetEnv("CREDIT_TAX_PERCENT", "25"))
		if err != nil {
			logger.WithError(err).Fatal("Invalid CREDIT_TAX_PERCENT")
		}
		priceTable, err = pricing.NewTable(tiers, taxPercent)
		if err != nil {
			logger.WithError(err).Fatal("Invalid credit price table")
		}
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("portal", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("portal", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("core_api", monitoring.UpstreamHealthCheck(&http.Client{Timeout: 5 * time.Second}, coreAPIURL+"/health"))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"CORE_API_URL":        coreAPIURL,
		"PAYMENT_GATEWAY_URL": gatewayURL,
	}))

	// Create custom portal metrics
	metrics := &handlers.PortalMetrics{
		WizardSteps:     metricsCollector.NewCounter("wizard_steps_total", "Wizard step transitions", []string{"step"}),
		OrdersSubmitted: metricsCollector.NewCounter("orders_submitted_total", "Order submissions by outcome", []string{"status"}),
		SessionTimeouts: metricsCollector.NewCounter("session_timeouts_total", "Sessions logged out after inactivity", []string{}).WithLabelValues(),
	}

	// Core API client
	upstreamRequests, upstreamDuration := metricsCollector.CreateUpstreamMetrics()
	cbConfig := clients.DefaultCircuitBreakerConfig()
	client := coreapi.NewClient(coreapi.Config{
		BaseURL:              coreAPIURL,
		Timeout:              config.GetEnvDuration("CORE_API_TIMEOUT", 30*time.Second),
		Logger:               logger,
		CircuitBreakerConfig: &cbConfig,
		Metrics: &coreapi.UpstreamMetrics{
			Requests: upstreamRequests,
			Duration: upstreamDuration,
		},
	})

	// Purchase wizard and idle-session guard
	wizardMgr := wizard.NewManager(wizard.Config{
		Client:     client,
		GatewayURL: gatewayURL,
		SessionTTL: wizardTTL,
		Logger:     logger,
	})
	guard := session.NewGuard(session.Config{
		IdleTimeout: idleTimeout,
		Preferences: client,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go guard.Run(ctx)

	// Initialize handlers
	handlers.Init(client, wizardMgr, guard, priceTable, logger, metrics)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "portal", healthChecker, metricsCollector)

	// Public endpoints
	router.POST("/auth/login", handlers.Login)
	router.POST("/auth/verify-2fa", handlers.Verify2FA)
	router.POST("/auth/resend-2fa", handlers.Resend2FA)
	router.POST("/auth/forgot-password", handlers.ForgotPassword)
	router.POST("/auth/reset-password/:token", handlers.ResetPassword)

	// Payment gateway callbacks (no auth; the key is the credential)
	router.GET("/payment/success", handlers.PaymentSuccess)
	router.POST("/payment/timeout", handlers.PaymentTimeout)

	// Authentication required endpoints
	protected := router.Group("")
	protected.Use(auth.SessionAuthMiddleware([]byte(jwtSecret)))
	protected.Use(handlers.IdleTimeoutMiddleware())
	{
		protected.POST("/auth/logout", handlers.Logout)

		protected.GET("/profile", handlers.GetProfile)
		protected.GET("/profile/security-preferences", handlers.GetSecurityPreferences)
		protected.GET("/credit-balance", handlers.GetCreditBalance)

		protected.GET("/orders", handlers.ListOrders)

		protected.GET("/wizard", handlers.GetWizard)
		protected.POST("/wizard/quantity", handlers.WizardQuantity)
		protected.POST("/wizard/confirm", handlers.WizardConfirm)
		protected.POST("/wizard/reset", handlers.WizardReset)

		protected.GET("/reconciliations", handlers.ListReconciliations)
		protected.GET("/reconciliations/:id", handlers.GetReconciliation)

		protected.GET("/tickets", handlers.ListTickets)
		protected.POST("/tickets", handlers.CreateTicket)
		protected.GET("/tickets/:id", handlers.GetTicket)
		protected.PUT("/tickets/:id", handlers.UpdateTicket)
		protected.DELETE("/tickets/:id", handlers.DeleteTicket)
		protected.POST("/tickets/:id/messages", handlers.AddTicketMessage)

		protected.GET("/notifications", handlers.ListNotifications)
		protected.PUT("/notifications/mark-all-read", handlers.MarkAllNotificationsRead)
		protected.PUT("/notifications/:id/seen", handlers.MarkNotificationSeen)
		protected.PUT("/notifications/:id/archive", handlers.ArchiveNotification)
		protected.PUT("/notifications/:id/unarchive", handlers.UnarchiveNotification)
		protected.DELETE("/notifications/:id", handlers.DeleteNotification)

		protected.GET("/session/status", handlers.SessionStatus)
		protected.POST("/session/ping", handlers.SessionPing)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("portal", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
