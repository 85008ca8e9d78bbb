package main

import (
	"context"

	"beacon/internal/audit"
	"beacon/internal/gate"
	"beacon/internal/generate"
	"beacon/internal/handlers"
	"beacon/internal/notify"
	"beacon/internal/orchestrator"
	"beacon/internal/publish"
	"beacon/internal/scheduler"
	"beacon/internal/store"
	"beacon/pkg/config"
	"beacon/pkg/database"
	"beacon/pkg/email"
	"beacon/pkg/logging"
	"beacon/pkg/models"
	"beacon/pkg/monitoring"
	"beacon/pkg/server"
	"beacon/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Herald (Content Automation API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	anthropicKey := config.RequireEnv("ANTHROPIC_API_KEY")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":      dbURL,
		"JWT_SECRET":        jwtSecret,
		"ANTHROPIC_API_KEY": anthropicKey,
	}))

	st := store.NewStore(db, logger)
	auditor := audit.NewRecorder(st, logger)
	modeGate := gate.New(st, auditor, logger)

	// Draft generation via Anthropic
	generator := generate.NewAnthropicGenerator(generate.AnthropicConfig{
		APIKey:      anthropicKey,
		APIURL:      config.GetEnv("ANTHROPIC_API_URL", ""),
		Model:       config.GetEnv("ANTHROPIC_MODEL", ""),
		MaxTokens:   config.GetEnvInt("ANTHROPIC_MAX_TOKENS", 2048),
		Temperature: 0.7,
	})

	// Approval notifications go out by email when SMTP is configured.
	sender := email.NewSender(email.ConfigFromEnv())
	notifier := notify.New(sender, config.GetEnv("APP_BASE_URL", "http://localhost:3000"), logger)

	runner := generate.NewRunner(generator, st, notifier, logger)
	pub := publish.NewPublisher(st, logger)

	genScheduler := scheduler.NewGenerationScheduler(st, modeGate, runner, auditor, logger)
	postScheduler := scheduler.NewPostingScheduler(st, modeGate, pub, auditor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	modeGate.AttachSchedulers(ctx, genScheduler, postScheduler)

	// Custom herald metrics
	modeGate.SetMetrics(metricsCollector.NewCounter("gate_blocks_total", "Operations denied by the system mode gate", []string{"operation", "mode"}))
	pub.SetMetrics(metricsCollector.NewCounter("publish_attempts_total", "Publish attempts by platform and outcome", []string{"platform", "outcome"}))
	genScheduler.SetMetrics(metricsCollector.NewCounter("generation_runs_total", "Scheduled generation runs by platform and outcome", []string{"platform", "outcome"}))

	// Schedulers only run when the system is not paused or in crisis mode.
	state, err := modeGate.Current(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read system control state")
	}
	if state.Mode != models.ModePaused && state.Mode != models.ModeCrisis {
		genScheduler.Start(ctx)
		postScheduler.Start(ctx)
		logger.WithField("mode", state.Mode).Info("Schedulers started")
	} else {
		logger.WithField("mode", state.Mode).Warn("Schedulers held - system is not in an automated mode")
	}

	orch := orchestrator.New(st, modeGate, runner, pub, genScheduler, auditor, logger)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)

	api := handlers.New(orch, st, auditor, logger)
	api.RegisterRoutes(router, []byte(jwtSecret))

	serverConfig := server.DefaultConfig("herald", "18050")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	// Drain background work before exit.
	genScheduler.Stop()
	postScheduler.Stop()
	runner.Wait()
}
