package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonaws "jobtrack/internal/common/aws"
	"jobtrack/internal/common/config"
	"jobtrack/internal/common/database"
	"jobtrack/internal/common/logger"
	"jobtrack/internal/common/mail"
	"jobtrack/internal/common/observability"
	"jobtrack/internal/common/sms"
	"jobtrack/internal/common/templates"
	"jobtrack/internal/reminder"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting reminder manager...",
		zap.String("environment", cfg.App.Environment),
		zap.Duration("leadTime", cfg.Reminders.LeadTime),
		zap.Duration("scanInterval", cfg.Reminders.ScanInterval),
	)

	obs := observability.New("reminder-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	store := reminder.NewPostgresStore(pg.DB)
	if err := store.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("notification schema setup failed", zap.Error(err))
	}

	// --- Templates ---
	registry := templates.NewRegistry()
	if cfg.Reminders.TemplatesPath != "" {
		registry, err = templates.LoadRegistry(cfg.Reminders.TemplatesPath)
		if err != nil {
			zapLog.Fatal("template registry load failed", zap.Error(err))
		}
	}

	// --- Mail transport ---
	var mailer mail.Mailer
	switch cfg.Mail.Provider {
	case "ses":
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Mail.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client init failed", zap.Error(err))
		}
		mailer = mail.NewSESMailer(sesClient, cfg.Mail.FromEmail)
	case "smtp":
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			UseTLS:   cfg.Mail.SMTP.UseTLS,
			From:     cfg.Mail.FromEmail,
		})
	}
	zapLog.Info("Mail transport ready", zap.String("provider", cfg.Mail.Provider))

	// --- Optional SMS mirror ---
	var smsSender sms.Sender
	if cfg.SMS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.SMS.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client init failed", zap.Error(err))
		}
		smsSender = sms.NewSNSSender(snsClient)
		zapLog.Info("SMS mirror enabled")
	}

	// --- Assemble the reminder core ---
	directory := reminder.NewPostgresDirectory(pg.DB)
	scheduler := reminder.NewScheduler(store, registry, log, cfg.Reminders.LeadTime)
	executor := reminder.NewExecutor(store, mailer, smsSender, log, cfg.Reminders.DeliveryTimeout)
	scanner := reminder.NewScanner(store, directory, executor, log, cfg.Reminders.BatchSize)
	orchestrator := reminder.NewOrchestrator(scheduler, scanner, store, log, obs, cfg.Reminders.ScanInterval)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			counts, err := orchestrator.Stats(r.Context())
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(counts)
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := http.ListenAndServe(cfg.Server.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Scan loop until shutdown ---
	orchestrator.Run(ctx)

	zapLog.Info("Reminder manager stopped gracefully")
}
