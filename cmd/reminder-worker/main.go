package main

import (
	"os"
	"time"

	"installments/internal/amqp"
	"installments/internal/backend"
	"installments/internal/cli"
	"installments/internal/reminder"
	"installments/internal/services"
)

func main() {
	cfg := cli.MustLoadConfig("reminder-worker")
	logger := cli.SetupLogger(cfg, "reminder-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// Reminders publish card.due themselves; the backend needs no events.
	backendCfg.AMQPURL = ""
	be, err := backend.NewFactory(logger.Logger).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Close()

	var notifiers []reminder.Notifier
	if cfg.SMTPHost != "" {
		notifiers = append(notifiers, reminder.NewEmailNotifier(reminder.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.ReminderFrom,
			To:       cfg.ReminderRecipients(),
		}))
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		notifiers = append(notifiers, reminder.NewAMQPNotifier(client))
	}
	if len(notifiers) == 0 {
		logger.Error("No reminder channel configured: set SMTP_HOST or AMQP_URL")
		os.Exit(1)
	}

	totals := services.NewAggregator(be.Store, be.Store, time.Now)
	job := reminder.NewJob(be.Store, totals, reminder.CheckerFor(cfg.ReminderLeadDays), time.Now, notifiers...)

	scheduler, err := reminder.Schedule(ctx, cfg.ReminderSchedule, time.Local, job)
	if err != nil {
		logger.Error("Failed to schedule reminders", "error", err)
		os.Exit(1)
	}
	logger.Info("Reminder worker running",
		"schedule", cfg.ReminderSchedule,
		"lead_days", cfg.ReminderLeadDays,
		"channels", len(notifiers))

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Stop returns a context that is done once a running job finishes.
	done := scheduler.Stop()
	select {
	case <-done.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Reminder run still in progress at shutdown")
	}
	logger.Info("Reminder worker stopped")
}
