package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TurnipTracker/internal/config"
	"TurnipTracker/internal/ledger"
	"TurnipTracker/internal/notifier"
	"TurnipTracker/internal/scheduler"

	"go.uber.org/zap"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger, err := newLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("TurnipTracker starting", zap.String("timezone", cfg.Timezone))

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("load timezone", zap.Error(err))
	}

	// Restore last backup if it covers the current week, otherwise start fresh.
	now := time.Now()
	var led *ledger.Ledger
	snap, err := ledger.LoadBackup(cfg.Backup.File, now, loc)
	if err != nil {
		logger.Warn("backup unreadable, starting fresh", zap.Error(err))
	}
	if snap != nil {
		led = ledger.Restore(loc, *snap)
		logger.Info("ledger restored from backup",
			zap.Time("week_start", snap.WeekStart), zap.Int("users", len(snap.Prices)))
	} else {
		led = ledger.New(loc, now)
		logger.Info("starting with a fresh ledger", zap.Time("week_start", led.WeekStart()))
	}

	// Init Discord gateway
	limiter := notifier.NewCooldownLimiter(time.Duration(cfg.CooldownSeconds) * time.Second)
	dn, err := notifier.NewDiscordNotifier(
		cfg.Discord.BotToken, cfg.Discord.GuildName, cfg.Discord.ChannelName,
		cfg.Discord.AdminRoles, limiter, logger)
	if err != nil {
		logger.Fatal("init discord notifier", zap.Error(err))
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, loc, led, dn, cfg.Backup.File, logger)
	specs := scheduler.TaskSpecs{
		Backup:    cfg.Schedule.BackupCron,
		Reset:     cfg.Schedule.ResetCron,
		BuyRemind: cfg.Schedule.BuyRemindCron,
		AMRemind:  cfg.Schedule.AMRemindCron,
		PMRemind:  cfg.Schedule.PMRemindCron,
	}
	toggles := scheduler.Toggles{
		BuyReminder:    cfg.Reminders.Buy,
		AMSellReminder: cfg.Reminders.AMSell,
		PMSellReminder: cfg.Reminders.PMSell,
	}
	if err := sched.RegisterAll(specs, toggles); err != nil {
		logger.Fatal("register cron tasks", zap.Error(err))
	}

	// Start the gateway; the scheduler arms only once the channel is resolved.
	errCh := make(chan error, 1)
	go func() { errCh <- dn.Run(ctx, sched.HandleCommand) }()
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-dn.Ready():
		}
		if err := dn.Send("TurnipTracker has joined the channel. All bot times use " + cfg.Timezone + "."); err != nil {
			logger.Warn("send join notice", zap.Error(err))
		}
		sched.Start()
	}()
	defer sched.Stop()

	logger.Info("TurnipTracker is running")

	// Wait for shutdown signal or gateway failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			logger.Error("discord gateway stopped", zap.Error(err))
		}
	}
	cancel()
	logger.Info("TurnipTracker stopped")
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
