package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TurnipTracker/internal/ledger"
	"TurnipTracker/internal/notifier"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Broadcaster sends a message to the bot's channel.
type Broadcaster interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// TaskSpecs holds the cron spec (with seconds field) for each recurring task.
type TaskSpecs struct {
	Backup    string
	Reset     string
	BuyRemind string
	AMRemind  string
	PMRemind  string
}

// Toggles enables the optional reminder tasks.
type Toggles struct {
	BuyReminder    bool
	AMSellReminder bool
	PMSellReminder bool
}

const (
	resetNotice    = "🔄 A new week has started! All price data has been reset."
	buyReminder    = "@everyone Don't forget to buy your turnips!"
	amSellReminder = "@everyone Don't forget to check morning turnip prices!"
	pmSellReminder = "@everyone Don't forget to check afternoon turnip prices!"
)

// Scheduler manages all cron tasks and dispatches chat commands.
type Scheduler struct {
	Cron       *cron.Cron
	Ledger     *ledger.Ledger
	Notifier   Broadcaster
	Log        *zap.Logger
	Ctx        context.Context
	BackupPath string
	Loc        *time.Location

	// Now is the injected clock; tests substitute a fixed one.
	Now func() time.Time

	registered []registeredTask
}

type registeredTask struct {
	name string
	spec string
}

// NewScheduler creates a Scheduler whose cron runs in loc. A panicking
// task body aborts only that firing.
func NewScheduler(ctx context.Context, loc *time.Location, led *ledger.Ledger, b Broadcaster, backupPath string, log *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		Ledger:     led,
		Notifier:   b,
		Log:        log,
		Ctx:        ctx,
		BackupPath: backupPath,
		Loc:        loc,
		Now:        time.Now,
	}
}

// RegisterAll registers the backup and reset tasks plus any enabled reminders.
func (s *Scheduler) RegisterAll(specs TaskSpecs, tog Toggles) error {
	tasks := []struct {
		name    string
		spec    string
		body    func()
		enabled bool
	}{
		{"hourly_backup", specs.Backup, s.backupTask, true},
		{"weekly_reset", specs.Reset, s.resetTask, true},
		{"buy_reminder", specs.BuyRemind, s.buyReminderTask, tog.BuyReminder},
		{"am_sell_reminder", specs.AMRemind, s.amSellReminderTask, tog.AMSellReminder},
		{"pm_sell_reminder", specs.PMRemind, s.pmSellReminderTask, tog.PMSellReminder},
	}
	for _, t := range tasks {
		if !t.enabled {
			continue
		}
		if _, err := s.Cron.AddFunc(t.spec, t.body); err != nil {
			return fmt.Errorf("register %s task: %w", t.name, err)
		}
		s.registered = append(s.registered, registeredTask{t.name, t.spec})
	}
	return nil
}

// Start starts the cron scheduler and logs each task's first-run delay.
func (s *Scheduler) Start() {
	now := s.Now().In(s.Loc)
	for _, t := range s.registered {
		delay, err := NextDelay(t.spec, now)
		if err != nil {
			s.Log.Warn("compute first-run delay", zap.String("task", t.name), zap.Error(err))
			continue
		}
		s.Log.Info("task scheduled", zap.String("task", t.name), zap.Duration("first_run_in", delay))
	}
	s.Cron.Start()
	s.Log.Info("scheduler started", zap.Int("tasks", len(s.registered)))
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.Log.Info("scheduler stopped")
}

// NextDelay computes the wait until a 6-field cron spec next fires, at
// or after now. now must already be in the scheduler's timezone.
func NextDelay(spec string, now time.Time) (time.Duration, error) {
	sched, err := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	).Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return sched.Next(now).Sub(now), nil
}

func (s *Scheduler) backupTask() {
	snap := s.Ledger.Snapshot()
	if err := ledger.SaveBackup(s.BackupPath, snap); err != nil {
		s.Log.Error("backup failed", zap.Error(err))
		return
	}
	s.Log.Info("ledger backed up",
		zap.String("path", s.BackupPath), zap.Int("users", len(snap.Prices)))
}

// resetTask fires daily but only acts on Sunday, replacing the ledger
// for the new week.
func (s *Scheduler) resetTask() {
	now := s.Now()
	if now.In(s.Loc).Weekday() != time.Sunday {
		return
	}
	s.Ledger.Reset(now)
	s.Log.Info("weekly price data reset", zap.Time("week_start", s.Ledger.WeekStart()))
	s.trySend(resetNotice)
}

func (s *Scheduler) buyReminderTask() {
	if s.Now().In(s.Loc).Weekday() != time.Sunday {
		return
	}
	s.trySend(buyReminder)
}

func (s *Scheduler) amSellReminderTask() {
	if s.Now().In(s.Loc).Weekday() == time.Sunday {
		return
	}
	s.trySend(amSellReminder)
}

func (s *Scheduler) pmSellReminderTask() {
	if s.Now().In(s.Loc).Weekday() == time.Sunday {
		return
	}
	s.trySend(pmSellReminder)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Log.Error("send notification", zap.Error(err))
	}
}

const helpText = `The following commands are available:
!help -- prints this message
!setprice <INT|closed> -- records your price for the current time slot
!prices -- shows everyone's prices for the whole week
!myprices -- shows your own prices for the whole week
!today -- shows prices submitted for the current time slot
!backup -- (admin) saves price data immediately
!maintenance -- (admin) announces upcoming maintenance`

// HandleCommand processes one chat command and returns the reply text.
// An empty reply means nothing is sent back to the invoking user.
func (s *Scheduler) HandleCommand(cmd notifier.Command) string {
	fields := strings.Fields(cmd.Text)
	if len(fields) == 0 {
		return ""
	}
	if !cmd.Allowed {
		return "that command is on cooldown, try again in a moment."
	}

	switch fields[0] {
	case "!help":
		return helpText

	case "!setprice":
		if len(fields) != 2 {
			return "use the format !setprice PRICE"
		}
		label, replaced, err := s.Ledger.SetPrice(cmd.User, fields[1], s.Now())
		if errors.Is(err, ledger.ErrInvalidPrice) {
			return `your price must be a non-negative integer, or "closed".`
		}
		if err != nil {
			s.Log.Error("set price", zap.String("user", cmd.User), zap.Error(err))
			return "something went wrong recording your price."
		}
		if replaced {
			return fmt.Sprintf("your price for %s has been replaced with %s.", label, fields[1])
		}
		return fmt.Sprintf("your price of %s for %s has been saved.", fields[1], label)

	case "!prices":
		return notifier.FormatFullPrices(s.Ledger.Snapshot())

	case "!myprices":
		out, err := notifier.FormatUserPrices(s.Ledger.Snapshot(), cmd.User)
		if err != nil {
			return "you have no prices recorded this week."
		}
		return out

	case "!today":
		return notifier.FormatToday(s.Ledger.Snapshot(), s.Now(), s.Loc)

	case "!backup":
		if !cmd.Privileged {
			return "you don't have permission to do that."
		}
		if err := ledger.SaveBackup(s.BackupPath, s.Ledger.Snapshot()); err != nil {
			s.Log.Error("manual backup", zap.Error(err))
			return "backup failed, check the logs."
		}
		return "price data backed up."

	case "!maintenance":
		if !cmd.Privileged {
			return "you don't have permission to do that."
		}
		s.trySend("🔧 The bot will be going down for maintenance shortly.")
		return ""

	default:
		return "unknown command, try !help."
	}
}

// cronLogger adapts zap to the cron.Logger interface used by the
// recovery chain.
type cronLogger struct {
	log *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Sugar().Infow(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
