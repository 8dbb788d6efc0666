package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Command is one inbound chat command, with the identity and policy
// decisions the dispatcher needs already resolved by the gateway.
type Command struct {
	UserID     string
	User       string // stable display name, used as the ledger key
	Mention    string
	Text       string // full message text, "!name [args]"
	Privileged bool   // sender holds one of the configured admin roles
	Allowed    bool   // rate-limit decision for this invocation
}

// CommandHandler is called for each inbound command; a non-empty return
// value is sent back to the channel, prefixed with the sender's mention.
type CommandHandler func(cmd Command) string

// DiscordNotifier connects to Discord, relays commands from one
// configured guild channel, and broadcasts messages to it.
type DiscordNotifier struct {
	session     *discordgo.Session
	guildName   string
	channelName string
	adminRoles  map[string]bool
	limiter     Limiter
	log         *zap.Logger

	mu        sync.RWMutex
	channelID string
	roleNames map[string]string // role ID -> name, for the resolved guild

	ready     chan struct{}
	readyOnce sync.Once
}

// NewDiscordNotifier creates a notifier for the named guild and channel.
// The session is configured but not yet opened; call Run.
func NewDiscordNotifier(token, guildName, channelName string, adminRoles []string, limiter Limiter, log *zap.Logger) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	admins := make(map[string]bool, len(adminRoles))
	for _, r := range adminRoles {
		admins[r] = true
	}
	if limiter == nil {
		limiter = AllowAll{}
	}
	return &DiscordNotifier{
		session:     session,
		guildName:   guildName,
		channelName: channelName,
		adminRoles:  admins,
		limiter:     limiter,
		log:         log,
		roleNames:   map[string]string{},
		ready:       make(chan struct{}),
	}, nil
}

// Ready is closed once the configured guild channel has been resolved.
func (d *DiscordNotifier) Ready() <-chan struct{} {
	return d.ready
}

// Run opens the gateway connection and relays commands to handler until
// ctx is cancelled.
func (d *DiscordNotifier) Run(ctx context.Context, handler CommandHandler) error {
	d.session.AddHandler(d.onGuildCreate)
	d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		d.onMessage(m, handler)
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	d.log.Info("discord connection opened", zap.String("guild", d.guildName), zap.String("channel", d.channelName))

	<-ctx.Done()
	return d.session.Close()
}

// onGuildCreate resolves the configured channel and role table when the
// target guild's state arrives, then signals readiness.
func (d *DiscordNotifier) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Name != d.guildName {
		return
	}

	var channelID string
	for _, c := range g.Channels {
		if c.Name == d.channelName && c.Type == discordgo.ChannelTypeGuildText {
			channelID = c.ID
			break
		}
	}
	if channelID == "" {
		d.log.Error("configured channel not found in guild",
			zap.String("guild", g.Name), zap.String("channel", d.channelName))
		return
	}

	d.mu.Lock()
	d.channelID = channelID
	d.roleNames = make(map[string]string, len(g.Roles))
	for _, r := range g.Roles {
		d.roleNames[r.ID] = r.Name
	}
	d.mu.Unlock()

	d.readyOnce.Do(func() { close(d.ready) })
	d.log.Info("guild channel resolved", zap.String("channel_id", channelID))
}

func (d *DiscordNotifier) onMessage(m *discordgo.MessageCreate, handler CommandHandler) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	d.mu.RLock()
	channelID := d.channelID
	d.mu.RUnlock()
	if channelID == "" || m.ChannelID != channelID {
		return
	}

	text := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(text, "!") {
		return
	}
	name := strings.Fields(text)[0]

	cmd := Command{
		UserID:     m.Author.ID,
		User:       m.Author.Username,
		Mention:    m.Author.Mention(),
		Text:       text,
		Privileged: d.isPrivileged(m),
		Allowed:    d.limiter.Allow(m.Author.ID, name),
	}
	d.log.Info("command received",
		zap.String("user", cmd.User), zap.String("command", name),
		zap.Bool("allowed", cmd.Allowed))

	reply := handler(cmd)
	if reply == "" {
		return
	}
	if _, err := d.session.ChannelMessageSend(channelID, cmd.Mention+" "+reply); err != nil {
		d.log.Error("send reply failed", zap.Error(err))
	}
}

func (d *DiscordNotifier) isPrivileged(m *discordgo.MessageCreate) bool {
	if m.Member == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, roleID := range m.Member.Roles {
		if d.adminRoles[d.roleNames[roleID]] {
			return true
		}
	}
	return false
}

// Send broadcasts a message to the configured channel.
func (d *DiscordNotifier) Send(text string) error {
	d.mu.RLock()
	channelID := d.channelID
	d.mu.RUnlock()
	if channelID == "" {
		return fmt.Errorf("channel %q not resolved yet", d.channelName)
	}
	if _, err := d.session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendWithRetry broadcasts a message with exponential backoff retry.
func (d *DiscordNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := d.Send(text); err != nil {
			lastErr = err
			backoff := time.Duration(1<<uint(i)) * time.Second
			d.log.Warn("discord send failed",
				zap.Int("attempt", i+1), zap.Int("max", maxRetries+1),
				zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
