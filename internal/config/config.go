package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Discord struct {
		BotToken    string   `yaml:"bot_token"`
		GuildName   string   `yaml:"guild_name"`
		ChannelName string   `yaml:"channel_name"`
		AdminRoles  []string `yaml:"admin_roles"`
	} `yaml:"discord"`
	Timezone string `yaml:"timezone"`
	Schedule struct {
		BackupCron    string `yaml:"backup_cron"`
		ResetCron     string `yaml:"reset_cron"`
		BuyRemindCron string `yaml:"buy_remind_cron"`
		AMRemindCron  string `yaml:"am_remind_cron"`
		PMRemindCron  string `yaml:"pm_remind_cron"`
	} `yaml:"schedule"`
	Reminders struct {
		Buy    bool `yaml:"buy"`
		AMSell bool `yaml:"am_sell"`
		PMSell bool `yaml:"pm_sell"`
	} `yaml:"reminders"`
	Backup struct {
		File string `yaml:"file"`
	} `yaml:"backup"`
	CooldownSeconds int    `yaml:"cooldown_seconds"`
	LogMode         string `yaml:"log_mode"` // "production" or "development"
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("DISCORD_GUILD_NAME"); v != "" {
		cfg.Discord.GuildName = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_NAME"); v != "" {
		cfg.Discord.ChannelName = v
	}
	if v := os.Getenv("BOT_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("BACKUP_FILE"); v != "" {
		cfg.Backup.File = v
	}
	if v := os.Getenv("COOLDOWN_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CooldownSeconds = n
		}
	}

	// Defaults
	if cfg.Timezone == "" {
		cfg.Timezone = "America/New_York"
	}
	if cfg.Schedule.BackupCron == "" {
		cfg.Schedule.BackupCron = "0 0 * * * *"
	}
	if cfg.Schedule.ResetCron == "" {
		cfg.Schedule.ResetCron = "0 0 5 * * *"
	}
	if cfg.Schedule.BuyRemindCron == "" {
		cfg.Schedule.BuyRemindCron = "0 0 5 * * *"
	}
	if cfg.Schedule.AMRemindCron == "" {
		cfg.Schedule.AMRemindCron = "0 0 8 * * *"
	}
	if cfg.Schedule.PMRemindCron == "" {
		cfg.Schedule.PMRemindCron = "0 0 12 * * *"
	}
	if cfg.Backup.File == "" {
		cfg.Backup.File = "data/backup.json"
	}
	if cfg.CooldownSeconds == 0 {
		cfg.CooldownSeconds = 10
	}
	if cfg.LogMode == "" {
		cfg.LogMode = "production"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and coherent.
func (c *Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("discord.bot_token is required")
	}
	if c.Discord.GuildName == "" {
		return fmt.Errorf("discord.guild_name is required")
	}
	if c.Discord.ChannelName == "" {
		return fmt.Errorf("discord.channel_name is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q is not a valid IANA identifier: %w", c.Timezone, err)
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must not be negative")
	}
	return nil
}

// Location resolves the configured timezone. Call Validate first.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
