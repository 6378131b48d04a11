// Package config loads the service configuration. Values come from, in
// order of precedence: ROLLCALL_* environment variables, an optional TOML
// file named by ROLLCALL_CONFIG, and built-in defaults. A .env file (or the
// file named by ROLLCALL_ENV_FILE) is loaded into the environment first
// without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alfredjeanlab/rollcall/internal/sequence"
)

type Config struct {
	DatabaseURL   string // ROLLCALL_DATABASE_URL (required)
	WebhookSecret string // ROLLCALL_WEBHOOK_SECRET (required)
	GRPCAddr      string // ROLLCALL_GRPC_ADDR (default ":9090")
	HTTPAddr      string // ROLLCALL_HTTP_ADDR (default ":8080")
	NATSURL       string // ROLLCALL_NATS_URL (optional, empty = no events)
	AuthToken     string // ROLLCALL_AUTH_TOKEN (optional, empty = auth disabled)

	// Delivery session
	ChannelURL    string // ROLLCALL_CHANNEL_URL (default NATSURL; empty = log only)
	ChannelPrefix string // ROLLCALL_CHANNEL_PREFIX (default "rollcall.bridge")
	ChannelDomain string // ROLLCALL_CHANNEL_DOMAIN (default "s.whatsapp.net")

	// Roll numbers
	RollPolicy sequence.Policy // ROLLCALL_ROLL_POLICY (default "count")
	RollBase   int             // ROLLCALL_ROLL_BASE (default 0)

	// Delivery retry and timeouts
	DeliveryAttempts int           // ROLLCALL_DELIVERY_ATTEMPTS (default 3)
	DeliveryDelay    time.Duration // ROLLCALL_DELIVERY_DELAY (default 2s)
	SendTimeout      time.Duration // ROLLCALL_SEND_TIMEOUT (default 15s)
	LedgerTimeout    time.Duration // ROLLCALL_LEDGER_TIMEOUT (default 10s)

	// Message branding
	MessageTitle  string // ROLLCALL_MESSAGE_TITLE
	MessageFooter string // ROLLCALL_MESSAGE_FOOTER
	InviteURL     string // ROLLCALL_INVITE_URL (empty = no invite message)

	// Sync settings
	SyncInterval   time.Duration // ROLLCALL_SYNC_INTERVAL (default 5m; 0 = disabled)
	SyncS3Bucket   string        // ROLLCALL_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // ROLLCALL_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // ROLLCALL_SYNC_S3_REGION (default "us-east-1")
	SyncS3Prefix   string        // ROLLCALL_SYNC_S3_PREFIX (default "rollcall/ledger")
}

// fileConfig is the TOML file layout. Durations are strings such as "2s".
type fileConfig struct {
	DatabaseURL   string `toml:"database_url"`
	WebhookSecret string `toml:"webhook_secret"`
	GRPCAddr      string `toml:"grpc_addr"`
	HTTPAddr      string `toml:"http_addr"`
	NATSURL       string `toml:"nats_url"`
	AuthToken     string `toml:"auth_token"`

	Channel struct {
		URL    string `toml:"url"`
		Prefix string `toml:"prefix"`
		Domain string `toml:"domain"`
	} `toml:"channel"`

	Roll struct {
		Policy string `toml:"policy"`
		Base   *int   `toml:"base"`
	} `toml:"roll"`

	Delivery struct {
		Attempts      int    `toml:"attempts"`
		Delay         string `toml:"delay"`
		SendTimeout   string `toml:"send_timeout"`
		LedgerTimeout string `toml:"ledger_timeout"`
	} `toml:"delivery"`

	Message struct {
		Title     string `toml:"title"`
		Footer    string `toml:"footer"`
		InviteURL string `toml:"invite_url"`
	} `toml:"message"`

	Sync struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Prefix   string `toml:"s3_prefix"`
	} `toml:"sync"`
}

func defaults() *Config {
	return &Config{
		GRPCAddr:         ":9090",
		HTTPAddr:         ":8080",
		ChannelPrefix:    "rollcall.bridge",
		ChannelDomain:    "s.whatsapp.net",
		RollPolicy:       sequence.PolicyCount,
		DeliveryAttempts: 3,
		DeliveryDelay:    2 * time.Second,
		SendTimeout:      15 * time.Second,
		LedgerTimeout:    10 * time.Second,
		MessageTitle:     "PAYMENT RECEIPT",
		MessageFooter:    "Thank you for registering!",
		SyncInterval:     5 * time.Minute,
		SyncS3Region:     "us-east-1",
		SyncS3Prefix:     "rollcall/ledger",
	}
}

func Load() (*Config, error) {
	envFile := envOrDefault("ROLLCALL_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	c := defaults()
	if path := os.Getenv("ROLLCALL_CONFIG"); path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if c.ChannelURL == "" {
		c.ChannelURL = c.NATSURL
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	var f fileConfig
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	setString(&c.DatabaseURL, f.DatabaseURL)
	setString(&c.WebhookSecret, f.WebhookSecret)
	setString(&c.GRPCAddr, f.GRPCAddr)
	setString(&c.HTTPAddr, f.HTTPAddr)
	setString(&c.NATSURL, f.NATSURL)
	setString(&c.AuthToken, f.AuthToken)
	setString(&c.ChannelURL, f.Channel.URL)
	setString(&c.ChannelPrefix, f.Channel.Prefix)
	setString(&c.ChannelDomain, f.Channel.Domain)
	if f.Roll.Policy != "" {
		c.RollPolicy = sequence.Policy(f.Roll.Policy)
	}
	if f.Roll.Base != nil {
		c.RollBase = *f.Roll.Base
	}
	if f.Delivery.Attempts != 0 {
		c.DeliveryAttempts = f.Delivery.Attempts
	}
	setString(&c.MessageTitle, f.Message.Title)
	setString(&c.MessageFooter, f.Message.Footer)
	setString(&c.InviteURL, f.Message.InviteURL)
	setString(&c.SyncS3Bucket, f.Sync.S3Bucket)
	setString(&c.SyncS3Endpoint, f.Sync.S3Endpoint)
	setString(&c.SyncS3Region, f.Sync.S3Region)
	setString(&c.SyncS3Prefix, f.Sync.S3Prefix)

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"delivery.delay", f.Delivery.Delay, &c.DeliveryDelay},
		{"delivery.send_timeout", f.Delivery.SendTimeout, &c.SendTimeout},
		{"delivery.ledger_timeout", f.Delivery.LedgerTimeout, &c.LedgerTimeout},
		{"sync.interval", f.Sync.Interval, &c.SyncInterval},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DatabaseURL = envOrDefault("ROLLCALL_DATABASE_URL", c.DatabaseURL)
	c.WebhookSecret = envOrDefault("ROLLCALL_WEBHOOK_SECRET", c.WebhookSecret)
	c.GRPCAddr = envOrDefault("ROLLCALL_GRPC_ADDR", c.GRPCAddr)
	c.HTTPAddr = envOrDefault("ROLLCALL_HTTP_ADDR", c.HTTPAddr)
	c.NATSURL = envOrDefault("ROLLCALL_NATS_URL", c.NATSURL)
	c.AuthToken = envOrDefault("ROLLCALL_AUTH_TOKEN", c.AuthToken)
	c.ChannelURL = envOrDefault("ROLLCALL_CHANNEL_URL", c.ChannelURL)
	c.ChannelPrefix = envOrDefault("ROLLCALL_CHANNEL_PREFIX", c.ChannelPrefix)
	c.ChannelDomain = envOrDefault("ROLLCALL_CHANNEL_DOMAIN", c.ChannelDomain)
	c.RollPolicy = sequence.Policy(envOrDefault("ROLLCALL_ROLL_POLICY", string(c.RollPolicy)))
	c.MessageTitle = envOrDefault("ROLLCALL_MESSAGE_TITLE", c.MessageTitle)
	c.MessageFooter = envOrDefault("ROLLCALL_MESSAGE_FOOTER", c.MessageFooter)
	c.InviteURL = envOrDefault("ROLLCALL_INVITE_URL", c.InviteURL)
	c.SyncS3Bucket = envOrDefault("ROLLCALL_SYNC_S3_BUCKET", c.SyncS3Bucket)
	c.SyncS3Endpoint = envOrDefault("ROLLCALL_SYNC_S3_ENDPOINT", c.SyncS3Endpoint)
	c.SyncS3Region = envOrDefault("ROLLCALL_SYNC_S3_REGION", c.SyncS3Region)
	c.SyncS3Prefix = envOrDefault("ROLLCALL_SYNC_S3_PREFIX", c.SyncS3Prefix)

	for _, n := range []struct {
		key string
		dst *int
	}{
		{"ROLLCALL_ROLL_BASE", &c.RollBase},
		{"ROLLCALL_DELIVERY_ATTEMPTS", &c.DeliveryAttempts},
	} {
		if v := os.Getenv(n.key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", n.key, err)
			}
			*n.dst = i
		}
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"ROLLCALL_DELIVERY_DELAY", &c.DeliveryDelay},
		{"ROLLCALL_SEND_TIMEOUT", &c.SendTimeout},
		{"ROLLCALL_LEDGER_TIMEOUT", &c.LedgerTimeout},
		{"ROLLCALL_SYNC_INTERVAL", &c.SyncInterval},
	} {
		if v := os.Getenv(d.key); v != "" {
			dur, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = dur
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("ROLLCALL_DATABASE_URL is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("ROLLCALL_WEBHOOK_SECRET is required")
	}
	p, err := sequence.ParsePolicy(string(c.RollPolicy))
	if err != nil {
		return fmt.Errorf("ROLLCALL_ROLL_POLICY: %w", err)
	}
	c.RollPolicy = p
	if c.RollBase < 0 {
		return fmt.Errorf("ROLLCALL_ROLL_BASE must not be negative")
	}
	if c.DeliveryAttempts < 1 {
		return fmt.Errorf("ROLLCALL_DELIVERY_ATTEMPTS must be at least 1")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
