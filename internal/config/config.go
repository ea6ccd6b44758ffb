package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs. It is built once at startup and
// handed to the constructors that need it.
type Config struct {
	Server         ServerConfig
	Captcha        CaptchaConfig
	Mail           MailConfig
	Deliverability DeliverabilityConfig
	// OutboundTimeout bounds every call to the CAPTCHA provider, the DNS
	// resolver and the SMTP server.
	OutboundTimeout time.Duration
	LogVerbose      bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	BaseURL        string
	GinMode        string
	AllowedOrigins []string
}

// CaptchaConfig holds the bot-verification provider settings.
type CaptchaConfig struct {
	SecretKey string
	VerifyURL string
	// ViaService makes the submission pipeline verify tokens by calling this
	// server's own /api/verify-recaptcha endpoint at Server.BaseURL.
	ViaService bool
}

// MailConfig holds the outbound SMTP transport settings.
type MailConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Secure          bool
	TLSInsecure     bool
	FromName        string
	OperatorAddress string
	SiteURL         string
}

// DeliverabilityConfig controls the email-deliverability checker.
type DeliverabilityConfig struct {
	// Strict makes a failed or empty MX lookup reject the address.
	Strict                 bool
	ExtraDisposableDomains []string
	// DomainsFile is an optional blocklist file, one domain per line, read
	// at startup on top of the embedded list.
	DomainsFile string
}

const DefaultRecaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Enabled reports whether enough settings are present to send mail.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.User != "" && m.Password != ""
}

// Addr returns host:port, forcing the implicit-TLS port when Secure is set.
func (m MailConfig) Addr() string {
	port := m.Port
	if m.Secure {
		port = 465
	}
	return fmt.Sprintf("%s:%d", m.Host, port)
}

// Operator returns the lead-notification recipient, falling back to the SMTP user.
func (m MailConfig) Operator() string {
	if m.OperatorAddress != "" {
		return m.OperatorAddress
	}
	return m.User
}

// LoadFromEnv reads a .env file if one exists and then builds the Config from
// the process environment. Variables already set in the environment win over
// values from the file.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return load(os.LookupEnv)
}

// LoadFromMap builds the Config from an in-memory map. Used by tests so they
// don't have to touch the process environment.
func LoadFromMap(env map[string]string) (*Config, error) {
	return load(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

type lookupFunc func(key string) (string, bool)

func load(lookup lookupFunc) (*Config, error) {
	e := envReader{lookup: lookup}

	cfg := &Config{
		Server: ServerConfig{
			Port:           e.int("PORT", 8080),
			BaseURL:        strings.TrimRight(e.string("BASE_URL", "http://localhost:8080"), "/"),
			GinMode:        e.string("GIN_MODE", "release"),
			AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Captcha: CaptchaConfig{
			SecretKey:  e.string("RECAPTCHA_SECRET_KEY", ""),
			VerifyURL:  e.string("RECAPTCHA_VERIFY_URL", DefaultRecaptchaVerifyURL),
			ViaService: e.bool("BOT_VERIFY_VIA_SERVICE", false),
		},
		Mail: MailConfig{
			Host:            e.string("SMTP_HOST", ""),
			Port:            e.int("SMTP_PORT", 587),
			User:            e.string("SMTP_USER", ""),
			Password:        e.string("SMTP_PASSWORD", ""),
			Secure:          e.bool("SMTP_SECURE", false),
			TLSInsecure:     e.bool("SMTP_TLS_INSECURE", false),
			FromName:        e.string("MAIL_FROM_NAME", "Alev Digital"),
			OperatorAddress: e.string("ADMIN_EMAIL", ""),
			SiteURL:         e.string("SITE_URL", "https://alevdigital.com"),
		},
		Deliverability: DeliverabilityConfig{
			Strict:                 e.bool("STRICT_DELIVERABILITY_CHECK", true),
			ExtraDisposableDomains: e.list("DISPOSABLE_DOMAINS_EXTRA", nil),
			DomainsFile:            e.string("DISPOSABLE_DOMAINS_FILE", ""),
		},
		OutboundTimeout: e.duration("OUTBOUND_TIMEOUT", 5*time.Second),
		LogVerbose:      e.bool("LOG_VERBOSE", false),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Server.Port))
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE must be debug, release or test: %q", c.Server.GinMode))
	}
	if c.Captcha.ViaService && c.Server.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required when BOT_VERIFY_VIA_SERVICE is set"))
	}
	// The verify endpoint itself always talks to the provider.
	if c.Captcha.SecretKey == "" {
		errs = append(errs, errors.New("RECAPTCHA_SECRET_KEY is required"))
	}
	if c.OutboundTimeout <= 0 {
		errs = append(errs, errors.New("OUTBOUND_TIMEOUT must be positive"))
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT out of range: %d", c.Mail.Port))
	}
	return errors.Join(errs...)
}

// envReader collects parse errors so a bad value is reported instead of
// silently replaced by the default.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) string(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := e.string(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v := e.string(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.string(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) list(key string, def []string) []string {
	v := e.string(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
