package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds every setting of the service, read from environment variables.
type Config struct {
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"editorial"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"editorial"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	AppBaseURL   string `envconfig:"APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// Mail transport: smtp, relay or log
	MailProvider      string `envconfig:"MAIL_PROVIDER" default:"log"`
	SMTPHost          string `envconfig:"SMTP_HOST"`
	SMTPPort          int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser          string `envconfig:"SMTP_USER"`
	SMTPPass          string `envconfig:"SMTP_PASS"`
	SMTPFrom          string `envconfig:"SMTP_FROM"`
	SMTPSkipTLSVerify bool   `envconfig:"SMTP_SKIP_TLS_VERIFY" default:"false"`
	MailRelayURL      string `envconfig:"MAIL_RELAY_URL"`
	MailRelayToken    string `envconfig:"MAIL_RELAY_TOKEN"`

	CronEnabled           bool   `envconfig:"CRON_ENABLED" default:"true"`
	CronOverdue           string `envconfig:"CRON_OVERDUE" default:"@hourly"`
	CronReminders         string `envconfig:"CRON_REMINDERS" default:"@daily"`
	CronSLA               string `envconfig:"CRON_SLA" default:"@daily"`
	CronReviewerReminders string `envconfig:"CRON_REVIEWER_REMINDERS" default:"@weekly"`
	CronAuditCleanup      string `envconfig:"CRON_AUDIT_CLEANUP" default:"@monthly"`

	ReminderCap            int           `envconfig:"REMINDER_CAP" default:"2"`
	DeadlineReminderWindow time.Duration `envconfig:"DEADLINE_REMINDER_WINDOW" default:"72h"`
	SLAUnderReview         time.Duration `envconfig:"SLA_UNDER_REVIEW" default:"720h"`
	ReviewerReminderAfter  time.Duration `envconfig:"REVIEWER_REMINDER_AFTER" default:"168h"`
	AuditRetention         time.Duration `envconfig:"AUDIT_RETENTION" default:"8760h"`

	// Job lock; falls back to an in-process lock when no redis URL is set
	LockRedisURL string        `envconfig:"LOCK_REDIS_URL"`
	LockTTL      time.Duration `envconfig:"LOCK_TTL" default:"15m"`

	// Optional S3-compatible bucket for audit log archives before cleanup
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled reports whether audit logs are archived to S3 before deletion.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3URL != "" && c.ArchiveS3Bucket != ""
}

// CronSpecs maps job names to their cron expressions.
func (c *Config) CronSpecs() map[string]string {
	return map[string]string{
		"checkOverdueDeadlines": c.CronOverdue,
		"sendDeadlineReminders": c.CronReminders,
		"trackSLACompliance":    c.CronSLA,
		"sendReviewerReminders": c.CronReviewerReminders,
		"cleanupOldAuditLogs":   c.CronAuditCleanup,
	}
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case "postgres":
		if c.DBHost == "" || c.DBName == "" {
			errs = append(errs, errors.New("postgres store needs DB_HOST and DB_NAME"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q (supported: postgres, memory)", c.StoreDriver))
	}

	switch c.MailProvider {
	case "smtp":
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			errs = append(errs, errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)"))
		}
	case "relay":
		if c.MailRelayURL == "" {
			errs = append(errs, errors.New("relay mail provider needs MAIL_RELAY_URL"))
		}
	case "log":
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q (supported: smtp, relay, log)", c.MailProvider))
	}

	if c.ReminderCap < 0 || c.ReminderCap > MaxReminders {
		errs = append(errs, fmt.Errorf("REMINDER_CAP must be between 0 and %d", MaxReminders))
	}
	if c.DeadlineReminderWindow <= 0 {
		errs = append(errs, errors.New("DEADLINE_REMINDER_WINDOW must be positive"))
	}
	if c.ArchiveS3URL != "" && (c.ArchiveS3Key == "" || c.ArchiveS3Secret == "") {
		errs = append(errs, errors.New("archive bucket needs ARCHIVE_S3_KEY and ARCHIVE_S3_SECRET"))
	}

	return errors.Join(errs...)
}

// MaxReminders is the most reminders any deadline or review may ever receive.
const MaxReminders = 2

// Load reads the configuration from the environment, after loading an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.MailProvider = strings.ToLower(strings.TrimSpace(c.MailProvider))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewLogger builds the zap logger for the configured level. Debug uses the development preset.
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
