package config

import (
	"net/mail"
	"time"
)

// EmailConfig configures outbound email delivery.
type EmailConfig struct {
	// Provider is one of smtp, azure, aws_ses, sendgrid, resend, console.
	Provider           string `env:"EMAIL_PROVIDER" envDefault:"azure"`
	FromAddress        string `env:"EMAIL_FROM_ADDRESS"`
	FromName           string `env:"EMAIL_FROM_NAME"`
	TemplatesDir       string `env:"EMAIL_TEMPLATES_DIR"`
	TemplatesStrict    bool   `env:"EMAIL_TEMPLATES_STRICT" envDefault:"false"`
	RateLimitPerMinute int    `env:"EMAIL_RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	BulkConcurrency    int    `env:"EMAIL_BULK_CONCURRENCY" envDefault:"10"`

	SMTP     SMTPConfig
	Azure    AzureConfig
	SES      SESConfig
	SendGrid SendGridConfig
	Resend   ResendConfig
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host           string        `env:"SMTP_HOST"`
	Port           int           `env:"SMTP_PORT" envDefault:"587"`
	Username       string        `env:"SMTP_USERNAME"`
	Password       string        `env:"SMTP_PASSWORD"`
	TLSEnabled     bool          `env:"SMTP_TLS_ENABLED" envDefault:"true"`
	MaxConnections int           `env:"SMTP_MAX_CONNECTIONS" envDefault:"10"`
	HeloName       string        `env:"SMTP_HELO_NAME" envDefault:"localhost"`
	BulkDelay      time.Duration `env:"SMTP_BULK_DELAY" envDefault:"100ms"`
}

// AzureConfig configures Azure Communication Services email.
type AzureConfig struct {
	ConnectionString string        `env:"AZURE_EMAIL_CONNECTION_STRING"`
	PollingEnabled   bool          `env:"AZURE_EMAIL_POLLING_ENABLED" envDefault:"false"`
	PollInterval     time.Duration `env:"AZURE_EMAIL_POLL_INTERVAL" envDefault:"2s"`
	PollAttempts     int           `env:"AZURE_EMAIL_POLL_ATTEMPTS" envDefault:"10"`
}

// SESConfig configures AWS SES. Empty credentials fall back to the
// default AWS credential chain.
type SESConfig struct {
	Region           string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	ConfigurationSet string `env:"SES_CONFIGURATION_SET"`
}

type SendGridConfig struct {
	APIKey string `env:"SENDGRID_API_KEY"`
}

type ResendConfig struct {
	APIKey string `env:"RESEND_API_KEY"`
}

// Sender returns the From header value, "Name <address>" when a name is set.
func (c EmailConfig) Sender() string {
	if c.FromName == "" {
		return c.FromAddress
	}
	return (&mail.Address{Name: c.FromName, Address: c.FromAddress}).String()
}
