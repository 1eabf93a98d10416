// Package mailxstub holds providers whose wire protocols are not
// implemented yet. They validate their configuration like real providers
// so a deployment fails at startup, and every send fails with
// mailx.ErrNotImplemented.
package mailxstub

import (
	"context"
	"strings"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

const (
	SendGrid = "sendgrid"
	Resend   = "resend"
)

// Option configures a stub provider.
type Option func(*Provider)

// WithRenderer sets the template renderer.
func WithRenderer(r *mailx.Renderer) Option {
	return func(p *Provider) {
		p.renderer = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logx.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// Provider satisfies mailx.Provider without delivering anything.
type Provider struct {
	*mailx.Core

	apiKey   string
	renderer *mailx.Renderer
	logger   *logx.Logger
}

// NewSendGrid creates the SendGrid stub. SENDGRID_API_KEY is required.
func NewSendGrid(cfg config.EmailConfig, opts ...Option) (*Provider, error) {
	return newStub(SendGrid, "SENDGRID_API_KEY", cfg.SendGrid.APIKey, cfg, opts)
}

// NewResend creates the Resend stub. RESEND_API_KEY is required.
func NewResend(cfg config.EmailConfig, opts ...Option) (*Provider, error) {
	return newStub(Resend, "RESEND_API_KEY", cfg.Resend.APIKey, cfg, opts)
}

// ValidateSendGrid checks the fields NewSendGrid requires.
func ValidateSendGrid(cfg config.EmailConfig) error {
	return validate(SendGrid, "SENDGRID_API_KEY", cfg.SendGrid.APIKey, cfg)
}

// ValidateResend checks the fields NewResend requires.
func ValidateResend(cfg config.EmailConfig) error {
	return validate(Resend, "RESEND_API_KEY", cfg.Resend.APIKey, cfg)
}

func validate(name, keyVar, apiKey string, cfg config.EmailConfig) error {
	if strings.TrimSpace(apiKey) == "" {
		return mailx.InvalidConfig(name, keyVar)
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return mailx.InvalidConfig(name, "EMAIL_FROM_ADDRESS")
	}
	return nil
}

func newStub(name, keyVar, apiKey string, cfg config.EmailConfig, opts []Option) (*Provider, error) {
	if err := validate(name, keyVar, apiKey, cfg); err != nil {
		return nil, err
	}

	p := &Provider{apiKey: apiKey}
	for _, opt := range opts {
		opt(p)
	}

	p.Core = mailx.NewCore(mailx.CoreConfig{
		Name:      name,
		From:      cfg.Sender(),
		Renderer:  p.renderer,
		BulkLimit: cfg.BulkConcurrency,
		Logger:    p.logger,
	})
	return p, nil
}

func (p *Provider) Send(_ context.Context, params mailx.EmailParams) error {
	if params.From == "" {
		params.From = p.From()
	}
	if err := p.Validate(params); err != nil {
		return err
	}
	return p.Fail(mailx.ReasonNotImplemented, mailx.NotImplemented(p.Name()))
}

func (p *Provider) SendEmail(ctx context.Context, to, subject, body string, isHTML bool) error {
	return p.Send(ctx, p.Params(to, subject, body, isHTML))
}

func (p *Provider) SendTemplatedEmail(ctx context.Context, templateName, to string, data any) error {
	return p.SendTemplated(ctx, p.SendEmail, templateName, to, data)
}

func (p *Provider) SendBulkEmail(ctx context.Context, recipients []string, subject, body string, isHTML bool) error {
	return p.SendBulk(ctx, recipients, func(ctx context.Context, to string) error {
		return p.SendEmail(ctx, to, subject, body, isHTML)
	})
}

// ValidateConnection only checks that the API key is present.
func (p *Provider) ValidateConnection(context.Context) error {
	if p.apiKey == "" {
		return mailx.InvalidConfig(p.Name(), "api key")
	}
	return nil
}
