package mailxconsole

import (
	"context"
	"strings"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

// Name is the provider identifier.
const Name = "console"

// Option configures the console provider.
type Option func(*Provider)

// WithRenderer sets the template renderer.
func WithRenderer(r *mailx.Renderer) Option {
	return func(p *Provider) {
		p.renderer = r
	}
}

// WithLogger sets the logger emails are written to.
func WithLogger(l *logx.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// Provider prints emails through logx instead of sending them. Intended
// for development and testing.
type Provider struct {
	*mailx.Core

	renderer *mailx.Renderer
	logger   *logx.Logger
}

// New creates a console provider. A missing sender address defaults to
// noreply@localhost.
func New(cfg config.EmailConfig, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.FromAddress) == "" {
		cfg.FromAddress = "noreply@localhost"
	}

	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}

	p.Core = mailx.NewCore(mailx.CoreConfig{
		Name:      Name,
		From:      cfg.Sender(),
		Renderer:  p.renderer,
		BulkLimit: cfg.BulkConcurrency,
		Logger:    p.logger,
	})
	return p, nil
}

// Send logs the envelope at info level and the bodies at debug level.
func (p *Provider) Send(_ context.Context, params mailx.EmailParams) error {
	if params.From == "" {
		params.From = p.From()
	}
	if err := p.Validate(params); err != nil {
		return err
	}

	fields := logx.Fields{
		"from":    params.From,
		"to":      strings.Join(params.To, ", "),
		"subject": params.Subject,
	}
	if len(params.CC) > 0 {
		fields["cc"] = strings.Join(params.CC, ", ")
	}
	if len(params.BCC) > 0 {
		fields["bcc"] = strings.Join(params.BCC, ", ")
	}
	if len(params.Attachments) > 0 {
		fields["attachments"] = len(params.Attachments)
	}

	log := p.Logger()
	log.WithFields(fields).Info("mailx/console: email sent (dev mode)")
	if params.TextBody != "" {
		log.WithField("to", params.To).Debugf("mailx/console: text body:\n%s", params.TextBody)
	}
	if params.HTMLBody != "" {
		log.WithField("to", params.To).Debugf("mailx/console: html body:\n%s", params.HTMLBody)
	}

	p.Succeed(params)
	return nil
}

// SendEmail logs one message to one recipient.
func (p *Provider) SendEmail(ctx context.Context, to, subject, body string, isHTML bool) error {
	return p.Send(ctx, p.Params(to, subject, body, isHTML))
}

// SendTemplatedEmail renders templateName and logs it.
func (p *Provider) SendTemplatedEmail(ctx context.Context, templateName, to string, data any) error {
	return p.SendTemplated(ctx, p.SendEmail, templateName, to, data)
}

// SendBulkEmail logs one message per recipient.
func (p *Provider) SendBulkEmail(ctx context.Context, recipients []string, subject, body string, isHTML bool) error {
	return p.SendBulk(ctx, recipients, func(ctx context.Context, to string) error {
		return p.SendEmail(ctx, to, subject, body, isHTML)
	})
}

// ValidateConnection always succeeds.
func (p *Provider) ValidateConnection(context.Context) error {
	return nil
}
