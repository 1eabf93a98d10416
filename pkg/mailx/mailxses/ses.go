package mailxses

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

// Name is the provider identifier.
const Name = "aws_ses"

// API is the subset of *ses.Client the provider calls.
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
	GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, optFns ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error)
}

// Option configures the SES provider.
type Option func(*Provider)

// WithClient supplies the SES client instead of building one from the
// AWS default configuration.
func WithClient(c API) Option {
	return func(p *Provider) {
		p.client = c
	}
}

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

// Provider sends email through AWS SES.
type Provider struct {
	*mailx.Core

	client           API
	configurationSet string
	now              func() time.Time

	renderer *mailx.Renderer
	logger   *logx.Logger
}

// ValidateConfig checks the sender address and region.
func ValidateConfig(cfg config.EmailConfig) error {
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return mailx.InvalidConfig(Name, "EMAIL_FROM_ADDRESS")
	}
	if strings.TrimSpace(cfg.SES.Region) == "" {
		return mailx.InvalidConfig(Name, "AWS_REGION")
	}
	return nil
}

// New creates an SES provider. Static credentials are used when both
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are set, otherwise the
// default AWS credential chain applies.
func New(cfg config.EmailConfig, opts ...Option) (*Provider, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	p := &Provider{
		configurationSet: cfg.SES.ConfigurationSet,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		client, err := newClient(cfg.SES)
		if err != nil {
			return nil, err
		}
		p.client = client
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

func newClient(sc config.SESConfig) (*ses.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(sc.Region)}
	if sc.AccessKeyID != "" && sc.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKeyID, sc.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, sesErrors.NewWithCause(ErrAWSConfig, err).WithDetail("region", sc.Region)
	}
	return ses.NewFromConfig(awsCfg), nil
}

// Send delivers params with SendEmail, or with SendRawEmail when the
// message carries attachments or custom headers.
func (p *Provider) Send(ctx context.Context, params mailx.EmailParams) error {
	if params.From == "" {
		params.From = p.From()
	}
	if err := p.Validate(params); err != nil {
		return err
	}

	if params.HasAttachments() || len(params.Headers) > 0 {
		return p.sendRaw(ctx, params)
	}

	body := &types.Body{}
	if params.TextBody != "" {
		body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if params.HTMLBody != "" {
		body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(params.From),
		Destination: &types.Destination{
			ToAddresses:  params.To,
			CcAddresses:  params.CC,
			BccAddresses: params.BCC,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: body,
		},
		ConfigurationSetName: p.configSet(),
	}
	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	if _, err := p.client.SendEmail(ctx, input); err != nil {
		return p.Fail(mailx.ReasonSESSend, sesErrors.NewWithCause(ErrSendFailed, err).
			WithDetail("to", params.To).
			WithDetail("subject", params.Subject))
	}

	p.Succeed(params)
	return nil
}

func (p *Provider) sendRaw(ctx context.Context, params mailx.EmailParams) error {
	raw, err := mailx.BuildMIME(params, p.now(), mailx.NewMessageID(params.From))
	if err != nil {
		return p.Fail(mailx.ReasonBuildMessage, sesErrors.NewWithCause(ErrBuildMessage, err))
	}

	input := &ses.SendRawEmailInput{
		Source:               aws.String(params.From),
		Destinations:         params.Recipients(),
		RawMessage:           &types.RawMessage{Data: raw},
		ConfigurationSetName: p.configSet(),
	}

	if _, err := p.client.SendRawEmail(ctx, input); err != nil {
		return p.Fail(mailx.ReasonSESSend, sesErrors.NewWithCause(ErrSendFailed, err).
			WithDetail("to", params.To).
			WithDetail("subject", params.Subject).
			WithDetail("raw", true))
	}

	p.Succeed(params)
	return nil
}

func (p *Provider) configSet() *string {
	if p.configurationSet == "" {
		return nil
	}
	return aws.String(p.configurationSet)
}

// SendEmail sends one message to one recipient.
func (p *Provider) SendEmail(ctx context.Context, to, subject, body string, isHTML bool) error {
	return p.Send(ctx, p.Params(to, subject, body, isHTML))
}

// SendTemplatedEmail renders templateName and sends it as HTML.
func (p *Provider) SendTemplatedEmail(ctx context.Context, templateName, to string, data any) error {
	return p.SendTemplated(ctx, p.SendEmail, templateName, to, data)
}

// SendBulkEmail sends to every recipient concurrently.
func (p *Provider) SendBulkEmail(ctx context.Context, recipients []string, subject, body string, isHTML bool) error {
	return p.SendBulk(ctx, recipients, func(ctx context.Context, to string) error {
		return p.SendEmail(ctx, to, subject, body, isHTML)
	})
}

// ValidateConnection reads the account send quota.
func (p *Provider) ValidateConnection(ctx context.Context) error {
	out, err := p.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
	if err != nil {
		return sesErrors.NewWithCause(ErrQuota, err)
	}
	p.Logger().WithFields(logx.Fields{
		"provider":  Name,
		"max_24h":   out.Max24HourSend,
		"sent_24h":  out.SentLast24Hours,
		"max_per_s": out.MaxSendRate,
	}).Debug("ses send quota")
	return nil
}
