// Package mailxservice selects and builds the configured email provider.
package mailxservice

import (
	"context"
	"slices"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxazure"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxconsole"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxses"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxsmtp"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxstub"
)

// deps are the shared collaborators handed to each constructor.
type deps struct {
	renderer *mailx.Renderer
	logger   *logx.Logger
}

type constructor func(cfg config.EmailConfig, d deps) (mailx.Provider, error)

type entry struct {
	name     string
	validate func(cfg config.EmailConfig) error
	new      constructor
}

func noValidation(config.EmailConfig) error { return nil }

// registry is ordered so error messages list providers predictably.
var registry = []entry{
	{mailxsmtp.Name, mailxsmtp.ValidateConfig, func(cfg config.EmailConfig, d deps) (mailx.Provider, error) {
		return mailxsmtp.New(cfg, mailxsmtp.WithRenderer(d.renderer), mailxsmtp.WithLogger(d.logger))
	}},
	{mailxazure.Name, mailxazure.ValidateConfig, func(cfg config.EmailConfig, d deps) (mailx.Provider, error) {
		return mailxazure.New(cfg, mailxazure.WithRenderer(d.renderer), mailxazure.WithLogger(d.logger))
	}},
	{mailxses.Name, mailxses.ValidateConfig, func(cfg config.EmailConfig, d deps) (mailx.Provider, error) {
		return mailxses.New(cfg, mailxses.WithRenderer(d.renderer), mailxses.WithLogger(d.logger))
	}},
	{mailxstub.SendGrid, mailxstub.ValidateSendGrid, func(cfg config.EmailConfig, d deps) (mailx.Provider, error) {
		return mailxstub.NewSendGrid(cfg, mailxstub.WithRenderer(d.renderer), mailxstub.WithLogger(d.logger))
	}},
	{mailxstub.Resend, mailxstub.ValidateResend, func(cfg config.EmailConfig, d deps) (mailx.Provider, error) {
		return mailxstub.NewResend(cfg, mailxstub.WithRenderer(d.renderer), mailxstub.WithLogger(d.logger))
	}},
	{mailxconsole.Name, noValidation, func(cfg config.EmailConfig, d deps) (mailx.Provider, error) {
		return mailxconsole.New(cfg, mailxconsole.WithRenderer(d.renderer), mailxconsole.WithLogger(d.logger))
	}},
}

// SupportedProviders returns the provider names NewEmailService accepts.
func SupportedProviders() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	return names
}

type options struct {
	logger   *logx.Logger
	source   fsx.FileReader
	s3Client fsxs3.API
}

// Option configures NewEmailService.
type Option func(*options)

// WithLogger sets the logger handed to the provider and its renderer.
func WithLogger(l *logx.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTemplateSource overrides EMAIL_TEMPLATES_DIR with an existing source.
func WithTemplateSource(src fsx.FileReader) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithS3Client sets the client used for s3:// template locations.
func WithS3Client(c fsxs3.API) Option {
	return func(o *options) {
		o.s3Client = c
	}
}

// NewEmailService builds the provider named by cfg.Provider. An unknown
// name or missing required field fails before templates are loaded.
func NewEmailService(cfg config.EmailConfig, opts ...Option) (mailx.Provider, error) {
	o := options{logger: logx.GetDefaultLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	idx := slices.IndexFunc(registry, func(e entry) bool { return e.name == cfg.Provider })
	if idx < 0 {
		return nil, mailx.UnsupportedProvider(cfg.Provider, SupportedProviders())
	}
	e := registry[idx]

	if err := e.validate(cfg); err != nil {
		return nil, err
	}

	source := o.source
	if source == nil {
		source = openTemplateSource(cfg, o)
	}

	renderer := mailx.NewRenderer(
		mailx.WithTemplateSource(source),
		mailx.WithStrict(cfg.TemplatesStrict),
		mailx.WithRendererLogger(o.logger),
	)

	provider, err := e.new(cfg, deps{renderer: renderer, logger: o.logger})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logx.Fields{
		"provider":           provider.Name(),
		"bulk_concurrency":   cfg.BulkConcurrency,
		"rate_limit_per_min": cfg.RateLimitPerMinute,
	}).Info("email service ready")

	return provider, nil
}

// openTemplateSource resolves EMAIL_TEMPLATES_DIR. Failures are logged and
// yield no source.
func openTemplateSource(cfg config.EmailConfig, o options) fsx.FileReader {
	dir := cfg.TemplatesDir
	if dir == "" {
		return nil
	}

	if fsxs3.IsURI(dir) {
		bucket, prefix, err := fsxs3.ParseURI(dir)
		if err != nil {
			o.logger.WithField("templates_dir", dir).WithError(err).Warn("invalid template location, using embedded templates")
			return nil
		}
		client := o.s3Client
		if client == nil {
			awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.SES.Region))
			if err != nil {
				o.logger.WithField("templates_dir", dir).WithError(err).Warn("unable to load AWS config for templates, using embedded templates")
				return nil
			}
			client = s3.NewFromConfig(awsCfg)
		}
		o.logger.WithFields(logx.Fields{"bucket": bucket, "prefix": prefix}).Info("loading email templates from S3")
		return fsxs3.NewS3FileSystem(client, bucket, prefix)
	}

	local, err := fsxlocal.NewLocalFileSystem(dir)
	if err != nil {
		o.logger.WithField("templates_dir", dir).WithError(err).Warn("template directory unavailable, using embedded templates")
		return nil
	}
	o.logger.WithField("path", local.GetBasePath()).Info("loading email templates from directory")
	return local
}
