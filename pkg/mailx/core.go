package mailx

import (
	"context"

	"github.com/Abraxas-365/idp-mailer/pkg/asyncx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
)

// SendFunc sends one message to one recipient.
type SendFunc func(ctx context.Context, to, subject, body string, isHTML bool) error

// CoreConfig configures the behaviour shared by every provider.
type CoreConfig struct {
	Name     string
	From     string
	Renderer *Renderer

	// BulkLimit caps concurrent sends in SendBulk; <= 0 means unbounded.
	BulkLimit int
	Logger    *logx.Logger
}

// Core carries the state every provider shares: identity, default sender,
// template renderer and metrics. Providers embed it to get Name and
// GetMetrics for free.
type Core struct {
	name      string
	from      string
	renderer  *Renderer
	metrics   *Recorder
	bulkLimit int
	logger    *logx.Logger
}

// NewCore creates a Core with zeroed metrics.
func NewCore(cfg CoreConfig) *Core {
	logger := cfg.Logger
	if logger == nil {
		logger = logx.GetDefaultLogger()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewRenderer(WithRendererLogger(logger))
	}
	return &Core{
		name:      cfg.Name,
		from:      cfg.From,
		renderer:  renderer,
		metrics:   NewRecorder(),
		bulkLimit: cfg.BulkLimit,
		logger:    logger,
	}
}

func (c *Core) Name() string         { return c.name }
func (c *Core) From() string         { return c.from }
func (c *Core) Renderer() *Renderer  { return c.renderer }
func (c *Core) Logger() *logx.Logger { return c.logger }
func (c *Core) GetMetrics() Metrics  { return c.metrics.Snapshot() }
func (c *Core) Recorder() *Recorder  { return c.metrics }
func (c *Core) BulkLimit() int       { return c.bulkLimit }

// Params builds single-recipient params from the default sender.
func (c *Core) Params(to, subject, body string, isHTML bool) EmailParams {
	p := EmailParams{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
	}
	if isHTML {
		p.HTMLBody = body
	} else {
		p.TextBody = body
	}
	return p
}

// Validate checks params and records a validation failure when they are
// rejected.
func (c *Core) Validate(params EmailParams) error {
	if err := params.Validate(); err != nil {
		return c.Fail(ReasonValidation, err)
	}
	return nil
}

// Succeed records one delivered message.
func (c *Core) Succeed(params EmailParams) {
	c.metrics.RecordSuccess()
	c.logger.WithFields(logx.Fields{
		"provider": c.name,
		"to":       params.To,
		"subject":  params.Subject,
	}).Debug("email sent")
}

// Fail records one failed attempt under reason and returns err unchanged.
func (c *Core) Fail(reason string, err error) error {
	c.metrics.RecordFailure(reason)
	c.logger.WithFields(logx.Fields{
		"provider": c.name,
		"reason":   reason,
	}).WithError(err).Warn("email send failed")
	return err
}

// SendTemplated renders templateName and sends the result as HTML through
// send. TemplatesSent is only incremented when send succeeds.
func (c *Core) SendTemplated(ctx context.Context, send SendFunc, templateName, to string, data any) error {
	subject, body, err := c.renderer.Render(templateName, data)
	if err != nil {
		return c.Fail(ReasonTemplateRender, err)
	}

	if err := send(ctx, to, subject, body, true); err != nil {
		return err
	}

	c.metrics.RecordTemplate(templateName)
	return nil
}

// SendBulk runs send once per recipient with at most BulkLimit sends in
// flight and waits for all of them. Any failure yields ErrBulkSendFailed
// wrapping the first error received, with per-recipient results attached.
func (c *Core) SendBulk(ctx context.Context, recipients []string, send func(ctx context.Context, to string) error) error {
	if len(recipients) == 0 {
		return nil
	}

	results := make([]SendResult, len(recipients))
	errCh := make(chan error, len(recipients))

	asyncx.ForEachLimit(ctx, c.bulkLimit, recipients, func(ctx context.Context, i int, to string) {
		results[i] = SendResult{To: to, Success: true}
		if err := send(ctx, to); err != nil {
			results[i].Success = false
			results[i].Error = err.Error()
			errCh <- err
		}
	})
	close(errCh)

	var first error
	failed := 0
	for err := range errCh {
		if first == nil {
			first = err
		}
		failed++
	}
	if failed == 0 {
		return nil
	}

	c.logger.WithFields(logx.Fields{
		"provider": c.name,
		"failed":   failed,
		"total":    len(recipients),
	}).Warn("bulk email send finished with failures")

	return bulkSendFailed(failed, len(recipients), first, results)
}
