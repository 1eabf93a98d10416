package mailxazure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/google/uuid"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

const (
	// Name is the provider identifier.
	Name = "azure"

	apiVersion = "2023-03-31"
	moduleName = "mailxazure"
	moduleVer  = "v1.0.0"
)

// Option configures the Azure provider.
type Option func(*Provider)

// WithHTTPClient replaces the transport used by the request pipeline.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithClock replaces the clock used for the signed Date header.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
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

// Provider sends email through the Azure Communication Services REST API
// using HMAC-SHA256 signed requests.
type Provider struct {
	*mailx.Core

	endpoint      string
	accessKey     string
	senderAddress string

	polling      bool
	pollInterval time.Duration
	pollAttempts int

	httpClient *http.Client
	pipeline   runtime.Pipeline
	now        func() time.Time

	renderer *mailx.Renderer
	logger   *logx.Logger
}

// ValidateConfig checks the connection string and sender address.
func ValidateConfig(cfg config.EmailConfig) error {
	_, _, err := parseConfig(cfg)
	return err
}

func parseConfig(cfg config.EmailConfig) (endpoint, accessKey string, err error) {
	if strings.TrimSpace(cfg.Azure.ConnectionString) == "" {
		return "", "", mailx.InvalidConfig(Name, "AZURE_EMAIL_CONNECTION_STRING")
	}
	endpoint, accessKey, err = ParseConnectionString(cfg.Azure.ConnectionString)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return "", "", mailx.InvalidConfig(Name, "EMAIL_FROM_ADDRESS")
	}
	return endpoint, accessKey, nil
}

// New creates an Azure provider from AZURE_EMAIL_CONNECTION_STRING.
func New(cfg config.EmailConfig, opts ...Option) (*Provider, error) {
	endpoint, accessKey, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		endpoint:      endpoint,
		accessKey:     accessKey,
		senderAddress: cfg.FromAddress,
		polling:       cfg.Azure.PollingEnabled,
		pollInterval:  cfg.Azure.PollInterval,
		pollAttempts:  cfg.Azure.PollAttempts,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.pipeline = runtime.NewPipeline(moduleName, moduleVer, runtime.PipelineOptions{}, &policy.ClientOptions{
		Transport: p.httpClient,
		Retry:     policy.RetryOptions{MaxRetries: -1},
		Telemetry: policy.TelemetryOptions{Disabled: true},
	})

	p.Core = mailx.NewCore(mailx.CoreConfig{
		Name:      Name,
		From:      cfg.Sender(),
		Renderer:  p.renderer,
		BulkLimit: cfg.BulkConcurrency,
		Logger:    p.logger,
	})

	return p, nil
}

// Endpoint returns the resource endpoint without trailing slash.
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// Send posts params to the emails:send operation.
func (p *Provider) Send(ctx context.Context, params mailx.EmailParams) error {
	if params.From == "" {
		params.From = p.From()
	}
	if err := p.Validate(params); err != nil {
		return err
	}

	body, err := json.Marshal(p.buildRequest(params))
	if err != nil {
		return p.Fail(mailx.ReasonMarshal, azureErrors.NewWithCause(ErrMarshal, err))
	}

	op, reason, err := p.do(ctx, http.MethodPost, p.endpoint+"/emails:send?api-version="+apiVersion, body, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return p.Fail(reason, err)
	}

	if p.polling && op.ID != "" {
		if reason, err := p.poll(ctx, op.ID); err != nil {
			return p.Fail(reason, err)
		}
	}

	p.Succeed(params)
	return nil
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

// ValidateConnection checks that the endpoint and key are configured. No
// request is sent.
func (p *Provider) ValidateConnection(_ context.Context) error {
	if p.endpoint == "" || p.accessKey == "" {
		return mailx.InvalidConfig(Name, "AZURE_EMAIL_CONNECTION_STRING")
	}
	return nil
}

func (p *Provider) buildRequest(params mailx.EmailParams) sendRequest {
	req := sendRequest{
		SenderAddress: p.senderAddress,
		Content: emailContent{
			Subject:   params.Subject,
			PlainText: params.TextBody,
			HTML:      params.HTMLBody,
		},
		Recipients: emailRecipients{
			To:  addresses(params.To),
			CC:  addresses(params.CC),
			BCC: addresses(params.BCC),
		},
	}
	if addr, err := mail.ParseAddress(params.From); err == nil {
		req.SenderAddress = addr.Address
	}
	if params.ReplyTo != "" {
		req.ReplyTo = addresses([]string{params.ReplyTo})
	}
	if len(params.Headers) > 0 {
		req.Headers = params.Headers
	}
	for _, a := range params.Attachments {
		req.Attachments = append(req.Attachments, emailAttachment{
			Name:            a.Filename,
			ContentType:     a.ContentType,
			ContentInBase64: base64.StdEncoding.EncodeToString(a.Data),
		})
	}
	return req
}

func addresses(list []string) []emailAddress {
	if len(list) == 0 {
		return nil
	}
	out := make([]emailAddress, 0, len(list))
	for _, raw := range list {
		if addr, err := mail.ParseAddress(raw); err == nil {
			out = append(out, emailAddress{Address: addr.Address, DisplayName: addr.Name})
			continue
		}
		out = append(out, emailAddress{Address: raw})
	}
	return out
}

// do sends one signed request and decodes the operation in the response.
func (p *Provider) do(ctx context.Context, method, endpoint string, body []byte, okStatus ...int) (*operation, string, error) {
	req, err := runtime.NewRequest(ctx, method, endpoint)
	if err != nil {
		return nil, mailx.ReasonRequest, azureErrors.NewWithCause(ErrRequest, err).WithDetail("url", endpoint)
	}

	raw := req.Raw()
	date := p.now().UTC().Format(http.TimeFormat)
	contentHash, authorization := AuthHeader(method, raw.URL.RequestURI(), date, body, p.accessKey)
	raw.Header.Set("Date", date)
	raw.Header.Set("x-ms-date", date)
	raw.Header.Set("x-ms-content-sha256", contentHash)
	raw.Header.Set("Authorization", authorization)
	raw.Header.Set("x-ms-client-request-id", uuid.NewString())
	raw.Header.Set("Accept", "application/json")

	if body != nil {
		if err := req.SetBody(streaming.NopCloser(bytes.NewReader(body)), "application/json"); err != nil {
			return nil, mailx.ReasonRequest, azureErrors.NewWithCause(ErrRequest, err)
		}
	}

	resp, err := p.pipeline.Do(req)
	if err != nil {
		return nil, mailx.ReasonNetwork, azureErrors.NewWithCause(ErrNetwork, err).WithDetail("url", endpoint)
	}

	payload, err := runtime.Payload(resp)
	if err != nil {
		return nil, mailx.ReasonReadResponse, azureErrors.NewWithCause(ErrReadResponse, err)
	}

	if !runtime.HasStatusCode(resp, okStatus...) {
		msg := fmt.Sprintf("azure API returned status %d", resp.StatusCode)
		var op operation
		if json.Unmarshal(payload, &op) == nil && op.Error != nil {
			msg += ": " + op.Error.Code + ": " + op.Error.Message
		}
		e := azureErrors.NewWithMessage(ErrAPIStatus, msg).WithDetail("status", resp.StatusCode)
		if op.Error != nil {
			e.WithDetail("code", op.Error.Code).WithDetail("message", op.Error.Message)
		} else if len(payload) > 0 {
			e.WithDetail("body", string(payload))
		}
		return nil, mailx.ReasonAPIStatus, e
	}

	op := &operation{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, op); err != nil {
			return nil, mailx.ReasonParseResponse, azureErrors.NewWithCause(ErrParseResponse, err).
				WithDetail("body", string(payload))
		}
	}
	if op.Error != nil {
		return nil, mailx.ReasonAPI, apiFailure(op)
	}
	return op, "", nil
}

// poll follows the send operation until it reaches a terminal status or
// the attempts run out. Running out is not a failure: the message was
// already accepted.
func (p *Provider) poll(ctx context.Context, id string) (string, error) {
	endpoint := p.endpoint + "/emails/operations/" + url.PathEscape(id) + "?api-version=" + apiVersion

	for attempt := 0; attempt < p.pollAttempts; attempt++ {
		if p.pollInterval > 0 {
			select {
			case <-time.After(p.pollInterval):
			case <-ctx.Done():
				return mailx.ReasonNetwork, azureErrors.NewWithCause(ErrNetwork, ctx.Err()).WithDetail("operation", id)
			}
		}

		op, reason, err := p.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK)
		if err != nil {
			return reason, err
		}

		switch op.Status {
		case statusSucceeded:
			return "", nil
		case statusFailed, statusCanceled:
			return mailx.ReasonAPI, apiFailure(op)
		}
	}

	p.Logger().WithFields(logx.Fields{
		"provider":  Name,
		"operation": id,
		"attempts":  p.pollAttempts,
	}).Warn("azure email operation still running after polling")
	return "", nil
}

func apiFailure(op *operation) *errx.Error {
	e := azureErrors.New(ErrAPI).
		WithDetail("operation", op.ID).
		WithDetail("status", op.Status)
	if op.Error != nil {
		e.Message = "azure API error " + op.Error.Code + ": " + op.Error.Message
		e.WithDetail("code", op.Error.Code).WithDetail("message", op.Error.Message)
	}
	return e
}
