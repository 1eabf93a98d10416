package mailxsmtp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

// Name is the provider identifier.
const Name = "smtp"

// Dialer abstracts net.Dialer so tests can hand out in-memory connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures the SMTP provider.
type Option func(*Provider)

// WithDialer swaps the dialer used on the STARTTLS path.
func WithDialer(d Dialer) Option {
	return func(p *Provider) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithTLSConfig overrides the configuration used for STARTTLS.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(p *Provider) {
		p.tlsConfig = cfg
	}
}

// WithClock replaces the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithBulkDelay sets the pause each bulk worker takes after a send.
func WithBulkDelay(d time.Duration) Option {
	return func(p *Provider) {
		p.bulkDelay = d
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

// Provider delivers email through an SMTP relay. Every send opens its own
// connection; no state is shared between sends.
type Provider struct {
	*mailx.Core

	host       string
	port       int
	addr       string
	auth       smtp.Auth
	tlsEnabled bool
	helloName  string
	tlsConfig  *tls.Config
	dialer     Dialer
	now        func() time.Time
	bulkDelay  time.Duration

	renderer *mailx.Renderer
	logger   *logx.Logger
}

// ValidateConfig checks the fields New requires without touching the network.
func ValidateConfig(cfg config.EmailConfig) error {
	sc := cfg.SMTP
	if strings.TrimSpace(sc.Host) == "" {
		return mailx.InvalidConfig(Name, "SMTP_HOST")
	}
	if sc.Port <= 0 || sc.Port > 65535 {
		return mailx.InvalidConfig(Name, "SMTP_PORT").WithDetail("port", sc.Port)
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return mailx.InvalidConfig(Name, "EMAIL_FROM_ADDRESS")
	}
	return nil
}

// New creates an SMTP provider. Host and sender address are required.
func New(cfg config.EmailConfig, opts ...Option) (*Provider, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	sc := cfg.SMTP

	p := &Provider{
		host:       sc.Host,
		port:       sc.Port,
		addr:       net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		tlsEnabled: sc.TLSEnabled,
		helloName:  sc.HeloName,
		tlsConfig:  &tls.Config{ServerName: sc.Host, MinVersion: tls.VersionTLS12},
		dialer:     &net.Dialer{Timeout: 30 * time.Second},
		now:        time.Now,
		bulkDelay:  sc.BulkDelay,
	}
	if p.helloName == "" {
		p.helloName = "localhost"
	}
	if sc.Username != "" {
		p.auth = smtp.PlainAuth("", sc.Username, sc.Password, sc.Host)
	}

	for _, opt := range opts {
		opt(p)
	}

	p.Core = mailx.NewCore(mailx.CoreConfig{
		Name:      Name,
		From:      cfg.Sender(),
		Renderer:  p.renderer,
		BulkLimit: sc.MaxConnections,
		Logger:    p.logger,
	})

	return p, nil
}

// Send delivers params in one SMTP session.
func (p *Provider) Send(ctx context.Context, params mailx.EmailParams) error {
	if params.From == "" {
		params.From = p.From()
	}
	if err := p.Validate(params); err != nil {
		return err
	}

	envelopeFrom, err := envelopeAddress(params.From)
	if err != nil {
		return p.Fail(mailx.ReasonValidation, smtpErrors.NewWithCause(ErrBuildMessage, err).
			WithDetail("from", params.From))
	}
	rcpts := make([]string, 0, len(params.Recipients()))
	for _, r := range params.Recipients() {
		addr, err := envelopeAddress(r)
		if err != nil {
			return p.Fail(mailx.ReasonValidation, smtpErrors.NewWithCause(ErrBuildMessage, err).
				WithDetail("recipient", r))
		}
		rcpts = append(rcpts, addr)
	}

	msg, err := buildMessage(params, p.now(), mailx.NewMessageID(params.From))
	if err != nil {
		return p.Fail(mailx.ReasonSendError, smtpErrors.NewWithCause(ErrBuildMessage, err))
	}

	if !p.tlsEnabled {
		if err := smtp.SendMail(p.addr, p.auth, envelopeFrom, rcpts, msg); err != nil {
			return p.Fail(mailx.ReasonSendMail, p.wrap(ErrSendMail, err))
		}
		p.Succeed(params)
		return nil
	}

	if reason, err := p.deliver(ctx, envelopeFrom, rcpts, msg); err != nil {
		return p.Fail(reason, err)
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

// SendBulkEmail sends to every recipient with at most SMTP_MAX_CONNECTIONS
// sessions open. Each worker pauses for the bulk delay after its send.
func (p *Provider) SendBulkEmail(ctx context.Context, recipients []string, subject, body string, isHTML bool) error {
	return p.SendBulk(ctx, recipients, func(ctx context.Context, to string) error {
		err := p.SendEmail(ctx, to, subject, body, isHTML)
		if p.bulkDelay > 0 {
			select {
			case <-time.After(p.bulkDelay):
			case <-ctx.Done():
			}
		}
		return err
	})
}

// ValidateConnection dials the server, negotiates STARTTLS and
// authenticates when enabled, then quits without sending.
func (p *Provider) ValidateConnection(ctx context.Context) error {
	client, _, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	// A rejected QUIT is a protocol failure. Anything else happens while
	// tearing down a session that already completed the handshake.
	if err := client.Quit(); err != nil {
		var reply *textproto.Error
		if errors.As(err, &reply) {
			return p.wrap(ErrDial, err)
		}
		p.Logger().WithField("host", p.host).WithError(err).Debug("smtp connection close failed after quit")
	}
	return nil
}

// open dials and prepares a session: greeting, EHLO, then STARTTLS and
// AUTH when TLS is enabled. The returned reason classifies a failure.
func (p *Provider) open(ctx context.Context) (*smtp.Client, string, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, mailx.ReasonSMTPDial, p.wrap(ErrDial, err)
	}

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		conn.Close()
		return nil, mailx.ReasonSMTPDial, p.wrap(ErrDial, err)
	}
	if err := client.Hello(p.helloName); err != nil {
		client.Close()
		return nil, mailx.ReasonSMTPDial, p.wrap(ErrDial, err)
	}

	if !p.tlsEnabled {
		return client, "", nil
	}

	tlsCfg := &tls.Config{ServerName: p.host}
	if p.tlsConfig != nil {
		tlsCfg = p.tlsConfig.Clone()
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = p.host
		}
	}
	if err := client.StartTLS(tlsCfg); err != nil {
		client.Close()
		return nil, mailx.ReasonStartTLS, p.wrap(ErrStartTLS, err)
	}

	if p.auth != nil {
		if err := client.Auth(p.auth); err != nil {
			client.Close()
			return nil, mailx.ReasonAuth, p.wrap(ErrAuth, err)
		}
	}

	return client, "", nil
}

func (p *Provider) deliver(ctx context.Context, from string, rcpts []string, msg []byte) (string, error) {
	client, reason, err := p.open(ctx)
	if err != nil {
		return reason, err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return mailx.ReasonMailFrom, p.wrap(ErrMailFrom, err).WithDetail("from", from)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return mailx.ReasonRcptTo, p.wrap(ErrRcptTo, err).WithDetail("recipient", rcpt)
		}
	}

	w, err := client.Data()
	if err != nil {
		return mailx.ReasonDataCommand, p.wrap(ErrData, err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return mailx.ReasonWrite, p.wrap(ErrWrite, err)
	}
	if err := w.Close(); err != nil {
		return mailx.ReasonClose, p.wrap(ErrClose, err)
	}

	if err := client.Quit(); err != nil {
		p.Logger().WithField("host", p.host).WithError(err).Debug("smtp quit failed after delivery")
	}
	return "", nil
}

func (p *Provider) wrap(code *errx.ErrorCode, err error) *errx.Error {
	return smtpErrors.NewWithCause(code, err).WithDetail("host", p.addr)
}

func envelopeAddress(value string) (string, error) {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
