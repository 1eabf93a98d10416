// Package mailx defines the provider-agnostic email delivery contract shared
// by every backend: the message model, the Provider interface, delivery
// metrics, template rendering and the bulk fan-out.
package mailx

import "context"

// Provider is a concrete email backend. Implementations are safe for
// concurrent use and keep their own Metrics for their whole lifetime.
type Provider interface {
	// Name returns the provider identifier, e.g. "smtp" or "azure".
	Name() string

	// Send delivers a fully specified message.
	Send(ctx context.Context, params EmailParams) error

	// SendEmail sends one message to one recipient with a single body variant.
	SendEmail(ctx context.Context, to, subject, body string, isHTML bool) error

	// SendTemplatedEmail renders a known template and sends it as HTML.
	SendTemplatedEmail(ctx context.Context, templateName, to string, data any) error

	// SendBulkEmail sends the same message to every recipient independently.
	SendBulkEmail(ctx context.Context, recipients []string, subject, body string, isHTML bool) error

	// ValidateConnection checks configuration or reachability without
	// delivering a message.
	ValidateConnection(ctx context.Context) error

	// GetMetrics returns a snapshot of the delivery counters.
	GetMetrics() Metrics
}
