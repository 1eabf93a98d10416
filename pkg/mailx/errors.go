package mailx

import (
	"errors"
	"fmt"

	"github.com/Abraxas-365/idp-mailer/pkg/errx"
)

var mailxErrors = errx.NewRegistry("MAILX")

var (
	ErrSendFailed          = mailxErrors.Register("SEND_FAILED", errx.TypeExternal, "Failed to send email")
	ErrInvalidParams       = mailxErrors.Register("INVALID_PARAMS", errx.TypeValidation, "Invalid email message")
	ErrInvalidConfig       = mailxErrors.Register("INVALID_CONFIG", errx.TypeValidation, "Invalid email provider configuration")
	ErrTemplateNotFound    = mailxErrors.Register("TEMPLATE_NOT_FOUND", errx.TypeNotFound, "Email template not found")
	ErrTemplateParse       = mailxErrors.Register("TEMPLATE_PARSE", errx.TypeValidation, "Failed to parse email template")
	ErrTemplateRender      = mailxErrors.Register("TEMPLATE_RENDER", errx.TypeInternal, "Failed to render email template")
	ErrBulkSendFailed      = mailxErrors.Register("BULK_SEND_FAILED", errx.TypeExternal, "Bulk email send failed")
	ErrNotImplemented      = mailxErrors.Register("NOT_IMPLEMENTED", errx.TypeUnsupported, "Email provider is not implemented")
	ErrUnsupportedProvider = mailxErrors.Register("UNSUPPORTED_PROVIDER", errx.TypeValidation, "Unsupported email provider")
)

func invalidParams(reason string) *errx.Error {
	return mailxErrors.New(ErrInvalidParams).WithDetail("reason", reason)
}

// InvalidConfig reports a missing or malformed provider setting.
func InvalidConfig(provider, field string) *errx.Error {
	return mailxErrors.NewWithMessage(ErrInvalidConfig, fmt.Sprintf("%s: %s is required", provider, field)).
		WithDetail("provider", provider).
		WithDetail("field", field)
}

// NotImplemented reports a send attempted on a stub provider.
func NotImplemented(provider string) *errx.Error {
	return mailxErrors.NewWithMessage(ErrNotImplemented, fmt.Sprintf("%s provider is not implemented", provider)).
		WithDetail("provider", provider)
}

// UnsupportedProvider reports an unknown provider name.
func UnsupportedProvider(name string, supported []string) *errx.Error {
	return mailxErrors.NewWithMessage(ErrUnsupportedProvider,
		fmt.Sprintf("unsupported email provider %q (supported: %v)", name, supported)).
		WithDetail("provider", name).
		WithDetail("supported", supported)
}

func bulkSendFailed(failed, total int, first error, results []SendResult) *errx.Error {
	e := mailxErrors.NewWithMessage(ErrBulkSendFailed, fmt.Sprintf("failed to send %d/%d emails", failed, total)).
		WithDetail("failed", failed).
		WithDetail("total", total).
		WithDetail("results", results)
	e.Err = first
	return e
}

// BulkResults returns the per-recipient outcomes carried by a bulk send
// error, or nil when err is not one.
func BulkResults(err error) []SendResult {
	var e *errx.Error
	for err != nil {
		if !errors.As(err, &e) {
			return nil
		}
		if e.Code == ErrBulkSendFailed.Code {
			results, _ := e.Details["results"].([]SendResult)
			return results
		}
		err = e.Err
	}
	return nil
}
