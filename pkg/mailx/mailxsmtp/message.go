package mailxsmtp

import (
	"bytes"
	"mime"
	"strings"
	"time"

	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

// reserved headers are written by buildMessage itself.
var reserved = map[string]bool{
	"from": true, "to": true, "cc": true, "bcc": true, "reply-to": true,
	"subject": true, "date": true, "message-id": true,
	"mime-version": true, "content-type": true,
}

// buildMessage renders a single-part RFC 822 message. Multipart messages
// go through mailx.BuildMIME.
func buildMessage(params mailx.EmailParams, date time.Time, messageID string) ([]byte, error) {
	if params.Multipart() {
		return mailx.BuildMIME(params, date, messageID)
	}

	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}

	header("From", sanitize(params.From))
	header("To", sanitize(strings.Join(params.To, ", ")))
	if len(params.CC) > 0 {
		header("Cc", sanitize(strings.Join(params.CC, ", ")))
	}
	if params.ReplyTo != "" {
		header("Reply-To", sanitize(params.ReplyTo))
	}
	header("Subject", mime.QEncoding.Encode("UTF-8", sanitize(params.Subject)))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	for _, k := range mailx.SortedHeaders(params.Headers) {
		name := sanitize(k)
		if name == "" || reserved[strings.ToLower(name)] {
			continue
		}
		header(name, sanitize(params.Headers[k]))
	}
	header("MIME-Version", "1.0")

	body := params.TextBody
	contentType := "text/plain; charset=UTF-8"
	if params.HTMLBody != "" {
		body = params.HTMLBody
		contentType = "text/html; charset=UTF-8"
	}
	header("Content-Type", contentType)

	buf.WriteString("\r\n")
	buf.WriteString(normalizeBody(body))
	return buf.Bytes(), nil
}

func normalizeBody(body string) string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}

func sanitize(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}
