package mailx

import (
	"bytes"
	"io"
	"net/mail"
	"sort"
	"strings"
	"time"

	gomail "github.com/go-mail/mail"
	"github.com/google/uuid"
)

// NewMessageID returns an RFC 5322 Message-ID in the sender's domain.
func NewMessageID(from string) string {
	domain := "localhost"
	if addr, err := mail.ParseAddress(from); err == nil {
		if i := strings.LastIndex(addr.Address, "@"); i >= 0 && i < len(addr.Address)-1 {
			domain = addr.Address[i+1:]
		}
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

// SortedHeaders returns the custom header names in a stable order.
func SortedHeaders(headers map[string]string) []string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildMIME renders params as a MIME message, using multipart/alternative
// when both bodies are set and multipart/mixed for attachments. Bcc is
// never written.
func BuildMIME(params EmailParams, date time.Time, messageID string) ([]byte, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", params.From)
	m.SetHeader("To", params.To...)
	if len(params.CC) > 0 {
		m.SetHeader("Cc", params.CC...)
	}
	if params.ReplyTo != "" {
		m.SetHeader("Reply-To", params.ReplyTo)
	}
	m.SetHeader("Subject", params.Subject)
	m.SetDateHeader("Date", date)
	m.SetHeader("Message-ID", messageID)
	for _, k := range SortedHeaders(params.Headers) {
		if strings.EqualFold(k, "Bcc") {
			continue
		}
		m.SetHeader(k, params.Headers[k])
	}

	switch {
	case params.TextBody != "" && params.HTMLBody != "":
		m.SetBody("text/plain", params.TextBody)
		m.AddAlternative("text/html", params.HTMLBody)
	case params.HTMLBody != "":
		m.SetBody("text/html", params.HTMLBody)
	default:
		m.SetBody("text/plain", params.TextBody)
	}

	for _, a := range params.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		m.Attach(a.Filename, settings...)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
