package mailx

import "strings"

// EmailParams is a single outbound message.
type EmailParams struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	CC          []string          `json:"cc,omitempty"`
	BCC         []string          `json:"bcc,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	TextBody    string            `json:"text_body,omitempty"`
	HTMLBody    string            `json:"html_body,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Attachment represents an email attachment.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// SendResult represents the outcome of a single recipient in a bulk send.
type SendResult struct {
	To      string `json:"to"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Validate checks that the message has a sender, at least one primary
// recipient and at least one body.
func (p EmailParams) Validate() error {
	if strings.TrimSpace(p.From) == "" {
		return invalidParams("missing sender address")
	}
	if len(p.To) == 0 {
		return invalidParams("no recipients")
	}
	for _, to := range p.To {
		if strings.TrimSpace(to) == "" {
			return invalidParams("empty recipient address")
		}
	}
	if p.TextBody == "" && p.HTMLBody == "" {
		return invalidParams("empty body")
	}
	return nil
}

// HasAttachments reports whether the message carries any attachment.
func (p EmailParams) HasAttachments() bool {
	return len(p.Attachments) > 0
}

// Multipart reports whether the message needs a MIME multipart body.
func (p EmailParams) Multipart() bool {
	return p.HasAttachments() || (p.TextBody != "" && p.HTMLBody != "")
}

// Recipients returns To, CC and BCC in envelope order.
func (p EmailParams) Recipients() []string {
	all := make([]string, 0, len(p.To)+len(p.CC)+len(p.BCC))
	all = append(all, p.To...)
	all = append(all, p.CC...)
	all = append(all, p.BCC...)
	return all
}
