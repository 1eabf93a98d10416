package mailxazure

type emailAddress struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

type emailContent struct {
	Subject   string `json:"subject"`
	PlainText string `json:"plainText,omitempty"`
	HTML      string `json:"html,omitempty"`
}

type emailRecipients struct {
	To  []emailAddress `json:"to"`
	CC  []emailAddress `json:"cc,omitempty"`
	BCC []emailAddress `json:"bcc,omitempty"`
}

type emailAttachment struct {
	Name            string `json:"name"`
	ContentType     string `json:"contentType"`
	ContentInBase64 string `json:"contentInBase64"`
}

type sendRequest struct {
	SenderAddress string            `json:"senderAddress"`
	Content       emailContent      `json:"content"`
	Recipients    emailRecipients   `json:"recipients"`
	ReplyTo       []emailAddress    `json:"replyTo,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Attachments   []emailAttachment `json:"attachments,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// operation is both the send response and the status poll response.
type operation struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Error  *apiError `json:"error"`
}

const (
	statusSucceeded = "Succeeded"
	statusFailed    = "Failed"
	statusCanceled  = "Canceled"
)
