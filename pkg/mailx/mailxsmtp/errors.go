package mailxsmtp

import "github.com/Abraxas-365/idp-mailer/pkg/errx"

var smtpErrors = errx.NewRegistry("MAILX_SMTP")

var (
	ErrDial         = smtpErrors.Register("DIAL", errx.TypeExternal, "Failed to connect to SMTP server")
	ErrStartTLS     = smtpErrors.Register("STARTTLS", errx.TypeExternal, "STARTTLS negotiation failed")
	ErrAuth         = smtpErrors.Register("AUTH", errx.TypeAuthorization, "SMTP authentication failed")
	ErrMailFrom     = smtpErrors.Register("MAIL_FROM", errx.TypeExternal, "SMTP server rejected MAIL FROM")
	ErrRcptTo       = smtpErrors.Register("RCPT_TO", errx.TypeExternal, "SMTP server rejected RCPT TO")
	ErrData         = smtpErrors.Register("DATA", errx.TypeExternal, "SMTP server rejected DATA")
	ErrWrite        = smtpErrors.Register("WRITE", errx.TypeExternal, "Failed to write SMTP message")
	ErrClose        = smtpErrors.Register("CLOSE", errx.TypeExternal, "SMTP server rejected message")
	ErrSendMail     = smtpErrors.Register("SEND_MAIL", errx.TypeExternal, "SMTP send failed")
	ErrBuildMessage = smtpErrors.Register("BUILD_MESSAGE", errx.TypeInternal, "Failed to build SMTP message")
)
