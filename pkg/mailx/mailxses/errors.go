package mailxses

import "github.com/Abraxas-365/idp-mailer/pkg/errx"

var sesErrors = errx.NewRegistry("MAILX_SES")

var (
	ErrSendFailed   = sesErrors.Register("SEND_FAILED", errx.TypeExternal, "SES send email failed")
	ErrBuildMessage = sesErrors.Register("BUILD_MESSAGE", errx.TypeInternal, "Failed to build SES message")
	ErrAWSConfig    = sesErrors.Register("AWS_CONFIG", errx.TypeValidation, "Failed to load AWS configuration")
	ErrQuota        = sesErrors.Register("QUOTA", errx.TypeExternal, "Failed to read SES send quota")
)
