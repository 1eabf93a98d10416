package mailx

// Failure reasons recorded in Metrics.FailuresByType.
const (
	ReasonSendError      = "send_error"
	ReasonTemplateRender = "template_render_error"
	ReasonValidation     = "validation_error"
	ReasonNotImplemented = "not_implemented"

	// SMTP
	ReasonSMTPDial    = "smtp_dial_error"
	ReasonStartTLS    = "starttls_error"
	ReasonAuth        = "auth_error"
	ReasonMailFrom    = "mail_from_error"
	ReasonRcptTo      = "rcpt_to_error"
	ReasonDataCommand = "data_command_error"
	ReasonWrite       = "write_error"
	ReasonClose       = "close_error"
	ReasonSendMail    = "send_mail_error"

	// HTTP APIs
	ReasonMarshal       = "marshal_error"
	ReasonRequest       = "request_error"
	ReasonNetwork       = "network_error"
	ReasonReadResponse  = "read_response_error"
	ReasonParseResponse = "parse_response_error"
	ReasonAPIStatus     = "api_status_error"
	ReasonAPI           = "api_error"

	// SES
	ReasonSESSend      = "ses_send_error"
	ReasonBuildMessage = "build_message_error"
)
