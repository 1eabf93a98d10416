package mailxazure

import "github.com/Abraxas-365/idp-mailer/pkg/errx"

var azureErrors = errx.NewRegistry("MAILX_AZURE")

var (
	ErrConnectionString = azureErrors.Register("CONNECTION_STRING", errx.TypeValidation, "Invalid Azure Communication Services connection string")
	ErrMarshal          = azureErrors.Register("MARSHAL", errx.TypeInternal, "Failed to encode email request")
	ErrRequest          = azureErrors.Register("REQUEST", errx.TypeInternal, "Failed to build email request")
	ErrNetwork          = azureErrors.Register("NETWORK", errx.TypeExternal, "Azure email request failed")
	ErrReadResponse     = azureErrors.Register("READ_RESPONSE", errx.TypeExternal, "Failed to read Azure email response")
	ErrParseResponse    = azureErrors.Register("PARSE_RESPONSE", errx.TypeExternal, "Failed to parse Azure email response")
	ErrAPIStatus        = azureErrors.Register("API_STATUS", errx.TypeExternal, "Azure email API returned an error status")
	ErrAPI              = azureErrors.Register("API", errx.TypeExternal, "Azure email API reported an error")
)
