package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents failures inside the mailer itself
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents invalid configuration or message input
	TypeValidation Type = "VALIDATION"

	// TypeAuthorization represents rejected credentials (SMTP AUTH, signed requests)
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeNotFound represents missing templates or files
	TypeNotFound Type = "NOT_FOUND"

	// TypeExternal represents errors reported by a delivery backend
	TypeExternal Type = "EXTERNAL"

	// TypeUnsupported represents features a backend does not implement
	TypeUnsupported Type = "UNSUPPORTED"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}
