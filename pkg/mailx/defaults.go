package mailx

import "fmt"

// KnownTemplates is the fixed set of template names a Renderer serves.
var KnownTemplates = []string{
	"welcome",
	"email_verification",
	"password_reset",
	"user_approved",
	"user_rejected",
	"agent_registered",
	"agent_approved",
	"mcp_server_expiring",
	"mcp_server_expired",
	"api_key_created",
	"api_key_revoked",
	"security_alert",
}

var defaultSubjects = map[string]string{
	"welcome":             "Welcome to the platform",
	"email_verification":  "Verify your email address",
	"password_reset":      "Reset your password",
	"user_approved":       "Your account has been approved",
	"user_rejected":       "Your account request was not approved",
	"agent_approved":      "Your agent has been approved",
	"mcp_server_expiring": "Your MCP server is expiring soon",
	"mcp_server_expired":  "Your MCP server has expired",
	"api_key_created":     "A new API key was created",
	"api_key_revoked":     "An API key was revoked",
	"security_alert":      "Security alert for your account",
}

// DefaultSubject returns the built-in subject for name, or
// "Notification: <name>" when there is none.
func DefaultSubject(name string) string {
	if s, ok := defaultSubjects[name]; ok {
		return s
	}
	return fmt.Sprintf("Notification: %s", name)
}

// fallbackBody is used for known templates that ship no body file.
const fallbackBody = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Helvetica,Arial,sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:32px 16px;">
      <table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;">
        <tr><td style="padding:24px 32px;background:#1f2937;color:#ffffff;font-size:18px;border-radius:8px 8px 0 0;">Identity Platform</td></tr>
        <tr><td style="padding:32px;color:#111827;font-size:15px;line-height:1.6;">
          <p>Hello {{field . "UserName"}},</p>
          <p>There is an update on your account. Sign in to the dashboard for details.</p>
          {{with optional . "DashboardURL"}}<p style="text-align:center;margin:32px 0;"><a href="{{.}}" style="background:#2563eb;color:#ffffff;padding:12px 24px;border-radius:6px;text-decoration:none;">Open dashboard</a></p>{{end}}
        </td></tr>
        <tr><td style="padding:16px 32px;color:#6b7280;font-size:12px;">This is an automated message, please do not reply.</td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>
`
