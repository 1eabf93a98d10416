package mailxstub_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxstub"
)

func quietLogger() *logx.Logger {
	cfg := logx.DefaultConfig()
	cfg.Output = io.Discard
	return logx.NewLogger(cfg)
}

func TestConstructorsRequireAPIKey(t *testing.T) {
	cfg := config.EmailConfig{FromAddress: "noreply@idp.example"}

	_, err := mailxstub.NewSendGrid(cfg)
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "SENDGRID_API_KEY")

	_, err = mailxstub.NewResend(cfg)
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "RESEND_API_KEY")
}

func TestStubSendsFailNotImplemented(t *testing.T) {
	cfg := config.EmailConfig{
		FromAddress: "noreply@idp.example",
		SendGrid:    config.SendGridConfig{APIKey: "sg"},
		Resend:      config.ResendConfig{APIKey: "re"},
	}
	sg, err := mailxstub.NewSendGrid(cfg, mailxstub.WithLogger(quietLogger()))
	require.NoError(t, err)
	rs, err := mailxstub.NewResend(cfg, mailxstub.WithLogger(quietLogger()))
	require.NoError(t, err)

	for _, p := range []mailx.Provider{sg, rs} {
		ctx := context.Background()

		err := p.SendEmail(ctx, "ana@example.com", "Hi", "x", false)
		assert.True(t, errx.HasCode(err, mailx.ErrNotImplemented), p.Name())

		err = p.SendBulkEmail(ctx, []string{"a@example.com", "b@example.com"}, "Hi", "x", false)
		assert.True(t, errx.HasCode(err, mailx.ErrBulkSendFailed))
		assert.True(t, errx.HasCode(err, mailx.ErrNotImplemented))

		require.NoError(t, p.ValidateConnection(ctx))

		m := p.GetMetrics()
		assert.Equal(t, int64(3), m.TotalFailed)
		assert.Equal(t, int64(3), m.FailuresByType[mailx.ReasonNotImplemented])
	}
	assert.Equal(t, "sendgrid", sg.Name())
	assert.Equal(t, "resend", rs.Name())
}
