package mailxservice_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxservice"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*logx.Logger, *syncBuffer) {
	out := &syncBuffer{}
	cfg := logx.DefaultConfig()
	cfg.EnableColors = false
	cfg.Level = logx.LevelDebug
	cfg.Output = out
	return logx.NewLogger(cfg), out
}

// fakeS3 serves objects from memory. The renderer reads templates
// concurrently, hence the mutex.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	gets    []string
	lists   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, aws.ToString(in.Bucket)+"/"+key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	prefix := aws.ToString(in.Prefix)
	for key, body := range f.objects {
		if strings.HasPrefix(key, prefix) && !strings.Contains(strings.TrimPrefix(key, prefix), "/") {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(body)))})
		}
	}
	return out, nil
}

func (f *fakeS3) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeS3) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

func baseConfig(provider string) config.EmailConfig {
	return config.EmailConfig{
		Provider:        provider,
		FromAddress:     "noreply@example.com",
		FromName:        "IDP",
		BulkConcurrency: 4,
		SMTP: config.SMTPConfig{
			Host:           "smtp.example.com",
			Port:           587,
			TLSEnabled:     true,
			MaxConnections: 2,
			HeloName:       "localhost",
		},
		Azure: config.AzureConfig{
			ConnectionString: "endpoint=https://idp.communication.azure.com/;accesskey=c2VjcmV0LWtleQ==",
		},
		SES: config.SESConfig{
			Region:          "eu-west-1",
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
		},
		SendGrid: config.SendGridConfig{APIKey: "sg-key"},
		Resend:   config.ResendConfig{APIKey: "re-key"},
	}
}

func TestSupportedProviders(t *testing.T) {
	assert.Equal(t,
		[]string{"smtp", "azure", "aws_ses", "sendgrid", "resend", "console"},
		mailxservice.SupportedProviders(),
	)
}

func TestNewEmailService_BuildsEachProvider(t *testing.T) {
	logger, _ := newTestLogger()

	for _, name := range mailxservice.SupportedProviders() {
		t.Run(name, func(t *testing.T) {
			p, err := mailxservice.NewEmailService(baseConfig(name), mailxservice.WithLogger(logger))
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())
			assert.Zero(t, p.GetMetrics().TotalSent)
		})
	}
}

func TestNewEmailService_UnsupportedProvider(t *testing.T) {
	logger, _ := newTestLogger()

	p, err := mailxservice.NewEmailService(baseConfig("mailgun"), mailxservice.WithLogger(logger))
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errx.HasCode(err, mailx.ErrUnsupportedProvider))
	assert.Contains(t, err.Error(), `"mailgun"`)
	for _, name := range mailxservice.SupportedProviders() {
		assert.Contains(t, err.Error(), name)
	}
}

func TestNewEmailService_ProviderConfigErrors(t *testing.T) {
	logger, _ := newTestLogger()

	cfg := baseConfig("smtp")
	cfg.SMTP.Host = ""
	_, err := mailxservice.NewEmailService(cfg, mailxservice.WithLogger(logger))
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))

	cfg = baseConfig("sendgrid")
	cfg.SendGrid.APIKey = ""
	_, err = mailxservice.NewEmailService(cfg, mailxservice.WithLogger(logger))
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))
}

func TestNewEmailService_InvalidConfigSkipsTemplateLoading(t *testing.T) {
	logger, out := newTestLogger()
	client := &fakeS3{objects: map[string]string{"mail/welcome.subject.txt": "Hi"}}

	cfg := baseConfig("smtp")
	cfg.SMTP.Host = ""
	cfg.TemplatesDir = "s3://assets/mail"

	_, err := mailxservice.NewEmailService(cfg,
		mailxservice.WithLogger(logger),
		mailxservice.WithS3Client(client),
	)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))
	assert.Zero(t, client.listCalls())
	assert.Empty(t, client.requested())
	assert.NotContains(t, out.String(), "loading email templates")
}

func TestNewEmailService_TemplatesFromS3(t *testing.T) {
	logger, out := newTestLogger()
	client := &fakeS3{objects: map[string]string{
		"mail/welcome.subject.txt": `Hello from the bucket, {{field . "UserName"}}`,
	}}

	cfg := baseConfig("console")
	cfg.TemplatesDir = "s3://assets/mail"

	p, err := mailxservice.NewEmailService(cfg,
		mailxservice.WithLogger(logger),
		mailxservice.WithS3Client(client),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, client.listCalls())
	assert.Equal(t, []string{"assets/mail/welcome.subject.txt"}, client.requested())

	err = p.SendTemplatedEmail(context.Background(), "welcome", "ana@example.com", map[string]any{"UserName": "Ana"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Hello from the bucket, Ana")
	assert.Equal(t, int64(1), p.GetMetrics().TemplatesSent["welcome"])
}

func TestNewEmailService_TemplatesFromDirectory(t *testing.T) {
	logger, out := newTestLogger()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "password_reset.subject.txt"), []byte("Custom reset\n"), 0o644))

	cfg := baseConfig("console")
	cfg.TemplatesDir = dir

	p, err := mailxservice.NewEmailService(cfg, mailxservice.WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "loading email templates from directory")

	err = p.SendTemplatedEmail(context.Background(), "password_reset", "ana@example.com", map[string]any{
		"UserName":  "Ana",
		"ResetURL":  "https://idp.example.com/reset",
		"ExpiresIn": "1 hour",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Custom reset")
}

func TestNewEmailService_UnavailableTemplatesFallBack(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"missing directory", filepath.Join(os.TempDir(), "idp-mailer-does-not-exist"), "template directory unavailable"},
		{"bad s3 location", "s3:///no-bucket", "invalid template location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, out := newTestLogger()
			cfg := baseConfig("console")
			cfg.TemplatesDir = tt.dir

			p, err := mailxservice.NewEmailService(cfg, mailxservice.WithLogger(logger))
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.want)

			err = p.SendTemplatedEmail(context.Background(), "welcome", "ana@example.com", map[string]any{"UserName": "Ana"})
			assert.NoError(t, err)
		})
	}
}
