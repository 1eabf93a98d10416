package mailxazure_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxazure"
)

const accessKey = "c2VjcmV0LWtleQ=="

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type captured struct {
	method string
	uri    string
	header http.Header
	body   []byte
}

// fakeACS records signed requests and answers with respond.
type fakeACS struct {
	t       *testing.T
	srv     *httptest.Server
	respond func(w http.ResponseWriter, r *http.Request, body []byte)

	mu       sync.Mutex
	requests []captured
}

func newFakeACS(t *testing.T) *fakeACS {
	t.Helper()
	f := &fakeACS{t: t}
	f.respond = func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"op-1","status":"Running","error":null}`))
	}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		wantHash, wantAuth := mailxazure.AuthHeader(r.Method, r.URL.RequestURI(), r.Header.Get("Date"), body, accessKey)
		if r.Header.Get("x-ms-content-sha256") != wantHash || r.Header.Get("Authorization") != wantAuth {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"Denied","message":"signature mismatch"}}`))
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, captured{r.Method, r.URL.RequestURI(), r.Header.Clone(), body})
		f.mu.Unlock()
		f.respond(w, r, body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeACS) captured() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]captured(nil), f.requests...)
}

func quietLogger() *logx.Logger {
	cfg := logx.DefaultConfig()
	cfg.Output = io.Discard
	cfg.Level = logx.LevelError
	return logx.NewLogger(cfg)
}

func emailConfig(endpoint, key string) config.EmailConfig {
	return config.EmailConfig{
		Provider:        "azure",
		FromAddress:     "noreply@idp.example",
		FromName:        "IDP",
		BulkConcurrency: 4,
		Azure: config.AzureConfig{
			ConnectionString: "endpoint=" + endpoint + "/;accesskey=" + key,
			PollAttempts:     3,
		},
	}
}

func newProvider(t *testing.T, f *fakeACS, mutate func(*config.EmailConfig)) *mailxazure.Provider {
	t.Helper()
	cfg := emailConfig(f.srv.URL, accessKey)
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := mailxazure.New(cfg,
		mailxazure.WithHTTPClient(f.srv.Client()),
		mailxazure.WithClock(func() time.Time { return fixedNow }),
		mailxazure.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	_, err := mailxazure.New(config.EmailConfig{FromAddress: "noreply@idp.example"})
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))

	_, err = mailxazure.New(emailConfig("http://insecure", accessKey))
	assert.True(t, errx.HasCode(err, mailxazure.ErrConnectionString))

	cfg := emailConfig("https://acs.example", accessKey)
	cfg.FromAddress = ""
	_, err = mailxazure.New(cfg)
	assert.True(t, errx.HasCode(err, mailx.ErrInvalidConfig))

	p, err := mailxazure.New(emailConfig("https://acs.example", accessKey))
	require.NoError(t, err)
	assert.Equal(t, "https://acs.example", p.Endpoint())
	assert.Equal(t, "azure", p.Name())
}

func TestSendEmail_SignedRequest(t *testing.T) {
	f := newFakeACS(t)
	p := newProvider(t, f, nil)

	err := p.SendEmail(context.Background(), "ana@example.com", "Hello", "<p>hi</p>", true)
	require.NoError(t, err)

	reqs := f.captured()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/emails:send?api-version=2023-03-31", req.uri)
	assert.Equal(t, "Sat, 14 Mar 2026 09:26:53 GMT", req.header.Get("Date"))
	assert.Equal(t, req.header.Get("Date"), req.header.Get("x-ms-date"))
	assert.NotEmpty(t, req.header.Get("x-ms-client-request-id"))
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(req.header.Get("Authorization"), "HMAC-SHA256 SignedHeaders=date;host;x-ms-content-sha256&Signature="))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, "noreply@idp.example", payload["senderAddress"])
	content := payload["content"].(map[string]any)
	assert.Equal(t, "Hello", content["subject"])
	assert.Equal(t, "<p>hi</p>", content["html"])
	assert.NotContains(t, content, "plainText")
	to := payload["recipients"].(map[string]any)["to"].([]any)
	assert.Equal(t, "ana@example.com", to[0].(map[string]any)["address"])

	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.TotalSent)
	assert.Zero(t, m.TotalFailed)
}

func TestSend_FullEnvelope(t *testing.T) {
	f := newFakeACS(t)
	p := newProvider(t, f, nil)

	err := p.Send(context.Background(), mailx.EmailParams{
		To:       []string{"Ana <ana@example.com>"},
		CC:       []string{"ops@example.com"},
		BCC:      []string{"audit@example.com"},
		ReplyTo:  "support@idp.example",
		Subject:  "Report",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
		Headers:  map[string]string{"X-Tenant": "acme"},
		Attachments: []mailx.Attachment{
			{Filename: "r.txt", ContentType: "text/plain", Data: []byte("hi")},
		},
	})
	require.NoError(t, err)

	var payload struct {
		Recipients struct {
			To  []map[string]string `json:"to"`
			CC  []map[string]string `json:"cc"`
			BCC []map[string]string `json:"bcc"`
		} `json:"recipients"`
		ReplyTo     []map[string]string `json:"replyTo"`
		Headers     map[string]string   `json:"headers"`
		Attachments []map[string]string `json:"attachments"`
		Content     map[string]string   `json:"content"`
	}
	require.NoError(t, json.Unmarshal(f.captured()[0].body, &payload))

	assert.Equal(t, "ana@example.com", payload.Recipients.To[0]["address"])
	assert.Equal(t, "Ana", payload.Recipients.To[0]["displayName"])
	assert.Equal(t, "ops@example.com", payload.Recipients.CC[0]["address"])
	assert.Equal(t, "audit@example.com", payload.Recipients.BCC[0]["address"])
	assert.Equal(t, "support@idp.example", payload.ReplyTo[0]["address"])
	assert.Equal(t, "acme", payload.Headers["X-Tenant"])
	assert.Equal(t, "aGk=", payload.Attachments[0]["contentInBase64"])
	assert.Equal(t, "plain", payload.Content["plainText"])
	assert.Equal(t, "<p>html</p>", payload.Content["html"])
}

func TestSendEmail_Failures(t *testing.T) {
	tests := []struct {
		name    string
		respond func(w http.ResponseWriter, r *http.Request, body []byte)
		code    *errx.ErrorCode
		reason  string
		message string
		details map[string]any
	}{
		{
			name: "status",
			respond: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":"InvalidSender","message":"sender not verified"}}`))
			},
			code:    mailxazure.ErrAPIStatus,
			reason:  mailx.ReasonAPIStatus,
			message: "azure API returned status 400: InvalidSender: sender not verified",
			details: map[string]any{"status": http.StatusBadRequest, "code": "InvalidSender", "message": "sender not verified"},
		},
		{
			name: "status without error body",
			respond: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`upstream unavailable`))
			},
			code:    mailxazure.ErrAPIStatus,
			reason:  mailx.ReasonAPIStatus,
			message: "azure API returned status 503",
			details: map[string]any{"status": http.StatusServiceUnavailable, "body": "upstream unavailable"},
		},
		{
			name: "error field",
			respond: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"id":"op-1","status":"Failed","error":{"code":"Quota","message":"quota exceeded"}}`))
			},
			code:    mailxazure.ErrAPI,
			reason:  mailx.ReasonAPI,
			message: "Quota: quota exceeded",
		},
		{
			name: "malformed json",
			respond: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"id":`))
			},
			code:   mailxazure.ErrParseResponse,
			reason: mailx.ReasonParseResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeACS(t)
			f.respond = tt.respond
			p := newProvider(t, f, nil)

			err := p.SendEmail(context.Background(), "ana@example.com", "Hi", "body", false)
			require.Error(t, err)
			assert.True(t, errx.HasCode(err, tt.code), err.Error())
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
			if tt.details != nil {
				var e *errx.Error
				require.True(t, errors.As(err, &e))
				for k, v := range tt.details {
					assert.Equal(t, v, e.Details[k], k)
				}
			}

			m := p.GetMetrics()
			assert.Equal(t, int64(1), m.TotalFailed)
			assert.Equal(t, int64(1), m.FailuresByType[tt.reason])
		})
	}
}

func TestSendEmail_NetworkError(t *testing.T) {
	f := newFakeACS(t)
	p := newProvider(t, f, nil)
	f.srv.Close()

	err := p.SendEmail(context.Background(), "ana@example.com", "Hi", "body", false)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, mailxazure.ErrNetwork))
	assert.Equal(t, int64(1), p.GetMetrics().FailuresByType[mailx.ReasonNetwork])
}

func TestSendEmail_Polling(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		wantErr  bool
	}{
		{"succeeds", []string{"Running", "Succeeded"}, false},
		{"fails", []string{"Failed"}, true},
		{"canceled", []string{"Running", "Canceled"}, true},
		{"still running", []string{"Running", "Running", "Running", "Running"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeACS(t)
			var mu sync.Mutex
			polls := 0
			f.respond = func(w http.ResponseWriter, r *http.Request, _ []byte) {
				if r.Method == http.MethodPost {
					w.WriteHeader(http.StatusAccepted)
					_, _ = w.Write([]byte(`{"id":"op-42","status":"Running"}`))
					return
				}
				mu.Lock()
				status := tt.statuses[min(polls, len(tt.statuses)-1)]
				polls++
				mu.Unlock()
				_ = json.NewEncoder(w).Encode(map[string]any{"id": "op-42", "status": status})
			}
			p := newProvider(t, f, func(c *config.EmailConfig) {
				c.Azure.PollingEnabled = true
			})

			err := p.SendEmail(context.Background(), "ana@example.com", "Hi", "body", false)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errx.HasCode(err, mailxazure.ErrAPI))
				assert.Equal(t, int64(1), p.GetMetrics().FailuresByType[mailx.ReasonAPI])
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(1), p.GetMetrics().TotalSent)
			}

			reqs := f.captured()
			require.GreaterOrEqual(t, len(reqs), 2)
			assert.Equal(t, "/emails/operations/op-42?api-version=2023-03-31", reqs[1].uri)
			assert.LessOrEqual(t, len(reqs)-1, 3)
		})
	}
}

func TestSendBulkEmail_PartialFailure(t *testing.T) {
	f := newFakeACS(t)
	f.respond = func(w http.ResponseWriter, _ *http.Request, body []byte) {
		if strings.Contains(string(body), "b@example.com") || strings.Contains(string(body), "d@example.com") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BadRecipient","message":"rejected"}}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"op","status":"Running"}`))
	}
	p := newProvider(t, f, nil)

	recipients := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}
	err := p.SendBulkEmail(context.Background(), recipients, "News", "hello", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send 2/5 emails")

	m := p.GetMetrics()
	assert.Equal(t, int64(3), m.TotalSent)
	assert.Equal(t, int64(2), m.TotalFailed)
	assert.Len(t, mailx.BulkResults(err), 5)
}

func TestSendTemplatedEmail(t *testing.T) {
	f := newFakeACS(t)
	p := newProvider(t, f, nil)

	err := p.SendTemplatedEmail(context.Background(), "password_reset", "ana@example.com",
		map[string]any{"UserName": "Ana", "ResetURL": "https://idp.example/reset?t=1"})
	require.NoError(t, err)

	var payload struct {
		Content map[string]string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(f.captured()[0].body, &payload))
	assert.Equal(t, "Reset your password", payload.Content["subject"])
	assert.Contains(t, payload.Content["html"], "Hello Ana")
	assert.Equal(t, int64(1), p.GetMetrics().TemplatesSent["password_reset"])
}

func TestValidateConnection_SendsNothing(t *testing.T) {
	f := newFakeACS(t)
	p := newProvider(t, f, nil)

	require.NoError(t, p.ValidateConnection(context.Background()))
	assert.Empty(t, f.captured())
	assert.Zero(t, p.GetMetrics().TotalSent)
}
