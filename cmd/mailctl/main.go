package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

func main() {
	logx.SetOutput(os.Stderr)

	if err := newRootCmd(loadContainer, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func loadContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewContainer(cfg)
}

type app struct {
	build   func() (*Container, error)
	out     io.Writer
	timeout time.Duration
	metrics bool

	c *Container
}

func newRootCmd(build func() (*Container, error), out io.Writer) *cobra.Command {
	a := &app{build: build, out: out}

	root := &cobra.Command{
		Use:          "mailctl",
		Short:        "Send and inspect transactional email through the configured provider",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			a.c = c
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.metrics {
				return nil
			}
			return a.printMetrics()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "Deadline for the whole command")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "Print provider metrics after the command")

	root.AddCommand(
		a.sendCmd(),
		a.templateCmd(),
		a.bulkCmd(),
		a.validateCmd(),
		a.templatesCmd(),
	)
	return root
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *app) sendCmd() *cobra.Command {
	var (
		params  mailx.EmailParams
		body    string
		html    bool
		attach  []string
		headers map[string]string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one email",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			simple := len(params.To) == 1 && len(params.CC) == 0 && len(params.BCC) == 0 &&
				params.ReplyTo == "" && len(attach) == 0 && len(headers) == 0
			if simple {
				if err := a.c.Mailer.SendEmail(ctx, params.To[0], params.Subject, body, html); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "sent to %s\n", params.To[0])
				return nil
			}

			for _, path := range attach {
				att, err := readAttachment(path)
				if err != nil {
					return err
				}
				params.Attachments = append(params.Attachments, att)
			}
			params.From = a.c.Config.Email.Sender()
			params.Headers = headers
			if html {
				params.HTMLBody = body
			} else {
				params.TextBody = body
			}

			if err := a.c.Mailer.Send(ctx, params); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "sent to %s\n", strings.Join(params.Recipients(), ", "))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&params.To, "to", nil, "Recipient address (repeatable)")
	f.StringSliceVar(&params.CC, "cc", nil, "Carbon-copy address (repeatable)")
	f.StringSliceVar(&params.BCC, "bcc", nil, "Blind-copy address (repeatable)")
	f.StringVar(&params.ReplyTo, "reply-to", "", "Reply-To address")
	f.StringVar(&params.Subject, "subject", "", "Subject line")
	f.StringVar(&body, "body", "", "Message body")
	f.BoolVar(&html, "html", false, "Treat --body as HTML")
	f.StringSliceVar(&attach, "attach", nil, "File to attach (repeatable)")
	f.StringToStringVar(&headers, "header", nil, "Extra header as Name=value (repeatable)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func readAttachment(path string) (mailx.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mailx.Attachment{}, fmt.Errorf("read attachment %s: %w", path, err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return mailx.Attachment{Filename: filepath.Base(path), ContentType: ct, Data: data}, nil
}

func (a *app) templateCmd() *cobra.Command {
	var (
		name string
		to   string
		data map[string]string
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Render a named template and send it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			vars := make(map[string]any, len(data))
			for k, v := range data {
				vars[k] = v
			}
			if err := a.c.Mailer.SendTemplatedEmail(ctx, name, to, vars); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "sent %s to %s\n", name, to)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Template name")
	f.StringVar(&to, "to", "", "Recipient address")
	f.StringToStringVar(&data, "data", nil, "Template variable as Key=value (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) bulkCmd() *cobra.Command {
	var (
		to      []string
		subject string
		body    string
		html    bool
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Send the same email to many recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			err := a.c.Mailer.SendBulkEmail(ctx, to, subject, body, html)
			if results := mailx.BulkResults(err); results != nil {
				for _, r := range results {
					if r.Success {
						fmt.Fprintf(a.out, "ok     %s\n", r.To)
					} else {
						fmt.Fprintf(a.out, "failed %s: %s\n", r.To, r.Error)
					}
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "sent %d emails\n", len(to))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&to, "to", nil, "Comma-separated recipients")
	f.StringVar(&subject, "subject", "", "Subject line")
	f.StringVar(&body, "body", "", "Message body")
	f.BoolVar(&html, "html", false, "Treat --body as HTML")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the provider is reachable and configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			if err := a.c.Mailer.ValidateConnection(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: ok\n", a.c.Mailer.Name())
			return nil
		},
	}
}

func (a *app) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the known template names",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := mailx.KnownTemplates
			if r := a.c.Renderer(); r != nil {
				names = r.Names()
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func (a *app) printMetrics() error {
	families, err := a.c.Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.out, mf); err != nil {
			return err
		}
	}
	return nil
}
