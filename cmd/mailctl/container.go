// Composition root. Builds the configured provider and the metrics
// registry that observes it.
package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Abraxas-365/idp-mailer/pkg/config"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxprom"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx/mailxservice"
)

// Container holds the configured mailer and its metrics registry.
type Container struct {
	Config   *config.Config
	Mailer   mailx.Provider
	Registry *prometheus.Registry
}

func NewContainer(cfg *config.Config) (*Container, error) {
	logx.WithField("provider", cfg.Email.Provider).Debug("initializing mail container")

	mailer, err := mailxservice.NewEmailService(cfg.Email, mailxservice.WithLogger(logx.GetDefaultLogger()))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	if _, err := mailxprom.Register(reg, mailer); err != nil {
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Mailer:   mailer,
		Registry: reg,
	}, nil
}

// Renderer returns the mailer's template renderer when it exposes one.
func (c *Container) Renderer() *mailx.Renderer {
	if r, ok := c.Mailer.(interface{ Renderer() *mailx.Renderer }); ok {
		return r.Renderer()
	}
	return nil
}
