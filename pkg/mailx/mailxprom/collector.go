// Package mailxprom exposes provider delivery metrics to Prometheus.
package mailxprom

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/mailx"
)

const namespace = "mailx"

var promErrors = errx.NewRegistry("MAILX_PROM")

var (
	ErrDuplicateSource = promErrors.Register("DUPLICATE_SOURCE", errx.TypeValidation, "A metrics source with this provider name is already collected")
)

// Source is anything that reports delivery metrics under a name.
type Source interface {
	Name() string
	GetMetrics() mailx.Metrics
}

var (
	sentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "emails_sent_total"),
		"Emails accepted by the provider.",
		[]string{"provider"}, nil,
	)
	failedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "emails_failed_total"),
		"Emails that failed to send.",
		[]string{"provider"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "failures_total"),
		"Failures grouped by reason.",
		[]string{"provider", "reason"}, nil,
	)
	templatesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "templates_sent_total"),
		"Templated emails sent, by template.",
		[]string{"provider", "template"}, nil,
	)
	lastSuccessDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "last_success_timestamp_seconds"),
		"Unix time of the last successful send.",
		[]string{"provider"}, nil,
	)
	lastFailureDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "last_failure_timestamp_seconds"),
		"Unix time of the last failed send.",
		[]string{"provider"}, nil,
	)
)

// Collector turns provider snapshots into Prometheus metrics on every scrape.
// Provider names label the series, so each source must have a distinct name.
type Collector struct {
	mu      sync.RWMutex
	sources []Source
}

// NewCollector creates a collector over sources.
func NewCollector(sources ...Source) (*Collector, error) {
	c := &Collector{}
	for _, src := range sources {
		if err := c.Add(src); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add starts reporting src. A second source with the same name is rejected.
func (c *Collector) Add(src Source) error {
	name := src.Name()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.sources {
		if existing.Name() == name {
			return promErrors.New(ErrDuplicateSource).WithDetail("provider", name)
		}
	}
	c.sources = append(c.sources, src)
	return nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sentDesc
	ch <- failedDesc
	ch <- failuresDesc
	ch <- templatesDesc
	ch <- lastSuccessDesc
	ch <- lastFailureDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := append([]Source(nil), c.sources...)
	c.mu.RUnlock()

	for _, src := range sources {
		name := src.Name()
		m := src.GetMetrics()

		ch <- prometheus.MustNewConstMetric(sentDesc, prometheus.CounterValue, float64(m.TotalSent), name)
		ch <- prometheus.MustNewConstMetric(failedDesc, prometheus.CounterValue, float64(m.TotalFailed), name)
		for reason, n := range m.FailuresByType {
			ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(n), name, reason)
		}
		for tmpl, n := range m.TemplatesSent {
			ch <- prometheus.MustNewConstMetric(templatesDesc, prometheus.CounterValue, float64(n), name, tmpl)
		}
		if !m.LastSuccess.IsZero() {
			ch <- prometheus.MustNewConstMetric(lastSuccessDesc, prometheus.GaugeValue, float64(m.LastSuccess.Unix()), name)
		}
		if !m.LastFailure.IsZero() {
			ch <- prometheus.MustNewConstMetric(lastFailureDesc, prometheus.GaugeValue, float64(m.LastFailure.Unix()), name)
		}
	}
}

// Register adds a collector for sources to reg, or the default registerer
// when reg is nil. Registering twice merges the sources into the collector
// already registered.
func Register(reg prometheus.Registerer, sources ...Source) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c, err := NewCollector(sources...)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*Collector); ok {
				for _, src := range sources {
					if err := existing.Add(src); err != nil {
						return nil, err
					}
				}
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
