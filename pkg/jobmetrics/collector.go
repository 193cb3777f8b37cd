// Package jobmetrics exports job registry statistics as Prometheus metrics.
package jobmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/3leaps/jobmon/pkg/jobmon"
)

// StatsProvider yields a point-in-time census of tracked jobs. A
// jobmon.Registry of any key type satisfies it.
type StatsProvider interface {
	Stats() jobmon.Stats
}

// Collector is a prometheus.Collector over a StatsProvider. Every scrape
// takes a fresh snapshot, so no background polling is needed.
type Collector struct {
	provider StatsProvider

	running   *prometheus.Desc
	succeeded *prometheus.Desc
	failed    *prometheus.Desc
	tracked   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for the given provider. An empty
// namespace defaults to "jobmon". Register the result with a
// prometheus.Registerer.
func NewCollector(namespace string, provider StatsProvider) *Collector {
	if namespace == "" {
		namespace = "jobmon"
	}
	return &Collector{
		provider: provider,
		running: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_running"),
			"Number of tracked jobs still running.",
			nil, nil),
		succeeded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_succeeded"),
			"Number of tracked jobs that finished successfully.",
			nil, nil),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_failed"),
			"Number of tracked jobs that finished in failure.",
			nil, nil),
		tracked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_tracked"),
			"Total number of tracked jobs, running and finished.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.succeeded
	ch <- c.failed
	ch <- c.tracked
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.provider.Stats()
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(s.Running))
	ch <- prometheus.MustNewConstMetric(c.succeeded, prometheus.GaugeValue, float64(s.Succeeded))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(c.tracked, prometheus.GaugeValue, float64(s.Running+s.Succeeded+s.Failed))
}
