// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess          = "success"
	ResultConflict         = "conflict"
	ResultInvalid          = "invalid"
	ResultUnauthorized     = "unauthorized"
	ResultEmailNotVerified = "email_not_verified"
	ResultError            = "error"
)

// Recorder is what the services report to. Collector implements it, Nop
// ignores everything.
type Recorder interface {
	RecordSignUp(result string)
	RecordSignIn(result string)
	RecordVerification(result string)
	RecordEviction()
}

type Collector struct {
	signUps       *prometheus.CounterVec
	signIns       *prometheus.CounterVec
	verifications *prometheus.CounterVec
	evictions     prometheus.Counter
}

// NewCollector registers all counters with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_signups_total",
			Help: "Sign-up attempts by result.",
		}, []string{"result"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_signins_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_email_verifications_total",
			Help: "Email verification attempts by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkeeper_unverified_evictions_total",
			Help: "Unverified users evicted to free their email for a new signup.",
		}),
	}

	reg.MustRegister(c.signUps, c.signIns, c.verifications, c.evictions)
	return c
}

func (c *Collector) RecordSignUp(result string)       { c.signUps.WithLabelValues(result).Inc() }
func (c *Collector) RecordSignIn(result string)       { c.signIns.WithLabelValues(result).Inc() }
func (c *Collector) RecordVerification(result string) { c.verifications.WithLabelValues(result).Inc() }
func (c *Collector) RecordEviction()                  { c.evictions.Inc() }

type Nop struct{}

func (Nop) RecordSignUp(string)       {}
func (Nop) RecordSignIn(string)       {}
func (Nop) RecordVerification(string) {}
func (Nop) RecordEviction()           {}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
