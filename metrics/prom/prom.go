package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/entitycache/cache"
	"github.com/IvanBrykalov/entitycache/lease"
)

// Adapter implements cache.Metrics and lease.Metrics and exports
// Prometheus counters/gauges. Safe for concurrent use; all Prometheus
// metric types are goroutine-safe.
type Adapter struct {
	hits   prometheus.Counter
	misses prometheus.Counter

	claims    prometheus.Counter
	releases  prometheus.Counter
	scheduled prometheus.Counter
	cancelled prometheus.Counter
	evictions prometheus.Counter
	started   prometheus.Counter
	stopped   prometheus.Counter

	entities prometheus.Gauge
	leases   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:      counter("hits_total", "Cache hits"),
		misses:    counter("misses_total", "Cache misses"),
		claims:    counter("claims_total", "Claims registered"),
		releases:  counter("releases_total", "Claims released"),
		scheduled: counter("abandons_scheduled_total", "Abandonment timers scheduled"),
		cancelled: counter("abandons_cancelled_total", "Abandonment timers cancelled by a claim"),
		evictions: counter("evictions_total", "Entities evicted"),
		started:   counter("watches_started_total", "Remote watches started"),
		stopped:   counter("watches_stopped_total", "Remote watches stopped"),
		entities:  gauge("entities", "Number of resident entities"),
		leases:    gauge("leases", "Number of live leases"),
	}
	reg.MustRegister(
		a.hits, a.misses,
		a.claims, a.releases, a.scheduled, a.cancelled, a.evictions,
		a.started, a.stopped,
		a.entities, a.leases,
	)
	return a
}

// ---- cache.Metrics ----

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Size updates the resident-entities gauge.
func (a *Adapter) Size(entries int) { a.entities.Set(float64(entries)) }

// ---- lease.Metrics ----

func (a *Adapter) Claim()            { a.claims.Inc() }
func (a *Adapter) Release()          { a.releases.Inc() }
func (a *Adapter) AbandonScheduled() { a.scheduled.Inc() }
func (a *Adapter) AbandonCancelled() { a.cancelled.Inc() }
func (a *Adapter) Evicted()          { a.evictions.Inc() }
func (a *Adapter) WatchStarted()     { a.started.Inc() }
func (a *Adapter) WatchStopped()     { a.stopped.Inc() }
func (a *Adapter) Leases(n int)      { a.leases.Set(float64(n)) }

// Compile-time checks: ensure Adapter implements both metric contracts.
var (
	_ cache.Metrics = (*Adapter)(nil)
	_ lease.Metrics = (*Adapter)(nil)
)
