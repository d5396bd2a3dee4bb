package lease

// Metrics exposes lease-lifecycle observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Claim()
	Release()
	AbandonScheduled()
	AbandonCancelled()
	Evicted()
	WatchStarted()
	WatchStopped()
	Leases(n int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Claim()            {}
func (NoopMetrics) Release()          {}
func (NoopMetrics) AbandonScheduled() {}
func (NoopMetrics) AbandonCancelled() {}
func (NoopMetrics) Evicted()          {}
func (NoopMetrics) WatchStarted()     {}
func (NoopMetrics) WatchStopped()     {}
func (NoopMetrics) Leases(n int)      {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
