package cache

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Size(entries int)
}

// Options configures the cache. Zero values are safe; defaults are
// applied in New():
//   - nil Metrics => NoopMetrics
type Options struct {
	// Metrics receives Hit/Miss/Size signals.
	Metrics Metrics
}
