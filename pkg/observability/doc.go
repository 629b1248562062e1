/*
Package observability exposes Prometheus metrics for editor sessions.

A *Metrics value is shared by every session of a process. All methods are
safe on a nil receiver, so instrumentation is optional:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	sess := editor.New(editor.WithMetrics(metrics))
	http.Handle("/metrics", promhttp.Handler())
*/
package observability
