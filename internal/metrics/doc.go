// Package metrics defines the Prometheus collectors exported by ade-launchd.
//
// All collectors are registered on the default registry through promauto and
// are served by the daemon's metrics listener when ADE_LAUNCHD_METRICS_ADDR
// is set.
package metrics
