// Package metrics records run metrics in a private Prometheus registry.
//
// A run is a short-lived process, so nothing is served over HTTP. The
// registry can be written once at exit in the text exposition format for a
// node-exporter textfile collector.
package metrics
