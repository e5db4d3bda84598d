// Package metrics registers the Prometheus instruments the pipeline and
// HTTP API report through. Instruments are package-level and registered at
// init so every component shares one registry.
package metrics
