/*
Package metrics provides Prometheus metrics collection and exposition for hive.

Metrics cover the service lifecycle (counts by state, create/start/
stop/remove durations) and the sandbox pool and lease protocol (pool
size, in-use count, acquire wait time, lease duration, drain error
counts), plus request-dispatch metrics recorded by pkg/httpfront;
pkg/adminapi records the lifecycle durations. Metrics are exposed via an HTTP endpoint for scraping by
Prometheus, using github.com/prometheus/client_golang.
*/
package metrics
