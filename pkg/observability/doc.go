/*
Package observability provides Prometheus metrics and lifecycle hooks for the
conversation engine.

Metrics are registered on a caller-supplied registerer so tests and embedded
uses never collide on the global registry. Hooks returns a domain.LifecycleHooks
that logs every event and records it.
*/
package observability
