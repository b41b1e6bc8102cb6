// Package telemetry provides observability for the datasource service:
// structured logging (zerolog), Prometheus metrics for the instance cache
// and plugin loads, OpenTelemetry tracing of resolve/load operations, and
// the alert event channel that surfaces plugin load failures to the user
// interface.
//
// Components are created from a single Config via NewTelemetry. Each
// component degrades to a no-op when its section is disabled, so callers
// never need nil checks.
//
// The event channel is deliberately fire-and-forget. A load failure is
// published as an Event with a user-facing Title and Body; subscribers (the
// UI notification pipe, a log sink) receive it asynchronously and no
// delivery status flows back into the resolution path.
package telemetry
