// Package datasource implements the named-datasource service: it resolves a
// logical datasource name (possibly a template-variable reference) to a
// concrete configuration, loads the backing plugin module exactly once, and
// serves all later lookups for that name from an in-memory instance cache.
//
// The service is constructed once by the application's composition root and
// handed to consumers by reference; there is no package-level singleton.
// Collaborators are injected behind small interfaces:
//
//   - Store: the read-only configuration store (name -> Config plus the
//     configured default name).
//   - Loader: asynchronously turns a module reference into the plugin's
//     exported Module. The plugins package provides implementations.
//   - VariableIndex: the template-variable index used for $var substitution.
//
// The cache is append-only for the process lifetime: once an Instance is
// stored for a resolved name it is never replaced or evicted. Failed loads
// are never cached, so the next Get for the same name retries the full load.
// Concurrent Gets for one uncached name are collapsed into a single loader
// invocation.
package datasource
