// Package config loads the application configuration: the set of configured
// datasources, the default datasource name and the declared template
// variables. The resulting Store is the read-only mapping the datasource
// service resolves names against; it is built once at startup and never
// mutated afterwards.
package config
