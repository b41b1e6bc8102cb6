// Package plugins provides the plugin module loaders consumed by the
// datasource service. A Registry maps module references to loadable plugin
// modules: built-in modules registered at composition time, and WASM-backed
// modules discovered from manifest files on disk. The Registry implements
// datasource.Loader; compilation of a WASM module is deferred until the
// first datasource that references it is loaded.
package plugins
