// Package source provides module sources: implementations of the
// api.ModuleSource interface the manager loads modules through.
//
// Static serves an explicit in-memory factory table and is what tests and
// embedding programs use. Filesystem combines compiled-in factories with
// YAML manifests on disk, one file per module; its Watch method turns
// manifest edits into debounced hot-reload notifications via fsnotify.
package source
