// Package config holds the user-facing options of the task tracker.
//
// Options is the mutable, serialisable form read from TOML or YAML files and
// TASKTRACK_* environment variables. Compile validates Options into an
// immutable Config snapshot; the Store publishes snapshots atomically and
// notifies subscribers when a new one is applied. A snapshot is never
// modified after publication, so readers that captured one keep a consistent
// view for as long as they hold it.
package config
