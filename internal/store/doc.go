// Package store keeps the session library: one SQLite record per
// recording with its title, summary, duration and file paths. A
// directory scan registers raw recordings that never got metadata.
package store
