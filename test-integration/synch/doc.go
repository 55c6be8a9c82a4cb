// Package integration exercises synch end to end: a SQLite store, a mirror on
// the local filesystem and the HTTP API, wired the way the serve command does.
package integration
