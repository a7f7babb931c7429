// Package client is the thin HTTP client the CLI uses against a running
// scheduler daemon.
package client
