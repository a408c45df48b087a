// Package server holds the HTTP control API configuration.
//
// The control API lets other processes trigger syncs and inspect conflicts on a
// running instance; the CLI commands do the same in-process.
package server
