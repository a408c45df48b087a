// Package remote is the client of the Deck REST API (v1.0) and of the OCS
// endpoints used for comments and server capabilities.
//
// Requests authenticate with the account's app password. Failures are mapped to
// the sentinels of core/errs: transport errors, 502 and 504 become ErrOffline,
// 401 ErrUnauthorized, 404 ErrNotFound, 503 ErrMaintenance and every other
// refusal ErrRejected. Records the server keeps in its trash (deletedAt set) are
// treated as absent.
package remote
