// Package models defines the GORM models of the local replica.
//
// Every synchronizable table embeds Entity (local id, remote id, account, status,
// modification times and the merge base) and implements Syncable so the
// reconciliation code can compare and merge records field by field.
package models
