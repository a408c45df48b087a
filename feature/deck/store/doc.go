// Package store is the local replica of the remote boards, kept in a relational
// database through gorm.
//
// Every synchronizable table has a Repo exposing the same operations: lookups by
// local id, remote id, parent and status, plus Insert, Update and Purge used by the
// sync engine. User edits go through Edit, Remove and the Create*/Move/Assign
// helpers, which maintain the row status. Purges cascade to child rows, card links
// and conflict records; removed attachment blobs are reported through
// OnBlobsReleased.
package store
