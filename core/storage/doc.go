// Package storage wraps the MinIO client used to keep attachment contents next
// to the local replica. Attachment rows in the store only carry the object key.
package storage
