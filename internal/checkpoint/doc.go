// Package checkpoint persists screener run progress so an interrupted run can
// resume without redoing completed work.
//
// A checkpoint is stored as a versioned JSON envelope:
//
//	{"schema_version":1,"checksum":"<sha256 hex of body>","body":{...}}
//
// Loads are soft: a missing, unreadable, corrupted or newer-versioned blob is
// logged and reported as "no checkpoint", and the run starts fresh. Saves
// replace the blob atomically through a storage.Backend and are serialized.
package checkpoint
