// Package journal persists a history of reconciliations, processing runs and
// step warnings in SQLite.
//
// The journal is append-only from the daemon's point of view. Readers such as
// the history command open it separately; WAL mode and busy retries let both
// sides share the file.
package journal
