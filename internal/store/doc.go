// Package store persists sync runs to SQLite.
//
// The database holds three tables. runs has one row per sync run with its
// status and slice count. slices is the raw slice log, one row per produced
// slice keyed by a UUID ab_id. stream_state keeps the latest checkpointed
// cursor state of each child stream.
//
// Slices within a run are ordered by their logical seq, never by
// emitted_at, with ab_id as a byte-wise tie breaker.
//
// Cursor state is stored as RFC 8785 canonical JSON next to its
// domain-separated SHA-256 hash (doc.Hash with doc.DomainState). Equal
// states therefore always produce identical rows, and LoadState rejects a
// row whose hash no longer matches.
//
// Every connection runs in WAL mode with synchronous=NORMAL, a five second
// busy timeout and foreign keys enforced.
package store
