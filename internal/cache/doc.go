// Package cache tracks working copies of source clips by content identity.
//
// Entries are keyed by (file name, byte size), never by absolute path, so a
// clip re-imported from another folder reuses its existing working copy.
// Entries whose copy has disappeared from disk are evicted on lookup.
package cache
