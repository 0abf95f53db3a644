// Package cache implements a process-local, filesystem-backed key-value cache
// with per-entry TTL and JSON-encoded values. Every entry is a pair of files:
//
//	<root>/<instance>/<namespace>/<key>-cache.json            # value
//	<root>/<instance>/<namespace>/<key>-cache-metadata.json   # {ttl_secs, created_unixtime}
//
// Expiration is evaluated lazily on read; expired files stay on disk until
// Delete, Clear or an explicit Sweep. The Service holds no open handles and
// performs no locking, so concurrent writers to the same entry must be
// serialized by the caller.
package cache
