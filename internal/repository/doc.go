// Package repository defines the key-value persistence collaborator used to
// store node positions between runs.
//
// # KVStore Interface
//
// KVStore is a plain string get/set store. Values are opaque to the store;
// the positions bridge writes one JSON document per data source under a
// namespaced key.
//
// # Drivers
//
// - memory: process-local map, the default and the test double
// - sqlite: a single kv table in a pure-Go SQLite database (WAL mode)
// - postgres: the same table over the pgx database/sql driver
// - s3: one object per key in an S3 or MinIO bucket
//
// The open subpackage selects a driver from configuration.
package repository
