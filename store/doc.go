// Package store provides a schemaless entity store addressed by two-part
// composite keys.
//
// Every record lives in a named collection and is identified by a
// (partition key, row key) pair. The store offers point reads, creates that
// refuse to overwrite, merge updates, deletes and a scan of one partition.
// It offers nothing else: no secondary indexes, no joins and no transactions
// spanning more than one record. Callers that need one logical entity to be
// reachable by several keys write several records (see the repo package) and
// live with the fact that those writes are not atomic.
//
// # Backends
//
//   - [Memory] - process-local maps, for tests and single-node development
//   - [Dynamo] - one DynamoDB table per collection, keyed by PartitionKey/RowKey
//   - sqlstore.Store - one SQL table for all collections, via gorm
//
// # Attribute values
//
// Attribute values are limited to string, bool, float64 and nil so that every
// backend round-trips them identically. [Normalize] converts integers and
// times into that set and rejects anything else.
//
// # Errors
//
//   - [ErrNotFound] - no record under the key (Get, Delete)
//   - [ErrAlreadyExists] - Create hit an existing key
//   - [ErrReservedAttribute] - an attribute collides with a key attribute name
package store
