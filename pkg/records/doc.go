/*
Package records serializes access to persisted execution records.

A Manager wraps a ports.RecordStore with per-workflow locking, so concurrent
writers in one process (the run pump persisting progress, the user deleting
a record) never interleave a read-modify-write. With a DistributedLocker the
same guarantee extends across processes sharing the store.
*/
package records
