// Package storage implements persistence for alarms and their event history.
//
// Records are partitioned by owner key. FileRepository keeps one JSON file of
// alarms and one zstd-compressed JSON event log per owner; PostgresRepository
// stores both in SQL tables; MemoryRepository backs tests and the in-process
// backend.
package storage
