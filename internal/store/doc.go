// Package store provides SQLite-backed storage for compiled kernels.
//
// The store keeps:
//   - Builds: one row per compile session (UUIDv7 id, registry hash, IR version)
//   - Kernels: IR kernels, content-addressed by ir.KernelHash
//   - Build kernels: which kernels a build produced, in module order
//   - Calls: every call node of a kernel with its op, effect and argument count
//
// Writes are idempotent: storing the same kernel twice is a no-op, so
// rebuilding unchanged sources only adds a build row.
//
// # Deterministic Query Results
//
// Every list query has a total ORDER BY, with text keys compared
// COLLATE BINARY, so output is identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
