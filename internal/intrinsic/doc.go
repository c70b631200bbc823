// Package intrinsic owns the communication intrinsics of the tile compiler:
// a process-wide table mapping each primitive's name to its descriptor
// (arity, effect classification, display name).
//
// # Lifecycle
//
// A Registry has two phases. While Initializing, Register adds descriptors
// and lookups fail with ErrNotFrozen. Freeze publishes an immutable table;
// from then on Lookup and ValidateCall are lock-free and safe from any number
// of goroutines, and Register fails with ErrFrozen.
//
// Default returns the registry holding the builtin communication primitives.
// It is built and frozen exactly once, on first use.
//
// # Effect contract
//
// Every builtin is ir.Opaque. The front-end copies the descriptor's effect
// onto each call node it builds; optimizer passes read the tag from the node
// and must never remove, merge, or reorder opaque calls relative to one
// another.
package intrinsic
