// Package opt holds the optimizer passes and the checks that keep them
// honest about communication.
//
// Every pass may remove, merge or move Pure computations freely. Opaque
// calls are different: a pass must never drop one, merge two of them, or
// change the order in which they execute. Calls carry their identity in
// ir.Call.ID, so "same operation" always means "same ID", never "same
// arguments". The Pipeline checks this after every pass with
// VerifyEffectOrder and fails with *OrderingViolationError if a pass broke it.
package opt
