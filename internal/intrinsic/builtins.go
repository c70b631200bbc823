package intrinsic

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tlcomm/internal/ir"
)

// Namespace of the builtin communication intrinsics.
const Namespace = "tl"

// Builtin intrinsic names.
const (
	CommPut         = "comm_put"
	CommBroadcast   = "comm_broadcast"
	CommAllgather   = "comm_allgather"
	CommReduce      = "comm_reduce"
	CommBarrier     = "comm_barrier"
	CommFence       = "comm_fence"
	CoreID          = "CoreId"
	CommCurrentCore = "comm_current_core"
)

// builtins is the data-driven table of communication primitives.
// Argument order is part of each primitive's contract.
var builtins = []Descriptor{
	{
		Name:   CommPut,
		Arity:  4,
		Params: []string{"src_buffer", "dst_buffer", "dst_core", "size"},
		Doc:    "put data from this core into a buffer on another core",
	},
	{
		Name:   CommBroadcast,
		Arity:  3,
		Params: []string{"buffer", "src_core", "group"},
		Doc:    "broadcast a buffer from one core to a group of cores",
	},
	{
		Name:   CommAllgather,
		Arity:  3,
		Params: []string{"send_buffer", "recv_buffer", "group"},
		Doc:    "gather every core's contribution into a receive buffer",
	},
	{
		Name:   CommReduce,
		Arity:  4,
		Params: []string{"reduce_op", "send_buffer", "recv_buffer", "group"},
		Doc:    "reduce data across cores with the given operator",
	},
	{
		// A barrier may synchronize any number of participants.
		Name:   CommBarrier,
		Arity:  Unchecked,
		Params: []string{"group"},
		Doc:    "synchronize a group of cores",
	},
	{
		Name:  CommFence,
		Arity: 0,
		Doc:   "order this core's outstanding communication",
	},
	{
		Name:   CoreID,
		Arity:  1,
		Params: []string{"core_index"},
		Doc:    "handle for the core with the given linear index",
	},
	{
		Name:  CommCurrentCore,
		Arity: 0,
		Doc:   "linear index of the executing core",
	},
}

// Builtins returns a copy of the builtin descriptor table. Every entry is
// Opaque and lives in the tl namespace.
func Builtins() []Descriptor {
	out := make([]Descriptor, len(builtins))
	for i, d := range builtins {
		d.Namespace = Namespace
		d.Effect = ir.Opaque
		d.DisplayName = d.Name
		d.Params = slices.Clone(d.Params)
		out[i] = d
	}
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the frozen process-wide registry of builtins.
//
// It panics if the builtin table is malformed: that is a bug in the compiler
// itself and startup must not continue.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewFrozen(Builtins())
		if err != nil {
			panic(fmt.Sprintf("intrinsic: building default registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
