// Package harness runs conformance scenarios against the compiler.
//
// A scenario compiles a source buffer, runs the optimizer passes, stores the
// result in a fresh in-memory database and checks assertions against the
// calls that survive. Scenarios pin down the one property every pass must
// keep: communication intrinsics are never dropped, merged or reordered.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	source: |
//	  kernel halo(A, B) {
//	    n = shape(A)
//	    comm_put(A, B, CoreId(1), n)
//	  }
//	target:
//	  name: mesh2x4
//	  mesh: {x: 2, y: 4}
//	passes: [dce, cse, sink]
//	intrinsics:
//	  - name: shape
//	    arity: 1
//	    effect: pure
//	assertions:
//	  - type: trace_order
//	    ops: [comm_fence, comm_put]
//	  - type: stored_calls
//	    op: comm_put
//	    count: 1
//	  - type: compile_error
//	    code: E201
//	    contains: comm_putt
//
// source_file may replace source; it is resolved relative to the scenario.
//
// # Golden Files
//
// RunWithGolden compares a text snapshot of the optimized module against
// testdata/golden/<name>.golden using goldie. Pass -update to regenerate.
package harness
