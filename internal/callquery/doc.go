// Package callquery is a small query IR over stored call rows.
//
// A Query is a conjunction of field predicates. Compile turns it into
// parameterized SQLite against the store schema:
//
//	Query{Filter: And{Predicates: []Predicate{
//	    Equals{Field: FieldOp, Value: "comm_put"},
//	    Equals{Field: FieldKernel, Value: "ring"},
//	}}}
//
// becomes
//
//	SELECT c.kernel_hash, k.name, c.seq, c.call_id, c.op, c.effect, c.argc
//	FROM calls c JOIN kernels k ON k.hash = c.kernel_hash
//	WHERE c.op = ? AND k.name = ?
//	ORDER BY c.kernel_hash COLLATE BINARY ASC, c.seq ASC
//
// Values are always bound as parameters, never interpolated, and every
// compiled query carries a total ORDER BY.
//
// Predicate is sealed: only Equals and And implement it, so backends can
// switch on it exhaustively.
package callquery
