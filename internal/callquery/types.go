package callquery

// Field names a filterable column of a stored call.
type Field string

const (
	FieldOp         Field = "op"          // intrinsic name
	FieldEffect     Field = "effect"      // pure | opaque
	FieldKernel     Field = "kernel"      // kernel name
	FieldKernelHash Field = "kernel_hash" // full kernel hash
	FieldBuild      Field = "build"       // build ID; matches kernels linked to the build
)

// Fields lists every filterable field in canonical order.
func Fields() []Field {
	return []Field{FieldOp, FieldEffect, FieldKernel, FieldKernelHash, FieldBuild}
}

// Query selects call rows. A nil Filter selects every call.
type Query struct {
	Filter Predicate
	Limit  int // 0 means no limit
}

// Predicate is a filter condition. Sealed.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose field equals Value.
type Equals struct {
	Field Field
	Value string
}

func (Equals) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds a conjunction from field/value pairs, skipping empty values.
// Fields are emitted in canonical order so the compiled SQL is stable.
func Where(values map[Field]string) Query {
	var preds []Predicate
	for _, f := range Fields() {
		if v := values[f]; v != "" {
			preds = append(preds, Equals{Field: f, Value: v})
		}
	}
	switch len(preds) {
	case 0:
		return Query{}
	case 1:
		return Query{Filter: preds[0]}
	default:
		return Query{Filter: And{Predicates: preds}}
	}
}
