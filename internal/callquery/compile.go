package callquery

import (
	"fmt"
	"strings"
)

const selectCalls = `SELECT c.kernel_hash, k.name, c.seq, c.call_id, c.op, c.effect, c.argc
FROM calls c JOIN kernels k ON k.hash = c.kernel_hash`

// orderBy is appended to every query.
const orderBy = "ORDER BY c.kernel_hash COLLATE BINARY ASC, c.seq ASC"

// Compile validates q and converts it to parameterized SQL.
func Compile(q Query) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(selectCalls)

	var params []any
	if q.Filter != nil {
		where, p := compilePredicate(q.Filter)
		b.WriteString("\nWHERE ")
		b.WriteString(where)
		params = p
	}

	b.WriteString("\n")
	b.WriteString(orderBy)
	if q.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func compilePredicate(p Predicate) (string, []any) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	}
	// Unreachable after Validate.
	panic(fmt.Sprintf("callquery: unsupported predicate %T", p))
}

func compileEquals(eq Equals) (string, []any) {
	switch eq.Field {
	case FieldBuild:
		return "c.kernel_hash IN (SELECT kernel_hash FROM build_kernels WHERE build_id = ?)", []any{eq.Value}
	case FieldKernel:
		return "k.name = ?", []any{eq.Value}
	default:
		return "c." + string(eq.Field) + " = ?", []any{eq.Value}
	}
}

func compileAnd(and And) (string, []any) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, p := compilePredicate(sub)
		if _, nested := sub.(And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params
}
