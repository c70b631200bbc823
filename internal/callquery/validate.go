package callquery

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/tlcomm/internal/ir"
)

// ErrInvalidQuery wraps every validation failure.
var ErrInvalidQuery = errors.New("invalid call query")

// Validate checks field names and values. It reports every problem found,
// joined into one error.
func Validate(q Query) error {
	v := &validator{}
	if q.Limit < 0 {
		v.add("limit must not be negative, got %d", q.Limit)
	}
	v.predicate(q.Filter)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...)))
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.equals(pred)
	case *Equals:
		v.equals(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	default:
		v.add("unsupported predicate %T", p)
	}
}

func (v *validator) equals(eq Equals) {
	if !slices.Contains(Fields(), eq.Field) {
		v.add("unknown field %q", eq.Field)
		return
	}
	if eq.Value == "" {
		v.add("field %q compared to an empty value", eq.Field)
		return
	}
	if eq.Field == FieldEffect {
		if _, err := ir.ParseEffect(eq.Value); err != nil {
			v.add("%v", err)
		}
	}
}
