package intrinsic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/roach88/tlcomm/internal/ir"
)

// Arity is the expected argument count of an intrinsic, or Unchecked.
type Arity int

// Unchecked marks a variadic intrinsic whose argument count is not validated.
const Unchecked Arity = -1

// IsChecked reports whether the arity is enforced at call sites.
func (a Arity) IsChecked() bool { return a >= 0 }

// Accepts reports whether a call with n arguments satisfies the arity.
func (a Arity) Accepts(n int) bool {
	if n < 0 {
		return false
	}
	return a == Unchecked || int(a) == n
}

func (a Arity) String() string {
	if a == Unchecked {
		return "unchecked"
	}
	return strconv.Itoa(int(a))
}

// MarshalJSON encodes a checked arity as a number and Unchecked as "unchecked".
func (a Arity) MarshalJSON() ([]byte, error) {
	if a == Unchecked {
		return []byte(`"unchecked"`), nil
	}
	return []byte(strconv.Itoa(int(a))), nil
}

// UnmarshalJSON accepts a number or "unchecked".
func (a *Arity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unchecked" {
			return fmt.Errorf("invalid arity %q", s)
		}
		*a = Unchecked
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid arity: %w", err)
	}
	*a = Arity(n)
	return nil
}

// Descriptor declares one intrinsic.
//
// Descriptors returned by a frozen Registry are shared; callers must treat
// Params as read-only.
type Descriptor struct {
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace,omitempty"`
	Arity       Arity     `json:"arity"`
	Effect      ir.Effect `json:"effect"`
	DisplayName string    `json:"display_name"`
	Params      []string  `json:"params,omitempty"` // argument names, in call order
	Doc         string    `json:"doc,omitempty"`
}

// QualifiedName returns namespace.name, or name when there is no namespace.
func (d Descriptor) QualifiedName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (d Descriptor) validate() error {
	if !identifier.MatchString(d.Name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidDescriptor, d.Name)
	}
	if d.Namespace != "" && !identifier.MatchString(d.Namespace) {
		return fmt.Errorf("%w: %s: namespace %q is not an identifier", ErrInvalidDescriptor, d.Name, d.Namespace)
	}
	if d.Arity < Unchecked {
		return fmt.Errorf("%w: %s: negative arity %d", ErrInvalidDescriptor, d.Name, int(d.Arity))
	}
	if !d.Effect.Valid() {
		return fmt.Errorf("%w: %s: invalid effect %v", ErrInvalidDescriptor, d.Name, d.Effect)
	}
	if d.Arity.IsChecked() && d.Params != nil && len(d.Params) != int(d.Arity) {
		return fmt.Errorf("%w: %s: %d params for arity %d", ErrInvalidDescriptor, d.Name, len(d.Params), int(d.Arity))
	}
	return nil
}
