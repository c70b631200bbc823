package ir

import "fmt"

// Effect classifies what a call may do to state outside its arguments.
type Effect int

const (
	// EffectUnset is the zero value. Descriptors must name an effect
	// explicitly, so it is rejected wherever an effect is required.
	EffectUnset Effect = iota

	// Pure calls depend only on their arguments. They may be removed when
	// unused, merged with identical calls, and moved freely.
	Pure

	// Opaque calls may read and write external state the compiler cannot
	// model (remote memory, synchronization state). They are never removed,
	// never merged, and never reordered past another Opaque call.
	Opaque
)

// String returns the lowercase effect name.
func (e Effect) String() string {
	switch e {
	case Pure:
		return "pure"
	case Opaque:
		return "opaque"
	case EffectUnset:
		return "unset"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// ParseEffect parses "pure" or "opaque".
func ParseEffect(s string) (Effect, error) {
	switch s {
	case "pure":
		return Pure, nil
	case "opaque":
		return Opaque, nil
	default:
		return EffectUnset, fmt.Errorf("unknown effect %q: must be pure or opaque", s)
	}
}

// Valid reports whether e is Pure or Opaque.
func (e Effect) Valid() bool { return e == Pure || e == Opaque }

// MarshalText implements encoding.TextMarshaler.
func (e Effect) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid effect %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Effect) UnmarshalText(text []byte) error {
	v, err := ParseEffect(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Removable reports whether a call with this effect may be deleted when its
// result is unused.
func (e Effect) Removable() bool { return e == Pure }

// Mergeable reports whether two structurally identical calls with this effect
// may be replaced by one.
func (e Effect) Mergeable() bool { return e == Pure }

// Reorderable reports whether a call with this effect may move relative to
// Opaque calls.
func (e Effect) Reorderable() bool { return e == Pure }
