package intrinsic

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/agext/levenshtein"

	"github.com/roach88/tlcomm/internal/ir"
)

// Phase is the lifecycle phase of a Registry.
type Phase int

const (
	// Initializing accepts registrations; lookups are not yet defined.
	Initializing Phase = iota
	// Frozen serves lookups; registrations are rejected.
	Frozen
)

func (p Phase) String() string {
	if p == Frozen {
		return "frozen"
	}
	return "initializing"
}

// Registry maps intrinsic names to descriptors.
//
// Writes happen only while Initializing, under mu. Freeze publishes an
// immutable table through an atomic pointer, which gives every later reader
// a happens-before edge with all registrations.
type Registry struct {
	mu      sync.Mutex
	pending []Descriptor
	names   map[string]int // name -> index in pending

	table atomic.Pointer[table]
}

// table is the frozen, read-only view of a Registry.
type table struct {
	ordered []Descriptor
	byName  map[string]*Descriptor // bare and qualified names
	hash    string
}

// New returns an empty Registry in the Initializing phase.
func New() *Registry {
	return &Registry{names: make(map[string]int)}
}

// NewFrozen registers every descriptor of defs in order and freezes the
// result. It is the single entry point used to build process-wide tables.
func NewFrozen(defs []Descriptor) (*Registry, error) {
	r := New()
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}

// Register adds a descriptor. An empty DisplayName defaults to Name.
//
// A second registration of the same name fails with *DuplicateIntrinsicError
// and leaves the first descriptor untouched.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.table.Load() != nil {
		return fmt.Errorf("register %q: %w", d.Name, ErrFrozen)
	}
	if err := d.validate(); err != nil {
		return err
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	d.Params = slices.Clone(d.Params)
	// Bare names are unique across namespaces so both lookup forms stay
	// unambiguous.
	if _, ok := r.names[d.Name]; ok {
		return &DuplicateIntrinsicError{Name: d.Name}
	}

	r.names[d.Name] = len(r.pending)
	r.pending = append(r.pending, d)
	return nil
}

// Freeze ends the Initializing phase. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.table.Load() != nil {
		return
	}

	t := &table{
		ordered: r.pending,
		byName:  make(map[string]*Descriptor, 2*len(r.pending)),
	}
	for i := range t.ordered {
		d := &t.ordered[i]
		t.byName[d.Name] = d
		t.byName[d.QualifiedName()] = d
	}
	t.hash = tableHash(t.ordered)

	r.pending = nil
	r.names = nil
	r.table.Store(t)
}

// Phase reports the current lifecycle phase.
func (r *Registry) Phase() Phase {
	if r.table.Load() != nil {
		return Frozen
	}
	return Initializing
}

// Lookup returns the descriptor registered under name. Both the bare name
// ("comm_put") and the qualified name ("tl.comm_put") resolve.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	t := r.table.Load()
	if t == nil {
		return Descriptor{}, fmt.Errorf("lookup %q: %w", name, ErrNotFrozen)
	}
	if d, ok := t.byName[name]; ok {
		return *d, nil
	}
	return Descriptor{}, &UnknownIntrinsicError{Name: name, Suggestion: t.suggest(name)}
}

// ValidateCall checks that a call to name with argc arguments is well formed.
// It returns the descriptor so callers can attach its effect to the call node.
func (r *Registry) ValidateCall(name string, argc int) (Descriptor, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return Descriptor{}, err
	}
	if !d.Arity.Accepts(argc) {
		return Descriptor{}, &ArityMismatchError{Name: d.Name, Expected: int(d.Arity), Actual: argc}
	}
	return d, nil
}

// DisplayName returns the print name of op, or op itself when unknown.
// It lets a Registry serve as an ir.Namer.
func (r *Registry) DisplayName(op string) string {
	if t := r.table.Load(); t != nil {
		if d, ok := t.byName[op]; ok {
			return d.DisplayName
		}
	}
	return op
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	if t := r.table.Load(); t != nil {
		return slices.Clone(t.ordered)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.pending)
}

// Names returns the bare names in registration order.
func (r *Registry) Names() []string {
	ds := r.Descriptors()
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of registered intrinsics.
func (r *Registry) Len() int {
	if t := r.table.Load(); t != nil {
		return len(t.ordered)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Hash returns the content hash of the frozen table, or "" before Freeze.
// Compiled modules record it so stored IR can be traced to the table that
// classified its calls.
func (r *Registry) Hash() string {
	if t := r.table.Load(); t != nil {
		return t.hash
	}
	return ""
}

// maxSuggestDistance bounds how different a suggestion may be.
const maxSuggestDistance = 3

// suggest returns the registered name closest to name, or "".
// Ties go to the earlier registration.
func (t *table) suggest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, d := range t.ordered {
		if dist := levenshtein.Distance(name, d.Name, nil); dist < bestDist {
			best, bestDist = d.Name, dist
		}
	}
	return best
}

// tableHash computes the content hash of an ordered descriptor list.
func tableHash(ds []Descriptor) string {
	entries := make([]any, len(ds))
	for i, d := range ds {
		params := make([]any, len(d.Params))
		for j, p := range d.Params {
			params[j] = p
		}
		entries[i] = map[string]any{
			"name":         d.Name,
			"namespace":    d.Namespace,
			"arity":        int(d.Arity),
			"effect":       d.Effect.String(),
			"display_name": d.DisplayName,
			"params":       params,
		}
	}
	data, err := ir.MarshalCanonical(entries)
	if err != nil {
		// Descriptors hold only strings and ints.
		panic(fmt.Sprintf("intrinsic: hashing table: %v", err))
	}
	return ir.HashWithDomain(ir.DomainRegistry, data)
}
