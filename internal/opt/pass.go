package opt

import (
	"fmt"
	"sort"

	"github.com/roach88/tlcomm/internal/ir"
)

// Pass rewrites a kernel. Run must not modify its input.
type Pass interface {
	Name() string
	Run(k *ir.Kernel) (*ir.Kernel, Stats)
}

// Stats counts what a pass changed.
type Stats struct {
	Removed int `json:"removed,omitempty"`
	Merged  int `json:"merged,omitempty"`
	Moved   int `json:"moved,omitempty"`
}

// Changed reports whether the pass did anything.
func (s Stats) Changed() bool {
	return s.Removed+s.Merged+s.Moved > 0
}

// Add returns the sum of two stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{Removed: s.Removed + o.Removed, Merged: s.Merged + o.Merged, Moved: s.Moved + o.Moved}
}

var passes = map[string]func() Pass{
	"dce":  func() Pass { return DeadCodeElim{} },
	"cse":  func() Pass { return CommonSubexprElim{} },
	"sink": func() Pass { return SinkPure{} },
}

// PassNames returns the names accepted by Lookup, sorted.
func PassNames() []string {
	names := make([]string, 0, len(passes))
	for name := range passes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the pass registered under name.
func Lookup(name string) (Pass, error) {
	mk, ok := passes[name]
	if !ok {
		return nil, fmt.Errorf("unknown pass %q (known: %v)", name, PassNames())
	}
	return mk(), nil
}

// isPureStmt reports whether s can be removed or moved: it computes a value
// and performs no communication.
func isPureStmt(s ir.Stmt) bool {
	return !ir.HasOpaque(ir.StmtExpr(s))
}
