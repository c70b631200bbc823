package opt

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tlcomm/internal/ir"
)

// PassResult records one pass run on one kernel.
type PassResult struct {
	Kernel string `json:"kernel"`
	Pass   string `json:"pass"`
	Stats  Stats  `json:"stats"`
}

// Pipeline runs passes in order and verifies the effect contract after each.
type Pipeline struct {
	passes []Pass
	logger *slog.Logger
}

// NewPipeline returns a pipeline over passes. A nil logger discards output.
func NewPipeline(logger *slog.Logger, passes ...Pass) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{passes: passes, logger: logger}
}

// FromNames builds a pipeline from configured pass names.
func FromNames(logger *slog.Logger, names []string) (*Pipeline, error) {
	ps := make([]Pass, 0, len(names))
	for _, name := range names {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return NewPipeline(logger, ps...), nil
}

// Names returns the pass names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.passes))
	for i, ps := range p.passes {
		names[i] = ps.Name()
	}
	return names
}

// Run applies every pass to k. The input kernel is not modified.
func (p *Pipeline) Run(k *ir.Kernel) (*ir.Kernel, []PassResult, error) {
	cur := k
	results := make([]PassResult, 0, len(p.passes))
	for _, ps := range p.passes {
		next, stats := ps.Run(cur)
		if err := VerifyEffectOrder(cur, next); err != nil {
			var ov *OrderingViolationError
			if errors.As(err, &ov) {
				ov.Pass = ps.Name()
			}
			p.logger.Error("pass broke effect order", "kernel", k.Name, "pass", ps.Name(), "error", err)
			return nil, results, err
		}
		p.logger.Debug("pass finished",
			"kernel", k.Name,
			"pass", ps.Name(),
			"removed", stats.Removed,
			"merged", stats.Merged,
			"moved", stats.Moved,
		)
		results = append(results, PassResult{Kernel: k.Name, Pass: ps.Name(), Stats: stats})
		cur = next
	}
	return cur, results, nil
}

// RunModule runs the pipeline over every kernel and returns a new module.
func (p *Pipeline) RunModule(m *ir.Module) (*ir.Module, []PassResult, error) {
	out := *m
	out.Kernels = make([]*ir.Kernel, len(m.Kernels))
	var all []PassResult
	for i, k := range m.Kernels {
		nk, results, err := p.Run(k)
		if err != nil {
			return nil, all, fmt.Errorf("kernel %s: %w", k.Name, err)
		}
		out.Kernels[i] = nk
		all = append(all, results...)
	}
	p.logger.Info("optimized module", "kernels", len(m.Kernels), "passes", len(p.passes))
	return &out, all, nil
}
