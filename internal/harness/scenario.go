package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tlcomm/internal/config"
	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
	"github.com/roach88/tlcomm/internal/opt"
)

// Scenario defines a conformance test scenario.
// A scenario compiles one source buffer, runs the optimizer over it and
// asserts on the resulting calls.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file
	// and the virtual source file ("<name>.tl").
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is the kernel source, inline.
	Source string `yaml:"source,omitempty"`

	// SourceFile is a path to the kernel source, relative to the scenario
	// file. Exactly one of Source and SourceFile is set.
	SourceFile string `yaml:"source_file,omitempty"`

	// Target enables core bounds checks and coordinate sugar.
	Target *TargetSpec `yaml:"target,omitempty"`

	// Passes lists optimizer passes to run. Absent means the configured
	// default; an explicit empty list runs none.
	Passes []string `yaml:"passes,omitempty"`

	// Intrinsics are registered alongside the builtins for this scenario.
	Intrinsics []IntrinsicDef `yaml:"intrinsics,omitempty"`

	// Assertions validate the compiled and optimized module.
	Assertions []Assertion `yaml:"assertions"`
}

// TargetSpec is the YAML form of config.Target.
type TargetSpec struct {
	Name string `yaml:"name"`
	Mesh struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"mesh"`
}

// IntrinsicDef declares an extra intrinsic, typically a pure helper the
// optimizer may remove or merge.
type IntrinsicDef struct {
	Name   string   `yaml:"name"`
	Arity  int      `yaml:"arity"`
	Effect string   `yaml:"effect"`
	Params []string `yaml:"params,omitempty"`
}

// Assertion validates the result of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call to Op appears in the trace
	// - "trace_order": the Ops appear in this order in the trace
	// - "trace_count": Op appears exactly Count times in the trace
	// - "stored_calls": the store holds Count calls to Op
	// - "stmt_count": Kernel has Count statements after the passes
	// - "compile_error": compilation failed with Code
	Type string `yaml:"type"`

	Op string `yaml:"op,omitempty"`

	// Effect optionally restricts trace_contains to calls with this effect.
	Effect string `yaml:"effect,omitempty"`

	Ops []string `yaml:"ops,omitempty"`

	Count int `yaml:"count,omitempty"`

	Kernel string `yaml:"kernel,omitempty"`

	// Code is the expected error code (compile_error).
	Code string `yaml:"code,omitempty"`

	// Contains is a substring the error message must include (compile_error).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStoredCalls   = "stored_calls"
	AssertStmtCount     = "stmt_count"
	AssertCompileError  = "compile_error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A source_file is read relative to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.SourceFile != "" && scenario.Source == "" {
		src := scenario.SourceFile
		if !filepath.IsAbs(src) {
			src = filepath.Join(filepath.Dir(path), src)
		}
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: source file: %w", err)
		}
		scenario.Source = string(b)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Source == "" {
		return fmt.Errorf("source or source_file is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Target != nil {
		if s.Target.Name == "" {
			return fmt.Errorf("target: name is required")
		}
		if s.Target.Mesh.X <= 0 || s.Target.Mesh.Y <= 0 {
			return fmt.Errorf("target: mesh dimensions must be positive, got %dx%d", s.Target.Mesh.X, s.Target.Mesh.Y)
		}
	}

	for _, name := range s.Passes {
		if _, err := opt.Lookup(name); err != nil {
			return fmt.Errorf("passes: %w", err)
		}
	}

	for i, def := range s.Intrinsics {
		if def.Name == "" {
			return fmt.Errorf("intrinsics[%d]: name is required", i)
		}
		if _, err := ir.ParseEffect(def.Effect); err != nil {
			return fmt.Errorf("intrinsics[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
		if a.Effect != "" {
			if _, err := ir.ParseEffect(a.Effect); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount, AssertStoredCalls:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStmtCount:
		if a.Kernel == "" {
			return fmt.Errorf("assertions[%d]: kernel is required for stmt_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stmt_count", index)
		}
	case AssertCompileError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for compile_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// fileName is the virtual file name the scenario source is compiled under.
func (s *Scenario) fileName() string {
	return s.Name + ".tl"
}

func (s *Scenario) target() *config.Target {
	if s.Target == nil {
		return nil
	}
	return &config.Target{
		Name: s.Target.Name,
		Mesh: config.Mesh{X: s.Target.Mesh.X, Y: s.Target.Mesh.Y},
	}
}

func (s *Scenario) passes() []string {
	if s.Passes == nil {
		return config.DefaultPasses()
	}
	return s.Passes
}

// registry returns the builtins plus the scenario's extra intrinsics, frozen.
func (s *Scenario) registry() (*intrinsic.Registry, error) {
	if len(s.Intrinsics) == 0 {
		return intrinsic.Default(), nil
	}
	defs := intrinsic.Builtins()
	for _, def := range s.Intrinsics {
		effect, err := ir.ParseEffect(def.Effect)
		if err != nil {
			return nil, fmt.Errorf("intrinsic %s: %w", def.Name, err)
		}
		defs = append(defs, intrinsic.Descriptor{
			Name:   def.Name,
			Arity:  intrinsic.Arity(def.Arity),
			Effect: effect,
			Params: def.Params,
		})
	}
	return intrinsic.NewFrozen(defs)
}
