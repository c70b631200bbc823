// Package config loads compiler configuration from CUE.
//
// A tlcomm.cue file describes the target core mesh and the optimizer passes
// to run:
//
//	target: {
//		name: "mesh4x4"
//		mesh: {x: 4, y: 4}
//	}
//	passes: ["dce", "cse", "sink"]
//
// The file is unified with an embedded schema; constraint violations and
// unknown fields are reported with their source positions.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// FileName is the conventional configuration file name.
const FileName = "tlcomm.cue"

// Mesh is a two-dimensional grid of cores.
type Mesh struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cores returns the number of cores in the mesh.
func (m Mesh) Cores() int { return m.X * m.Y }

// Contains reports whether (row, col) is a valid coordinate.
func (m Mesh) Contains(row, col int64) bool {
	return row >= 0 && col >= 0 && row < int64(m.X) && col < int64(m.Y)
}

// Linear maps a coordinate to its row-major core index.
func (m Mesh) Linear(row, col int64) int64 {
	return row*int64(m.Y) + col
}

// Target describes the machine kernels are compiled for.
type Target struct {
	Name string `json:"name"`
	Mesh Mesh   `json:"mesh"`
}

// Config is the decoded configuration.
type Config struct {
	// Target is nil when no target is configured; core indices are then
	// not bounds-checked.
	Target *Target  `json:"target,omitempty"`
	Passes []string `json:"passes"`
}

// DefaultPasses is the pass list used when a configuration names none.
func DefaultPasses() []string {
	return []string{"dce", "cse", "sink"}
}

// Default returns the configuration used without a tlcomm.cue file.
func Default() *Config {
	return &Config{Passes: DefaultPasses()}
}

// TargetName returns the configured target name, or "".
func (c *Config) TargetName() string {
	if c.Target == nil {
		return ""
	}
	return c.Target.Name
}

// Error is a configuration error with an optional source position.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads and decodes the configuration file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes CUE source. filename is used in error positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("config: compiling schema: %v", err))
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &Config{}
	if err := v.Decode(cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.LookupPath(cue.ParsePath("passes")).Exists() {
		cfg.Passes = DefaultPasses()
	}
	if cfg.Passes == nil {
		cfg.Passes = []string{}
	}
	return cfg, nil
}

// HasPass reports whether name is in the configured pass list.
func (c *Config) HasPass(name string) bool {
	return slices.Contains(c.Passes, name)
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
