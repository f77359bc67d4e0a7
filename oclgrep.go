// Package oclgrep searches a text for every start offset matching a regular
// expression of a restricted dialect (literal runs, character classes and
// quantifiers; no alternation, grouping, anchors or captures). Patterns are
// compiled to a flat, character-indexed transition graph and matched from
// all start offsets in parallel on a data-parallel engine, followed by a
// stream-compaction pass that yields the dense ascending match list.
//
// The usual flow is Compile once, then Run per text:
//
//	re, err := oclgrep.Compile([]rune("[0-9]{3}"))
//	eng, err := oclgrep.NewEngine(device.DefaultConfig())
//	offsets, err := eng.Run(re, []rune(text))
//
// All offsets are zero-based and counted in UTF-32 code points.
package oclgrep

import (
	"github.com/crepererum/oclgrep/internal/device"
	"github.com/crepererum/oclgrep/internal/graph"
	"github.com/crepererum/oclgrep/internal/oclerr"
	"github.com/crepererum/oclgrep/internal/parser"
	"github.com/crepererum/oclgrep/internal/prefilter"
	"github.com/crepererum/oclgrep/internal/serialize"
)

// The three disjoint error kinds every operation reports.
//
// UserError is misuse or an environmental problem and maps to a plain
// message plus a non-zero exit. InternalError is a bug in the engine and
// carries a "please report" banner plus any captured build log.
// SanityError is a violated invariant and carries the source location of
// the failed check.
type (
	UserError     = oclerr.User
	InternalError = oclerr.Internal
	SanityError   = oclerr.Sanity
)

// Regex is a compiled pattern: the serialized transition graph ready for
// upload, plus the optional host-side literal prefilter. A Regex is
// immutable and safe to share across engines and runs.
type Regex struct {
	source []rune
	buffer *serialize.Buffer
	filter *prefilter.Filter
}

// Compile parses pattern and compiles it down to the serialized graph.
// The pattern is UTF-32 code points; callers wanting NFKC-normalized
// matching normalize before compiling (internal to the CLI's
// --normalize-regex flag).
func Compile(pattern []rune) (*Regex, error) {
	re, err := parser.Parse(pattern)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(re)
	if err != nil {
		return nil, err
	}
	return &Regex{
		source: append([]rune(nil), pattern...),
		buffer: serialize.Serialize(g),
		filter: prefilter.FromRegex(re),
	}, nil
}

// Source returns the pattern the Regex was compiled from.
func (r *Regex) Source() []rune { return append([]rune(nil), r.source...) }

// DumpGraph renders the serialized graph in the --print-graph text format.
func (r *Regex) DumpGraph() string { return serialize.Dump(r.buffer) }

// Engine wraps the device driver. It probes the host device once and can
// run any number of (Regex, text) pairs.
type Engine struct {
	drv         *device.Engine
	lastProfile *device.Profile
}

// NewEngine validates cfg and sets up the device.
func NewEngine(cfg device.Config) (*Engine, error) {
	drv, err := device.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{drv: drv}, nil
}

// Device describes the selected device.
func (e *Engine) Device() *device.Device { return e.drv.Dev }

// LastProfile returns the per-phase timings of the most recent Run, or nil
// before the first one (or when the prefilter proved the text match-free
// and nothing was dispatched).
func (e *Engine) LastProfile() *device.Profile { return e.lastProfile }

// Run matches re against text from every start offset and returns the
// strictly increasing list of matching offsets. Empty texts are rejected.
//
// When the pattern carries a mandatory literal, a host-side Aho-Corasick
// prescan narrows (or empties) the candidate offsets first; this never
// changes the result, only how much work reaches the device.
func (e *Engine) Run(re *Regex, text []rune) ([]uint32, error) {
	if len(text) == 0 {
		return nil, oclerr.NewUser("Empty files cannot be processed!")
	}

	var mask []bool
	if re.filter != nil {
		var any bool
		mask, any = re.filter.Candidates(text)
		if !any {
			e.lastProfile = nil
			return []uint32{}, nil
		}
	}

	runner, err := e.drv.NewRunner(re.buffer, len(text))
	if err != nil {
		return nil, err
	}
	result, err := runner.Run(text, mask)
	e.lastProfile = runner.LastProfile()
	if err != nil {
		return nil, err
	}
	return result, nil
}
