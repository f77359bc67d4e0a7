// Package prefilter narrows the set of start offsets the automaton kernel
// has to walk. Every unquantified literal run in a pattern must appear
// verbatim in any match, so a single host-side Aho-Corasick scan over the
// text can rule out most offsets before anything is dispatched to the
// device. The filter is a pure accelerator: it only ever removes offsets
// that provably cannot match, never offsets that could.
package prefilter

import (
	"sort"

	"github.com/coregx/ahocorasick"

	"github.com/crepererum/oclgrep/internal/ast"
	"github.com/crepererum/oclgrep/internal/textio"
)

// Filter is a compiled literal prescan for one pattern.
type Filter struct {
	auto    *ahocorasick.Automaton
	leading bool
}

// FromRegex extracts the pattern's mandatory literal and compiles it into a
// Filter. Returns nil when the pattern carries no unquantified Word chunk
// (e.g. "[a-c]+"); matching then proceeds without a prescan.
//
// When the first chunk is an unquantified Word, every match must start with
// that word and the filter yields exact candidate start offsets. Otherwise
// the longest unquantified Word is used as a containment check only: absent
// from the text, the whole run has zero matches.
func FromRegex(re *ast.Regex) *Filter {
	var literal []rune
	leading := false
	for i, chunk := range re.Chunks {
		if chunk.Content.Word == nil || chunk.Multiplier.Kind != ast.MultNone {
			continue
		}
		word := make([]rune, len(chunk.Content.Word.Chars))
		for j, c := range chunk.Content.Word.Chars {
			word[j] = rune(c)
		}
		if i == 0 {
			literal = word
			leading = true
			break
		}
		if len(word) > len(literal) {
			literal = word
		}
	}
	if len(literal) == 0 {
		return nil
	}

	data, _ := textio.Encode(literal)
	builder := ahocorasick.NewBuilder()
	builder.AddPattern(data)
	auto, err := builder.Build()
	if err != nil {
		return nil
	}
	return &Filter{auto: auto, leading: leading}
}

// Candidates prescans text. any == false means the text cannot contain a
// match at all. Otherwise mask, when non-nil, marks the start offsets (in
// code points) the automaton still has to try; a nil mask means every offset
// remains a candidate.
func (f *Filter) Candidates(text []rune) (mask []bool, any bool) {
	data, starts := textio.Encode(text)

	if !f.leading {
		return nil, f.auto.IsMatch(data)
	}

	mask = make([]bool, len(text))
	at := 0
	for {
		m := f.auto.Find(data, at)
		if m == nil {
			break
		}
		idx := sort.SearchInts(starts, m.Start)
		if idx < len(starts) && starts[idx] == m.Start {
			mask[idx] = true
			any = true
		}
		at = m.Start + 1
	}
	return mask, any
}
