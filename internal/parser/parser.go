// Package parser turns a pattern into its AST by recursive descent:
//
//	regex          := chunk+
//	chunk          := chunkcontent multiplier?
//	chunkcontent   := characterclass | word
//	word           := character+
//	characterclass := '[' (character_range | character)+ ']'
//	multiplier     := '{'uint'}' | '{'uint?','uint?'}' | '+' | '?' | '*'
//
// Matching is greedy left-to-right; alternatives backtrack via saved
// positions.
package parser

import (
	"strings"

	"github.com/crepererum/oclgrep/internal/ast"
	"github.com/crepererum/oclgrep/internal/oclerr"
)

const metaChars = "[]{}+*?-"

func isMeta(r rune) bool {
	return strings.ContainsRune(metaChars, r)
}

// isCharacter reports whether r is a valid bare character: any code point
// except the metacharacters and the two reserved sentinels.
func isCharacter(r rune) bool {
	if r < 0 {
		return false
	}
	if isMeta(r) {
		return false
	}
	if r == 0 || uint32(r) == 0xFFFFFFFF {
		return false
	}
	return true
}

// Parse parses input (already-decoded UTF-32 code points) into a Regex AST.
// On failure it returns an *oclerr.User reporting the one-based column of
// the first unparsable position, with the input rendered under a caret.
func Parse(input []rune) (*ast.Regex, error) {
	if len(input) == 0 {
		return nil, oclerr.NewUser("empty regex is not allowed")
	}
	p := &parser{input: input}
	chunks, ok := p.parseChunks()
	if !ok || p.pos != len(p.input) {
		return nil, p.errorAt(p.pos)
	}
	if len(chunks) == 0 {
		return nil, oclerr.NewUser("empty regex is not allowed")
	}
	return &ast.Regex{Chunks: chunks}, nil
}

type parser struct {
	input []rune
	pos   int
}

func (p *parser) errorAt(pos int) error {
	var b strings.Builder
	b.WriteString("malformed regex: ")
	b.WriteString(string(p.input))
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", len("malformed regex: ")+pos))
	b.WriteString("^")
	return oclerr.NewUser("%s (column %d)", b.String(), pos+1)
}

func (p *parser) peek() (rune, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *parser) parseChunks() ([]ast.Chunk, bool) {
	var chunks []ast.Chunk
	for {
		chunk, ok := p.parseChunk()
		if !ok {
			break
		}
		chunks = append(chunks, chunk...)
	}
	return chunks, true
}

// parseChunk returns one chunk, or two when a multiplier follows a literal
// run of more than one character: "ab?" means a(b?), not (ab)?, so the run's
// final character is split into its own chunk carrying the multiplier.
func (p *parser) parseChunk() ([]ast.Chunk, bool) {
	start := p.pos
	content, ok := p.parseChunkContent()
	if !ok {
		p.pos = start
		return nil, false
	}
	mult := p.parseMultiplier()

	if mult.Kind != ast.MultNone && content.Word != nil && len(content.Word.Chars) > 1 {
		chars := content.Word.Chars
		head := &ast.Word{Chars: chars[:len(chars)-1]}
		tail := &ast.Word{Chars: chars[len(chars)-1:]}
		return []ast.Chunk{
			{Content: ast.ChunkContent{Word: head}},
			{Content: ast.ChunkContent{Word: tail}, Multiplier: mult},
		}, true
	}
	return []ast.Chunk{{Content: content, Multiplier: mult}}, true
}

func (p *parser) parseChunkContent() (ast.ChunkContent, bool) {
	if c, ok := p.peek(); ok && c == '[' {
		class, ok := p.parseCharacterClass()
		if !ok {
			return ast.ChunkContent{}, false
		}
		return ast.ChunkContent{Class: class}, true
	}
	word, ok := p.parseWord()
	if !ok {
		return ast.ChunkContent{}, false
	}
	return ast.ChunkContent{Word: word}, true
}

// parseWord greedily consumes a maximal run of bare characters; word :=
// character+ requires at least one.
func (p *parser) parseWord() (*ast.Word, bool) {
	var chars []ast.Character
	for {
		c, ok := p.peek()
		if !ok || !isCharacter(c) {
			break
		}
		chars = append(chars, ast.Character(c))
		p.pos++
	}
	if len(chars) == 0 {
		return nil, false
	}
	return &ast.Word{Chars: chars}, true
}

// parseCharacterClass parses '[' (character_range | character)+ ']'.
func (p *parser) parseCharacterClass() (*ast.CharacterClass, bool) {
	start := p.pos
	c, ok := p.peek()
	if !ok || c != '[' {
		return nil, false
	}
	p.pos++

	var ranges []ast.CharacterRange
	for {
		r, ok := p.parseClassRange()
		if !ok {
			break
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		p.pos = start
		return nil, false
	}
	c, ok = p.peek()
	if !ok || c != ']' {
		p.pos = start
		return nil, false
	}
	p.pos++
	return &ast.CharacterClass{Ranges: ranges}, true
}

// parseClassRange tries character_range first, falling back to a bare
// character, matching the grammar's "character_range | character" ordering.
func (p *parser) parseClassRange() (ast.CharacterRange, bool) {
	save := p.pos
	first, ok := p.peek()
	if !ok || !isCharacter(first) {
		return ast.CharacterRange{}, false
	}
	p.pos++

	if dash, ok := p.peek(); ok && dash == '-' {
		savedAfterDash := p.pos
		p.pos++
		if second, ok := p.peek(); ok && isCharacter(second) {
			p.pos++
			return ast.CharacterRange{Begin: ast.Character(first), End: ast.Character(second)}, true
		}
		p.pos = savedAfterDash
	}

	p.pos = save + 1
	return ast.CharacterRange{Begin: ast.Character(first), End: ast.Character(first)}, true
}

func (p *parser) parseMultiplier() ast.Multiplier {
	c, ok := p.peek()
	if !ok {
		return ast.Multiplier{Kind: ast.MultNone}
	}
	switch c {
	case '+':
		p.pos++
		return ast.Multiplier{Kind: ast.MultPlus}
	case '?':
		p.pos++
		return ast.Multiplier{Kind: ast.MultQuestion}
	case '*':
		p.pos++
		return ast.Multiplier{Kind: ast.MultStar}
	case '{':
		if m, ok := p.parseBraceMultiplier(); ok {
			return m
		}
	}
	return ast.Multiplier{Kind: ast.MultNone}
}

func (p *parser) parseBraceMultiplier() (ast.Multiplier, bool) {
	save := p.pos
	p.pos++ // consume '{'

	minVal, haveMin := p.parseUint()

	if c, ok := p.peek(); ok && c == '}' {
		if !haveMin {
			p.pos = save
			return ast.Multiplier{}, false
		}
		p.pos++
		return ast.Multiplier{Kind: ast.MultAmount, Min: minVal, Max: minVal}, true
	}

	c, ok := p.peek()
	if !ok || c != ',' {
		p.pos = save
		return ast.Multiplier{}, false
	}
	p.pos++

	maxVal, haveMax := p.parseUint()

	c, ok = p.peek()
	if !ok || c != '}' {
		p.pos = save
		return ast.Multiplier{}, false
	}
	p.pos++

	if !haveMin {
		minVal = 0
	}
	return ast.Multiplier{Kind: ast.MultRange, Min: minVal, Max: maxVal, HasMax: haveMax}, true
}

func (p *parser) parseUint() (int, bool) {
	start := p.pos
	val := 0
	for {
		c, ok := p.peek()
		if !ok || c < '0' || c > '9' {
			break
		}
		val = val*10 + int(c-'0')
		p.pos++
	}
	return val, p.pos > start
}
