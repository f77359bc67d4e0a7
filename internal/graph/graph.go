// Package graph builds the nondeterministic, character-indexed transition
// graph from a parsed AST: node id 0 is FAIL, id 1 is OK, id 2 is the entry
// node, and every chunk's content gets fresh ids from 3 onward.
//
// Slots are arena-indexed (SlotID into the builder's slot table) rather
// than shared pointers: a node references a slot by index, a slot holds
// target node ids, and back-patching a quantifier loop is an append to the
// arena entry instead of a pointer dereference. There is no cyclic
// ownership anywhere.
package graph

import (
	"sort"

	"github.com/crepererum/oclgrep/internal/ast"
	"github.com/crepererum/oclgrep/internal/oclerr"
)

// Hard limits on compiled patterns.
const (
	MaxMultiplier = 128
	MaxRanges     = 64
)

// Reserved node ids.
const (
	IDFail  = 0
	IDOK    = 1
	IDEntry = 2
)

// SlotID indexes Graph.Slots / Builder.slots.
type SlotID int

// Entry is one (character, slot) pair in a node's dispatch list. Char is the
// half-open range start: on any code point x with Char <= x < next entry's
// Char, follow Slot.
type Entry struct {
	Char uint32
	Slot SlotID
}

// Node is a single graph node: a stable id plus its ordered Next list.
type Node struct {
	ID   uint32
	Next []Entry
}

// Graph is the finished, immutable output of Build: a node table plus the
// slot arena those nodes' entries reference.
type Graph struct {
	Nodes []Node
	Slots [][]uint32
}

// Targets resolves a slot to its current target node ids, in the order they
// were appended. The list is not sorted or deduplicated and may contain
// FAIL; the serializer sorts, deduplicates and drops FAIL.
func (g *Graph) Targets(s SlotID) []uint32 { return g.Slots[s] }

type builder struct {
	nodes []Node
	slots [][]uint32
}

func newBuilder() *builder {
	b := &builder{}
	b.nodes = append(b.nodes, Node{ID: IDFail})
	b.nodes = append(b.nodes, Node{ID: IDOK})
	b.nodes = append(b.nodes, Node{ID: IDEntry})
	return b
}

func (b *builder) newNode() uint32 {
	id := uint32(len(b.nodes))
	b.nodes = append(b.nodes, Node{ID: id})
	return id
}

func (b *builder) newSlot(initial ...uint32) SlotID {
	id := SlotID(len(b.slots))
	s := append([]uint32(nil), initial...)
	b.slots = append(b.slots, s)
	return id
}

func (b *builder) appendSlot(s SlotID, target uint32) {
	b.slots[s] = append(b.slots[s], target)
}

func (b *builder) appendSlots(ss []SlotID, target uint32) {
	for _, s := range ss {
		b.appendSlot(s, target)
	}
}

// transformCharacter creates node N for a literal character, appends N.id
// to every open slot, and populates N.Next with FAIL guards around a
// single-character accepting range. New open slots = [S].
func (b *builder) transformCharacter(c ast.Character, open []SlotID) []SlotID {
	id := b.newNode()
	b.appendSlots(open, id)
	failLo := b.newSlot(IDFail)
	match := b.newSlot()
	failHi := b.newSlot(IDFail)
	b.nodes[id].Next = []Entry{
		{Char: 0, Slot: failLo},
		{Char: uint32(c), Slot: match},
		{Char: uint32(c) + 1, Slot: failHi},
	}
	return []SlotID{match}
}

// transformClass merges the class ranges, caps them at MaxRanges, and
// emits one node whose Next alternates FAIL guards and accepting ranges.
func (b *builder) transformClass(cls *ast.CharacterClass, open []SlotID) ([]SlotID, error) {
	merged := ast.MergeRanges(cls.Ranges)
	if len(merged) > MaxRanges {
		return nil, oclerr.NewUser("character class too large: %d ranges exceeds MAX_RANGES=%d", len(merged), MaxRanges)
	}

	id := b.newNode()
	b.appendSlots(open, id)

	next := []Entry{{Char: 0, Slot: b.newSlot(IDFail)}}
	result := make([]SlotID, 0, len(merged))
	for _, r := range merged {
		s := b.newSlot()
		result = append(result, s)
		next = append(next, Entry{Char: uint32(r.Begin), Slot: s})
		next = append(next, Entry{Char: uint32(r.End) + 1, Slot: b.newSlot(IDFail)})
	}
	b.nodes[id].Next = next
	return result, nil
}

func (b *builder) transformWord(w *ast.Word, open []SlotID) []SlotID {
	for _, c := range w.Chars {
		open = b.transformCharacter(c, open)
	}
	return open
}

func (b *builder) transformContent(content ast.ChunkContent, open []SlotID) ([]SlotID, error) {
	if content.Word != nil {
		return b.transformWord(content.Word, open), nil
	}
	return b.transformClass(content.Class, open)
}

// transformChunk unrolls the chunk's multiplier into a mandatory chain
// plus an optional tail: a dead-ending chain of exits for a bounded range,
// a self-looping copy for an unbounded one. A chunk without a multiplier
// is emitted directly, exactly once.
func (b *builder) transformChunk(chunk ast.Chunk, open []SlotID) ([]SlotID, error) {
	if chunk.Multiplier.Kind == ast.MultNone {
		return b.transformContent(chunk.Content, open)
	}

	min, max, unbounded := chunk.Multiplier.Bounds()
	if min > MaxMultiplier {
		return nil, oclerr.NewUser("illegal regex multiplier: min %d exceeds MAX_MULTIPLIER=%d", min, MaxMultiplier)
	}
	if !unbounded {
		if max < min {
			return nil, oclerr.NewUser("illegal regex multiplier: max %d is less than min %d", max, min)
		}
		if max > MaxMultiplier {
			return nil, oclerr.NewUser("illegal regex multiplier: max %d exceeds MAX_MULTIPLIER=%d", max, MaxMultiplier)
		}
	}

	var err error
	for i := 0; i < min; i++ {
		open, err = b.transformContent(chunk.Content, open)
		if err != nil {
			return nil, err
		}
	}

	if unbounded {
		preLoop := append([]SlotID(nil), open...)
		firstID := uint32(len(b.nodes))
		trailing, err := b.transformContent(chunk.Content, open)
		if err != nil {
			return nil, err
		}
		for _, s := range trailing {
			b.appendSlot(s, firstID)
		}
		return append(preLoop, trailing...), nil
	}

	var result []SlotID
	cur := open
	for i := min; i <= max; i++ {
		result = append(result, cur...)
		cur, err = b.transformContent(chunk.Content, cur)
		if err != nil {
			return nil, err
		}
	}
	b.appendSlots(cur, IDFail)
	return result, nil
}

type chunkInfo struct {
	entry    uint32
	nullable bool
}

// Build compiles a parsed Regex into a Graph: thread open slots through
// every chunk in order, patch the trailing open slots to OK, then resolve
// the automaton's entry node (id 2).
func Build(re *ast.Regex) (*Graph, error) {
	b := newBuilder()
	infos := make([]chunkInfo, len(re.Chunks))

	var open []SlotID
	for i, chunk := range re.Chunks {
		entryID := uint32(len(b.nodes))
		var err error
		open, err = b.transformChunk(chunk, open)
		if err != nil {
			return nil, err
		}
		infos[i] = chunkInfo{entry: entryID, nullable: chunk.Multiplier.Nullable()}
	}
	b.appendSlots(open, IDOK)

	entrySet, wholeRegexNullable := nullablePrefix(infos)
	if wholeRegexNullable {
		entrySet = append(entrySet, IDOK)
	}
	b.resolveEntry(entrySet)

	return &Graph{Nodes: b.nodes, Slots: b.slots}, nil
}

// nullablePrefix walks the chunk sequence from the start, collecting every
// chunk's entry node id while that chunk (and all before it) permit zero
// repetitions: entering the whole regex with zero characters consumed must
// be able to reach any of them directly. Stops at (and includes) the first
// non-nullable chunk. wholeRegexNullable reports whether every chunk was
// nullable (the entire regex may match the empty string).
func nullablePrefix(infos []chunkInfo) (entrySet []uint32, wholeRegexNullable bool) {
	wholeRegexNullable = true
	for _, info := range infos {
		entrySet = append(entrySet, info.entry)
		if !info.nullable {
			wholeRegexNullable = false
			break
		}
	}
	return entrySet, wholeRegexNullable
}

// resolveEntry builds node id 2's transition table. In the overwhelmingly
// common case (a non-nullable leading chunk) entrySet has exactly one real
// node and node 2 becomes an alias copy of its table. When a leading chunk
// (or chain of chunks) is nullable, per-chunk slot threading cannot express
// "jump straight to what follows without consuming a character" -- there is
// no predecessor slot to backpatch before chunk 1. Node 2 is reserved up
// front (ids 3.. are used for real chunk content) so it can instead be
// built as the character-range union ("epsilon closure") of every node in
// entrySet, including OK when the whole regex is nullable; a*b must match
// where a* consumes nothing, and a* alone must match at every offset.
func (b *builder) resolveEntry(entrySet []uint32) {
	if len(entrySet) == 1 {
		b.nodes[IDEntry].Next = append([]Entry(nil), b.nodes[entrySet[0]].Next...)
		return
	}

	var okSlot SlotID = -1
	tables := make([][]Entry, len(entrySet))
	for i, id := range entrySet {
		if id == IDOK {
			if okSlot < 0 {
				okSlot = b.newSlot(IDOK)
			}
			tables[i] = []Entry{{Char: 0, Slot: okSlot}}
			continue
		}
		tables[i] = b.nodes[id].Next
	}

	breakSet := map[uint32]struct{}{0: {}}
	for _, t := range tables {
		for _, e := range t {
			breakSet[e.Char] = struct{}{}
		}
	}
	breaks := make([]uint32, 0, len(breakSet))
	for c := range breakSet {
		breaks = append(breaks, c)
	}
	sort.Slice(breaks, func(i, j int) bool { return breaks[i] < breaks[j] })

	merged := make([]Entry, 0, len(breaks))
	for _, bp := range breaks {
		var targets []uint32
		for _, t := range tables {
			var slot SlotID = -1
			for _, e := range t {
				if e.Char > bp {
					break
				}
				slot = e.Slot
			}
			if slot >= 0 {
				targets = append(targets, b.slots[slot]...)
			}
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
		deduped := targets[:0:0]
		for i, v := range targets {
			if i == 0 || v != targets[i-1] {
				deduped = append(deduped, v)
			}
		}
		merged = append(merged, Entry{Char: bp, Slot: b.newSlot(deduped...)})
	}
	b.nodes[IDEntry].Next = merged
}
