// Package serialize flattens a transition graph into the flat little-endian
// word buffer the matching engine consumes: a dispatch table of n words
// followed by variable-length node bodies.
package serialize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crepererum/oclgrep/internal/graph"
)

// Buffer is the flattened, device-uploadable form of a Graph. Words is the
// full word stream (dispatch table followed by node bodies); N is the node
// count; O is the maximum target-id cardinality any single entry carries.
// All three are required to walk the buffer back apart (see Dump).
type Buffer struct {
	Words []uint32
	N     int
	O     int
}

// Size reports the buffer's size in bytes; ids and characters are both
// 32-bit words.
func (b *Buffer) Size() int { return len(b.Words) * 4 }

// Serialize flattens g in two passes: compute n and o, then emit the
// zeroed dispatch table followed by each node's body in id order.
func Serialize(g *graph.Graph) *Buffer {
	n := len(g.Nodes)

	// FAIL ids are dropped here, not just deduplicated: the trailing zero
	// padding already represents FAIL, so a slot's real target list must
	// never contain an explicit 0 or a later real id sorted after it would
	// break the sorted-ascending-and-unique invariant over the full o-wide
	// entry.
	slotTargets := make([][]uint32, len(g.Slots))
	o := 0
	for i, s := range g.Slots {
		slotTargets[i] = sortedDedupNonFail(s)
		if len(slotTargets[i]) > o {
			o = len(slotTargets[i])
		}
	}

	words := make([]uint32, n)
	for _, node := range g.Nodes {
		words[node.ID] = uint32(len(words))
		words = append(words, uint32(len(node.Next)))
		for _, e := range node.Next {
			words = append(words, e.Char)
			targets := slotTargets[e.Slot]
			words = append(words, targets...)
			for i := len(targets); i < o; i++ {
				words = append(words, graph.IDFail)
			}
		}
	}

	return &Buffer{Words: words, N: n, O: o}
}

func sortedDedupNonFail(ids []uint32) []uint32 {
	out := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if id != graph.IDFail {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	deduped := out[:0:0]
	for i, v := range out {
		if i == 0 || v != out[i-1] {
			deduped = append(deduped, v)
		}
	}
	return deduped
}

// Dump renders a Buffer in the --print-graph text format: one "node<i>
// (m=<entries>):" header per node, followed by one "<char> => [<ids>]" line
// per entry. It reads the buffer itself (not the Graph it came from) so it
// stays valid as a ground-truth check against what the device actually
// receives.
func Dump(b *Buffer) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Graph (n=%d, o=%d, size=%dbyte):\n", b.N, b.O, b.Size())

	for i := 0; i < b.N; i++ {
		base := b.Words[i]
		m := b.Words[base]
		fmt.Fprintf(&out, "  node%d (m=%d):\n", i, m)

		bodyBase := base + 1
		for slotIdx := uint32(0); slotIdx < m; slotIdx++ {
			entryBase := bodyBase + slotIdx*(1+uint32(b.O))
			c := b.Words[entryBase]
			fmt.Fprintf(&out, "    %d => [", c)
			for k := 0; k < b.O; k++ {
				if k > 0 {
					out.WriteString(",")
				}
				fmt.Fprintf(&out, "%d", b.Words[entryBase+1+uint32(k)])
			}
			out.WriteString("]\n")
		}
	}
	return out.String()
}
