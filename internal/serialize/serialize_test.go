package serialize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/crepererum/oclgrep/internal/graph"
	"github.com/crepererum/oclgrep/internal/parser"
)

func build(t *testing.T, regex string) *graph.Graph {
	t.Helper()
	re, err := parser.Parse([]rune(regex))
	if err != nil {
		t.Fatalf("Parse(%q): %v", regex, err)
	}
	g, err := graph.Build(re)
	if err != nil {
		t.Fatalf("Build(%q): %v", regex, err)
	}
	return g
}

func TestSerializeDeterministic(t *testing.T) {
	g := build(t, "a{2,3}")
	a := Serialize(g)
	b := Serialize(g)
	if !reflect.DeepEqual(a.Words, b.Words) {
		t.Fatalf("Serialize is not deterministic: %v != %v", a.Words, b.Words)
	}
}

func TestSerializeEntriesStrictlyIncreasing(t *testing.T) {
	for _, regex := range []string{"ab", "a{2,3}", "[a-c]+", "a*b", "[0-9]{3}", "ab?c"} {
		t.Run(regex, func(t *testing.T) {
			g := build(t, regex)
			buf := Serialize(g)
			for i := 0; i < buf.N; i++ {
				base := buf.Words[i]
				m := buf.Words[base]
				bodyBase := base + 1
				var lastChar int64 = -1
				for slot := uint32(0); slot < m; slot++ {
					entryBase := bodyBase + slot*(1+uint32(buf.O))
					c := int64(buf.Words[entryBase])
					if c <= lastChar {
						t.Fatalf("node %d: character keys not strictly increasing: %d after %d", i, c, lastChar)
					}
					lastChar = c

					var lastTarget int64 = -1
					sawFail := false
					for k := 0; k < buf.O; k++ {
						id := buf.Words[entryBase+1+uint32(k)]
						if id == graph.IDFail {
							sawFail = true
							continue
						}
						if sawFail {
							t.Fatalf("node %d entry %d: non-FAIL id %d after FAIL padding", i, slot, id)
						}
						if int64(id) <= lastTarget {
							t.Fatalf("node %d entry %d: target ids not strictly increasing/unique: %d after %d", i, slot, id, lastTarget)
						}
						lastTarget = int64(id)
					}
				}
			}
		})
	}
}

func TestClassNormalizationInvariance(t *testing.T) {
	g1 := build(t, "[a-cz]")
	g2 := build(t, "[za-c]")  // reordered
	g3 := build(t, "[a-czz]") // duplicated element

	w1 := Serialize(g1).Words
	w2 := Serialize(g2).Words
	w3 := Serialize(g3).Words

	if !reflect.DeepEqual(w1, w2) {
		t.Fatalf("reordered class compiled differently: %v != %v", w1, w2)
	}
	if !reflect.DeepEqual(w1, w3) {
		t.Fatalf("duplicated class compiled differently: %v != %v", w1, w3)
	}
}

func TestQuantifierEquivalences(t *testing.T) {
	equivalents := [][2]string{
		{"a?", "a{0,1}"},
		{"a+", "a{1,}"},
		{"a*", "a{0,}"},
	}
	for _, pair := range equivalents {
		t.Run(pair[0]+"_vs_"+pair[1], func(t *testing.T) {
			w1 := Serialize(build(t, pair[0])).Words
			w2 := Serialize(build(t, pair[1])).Words
			if !reflect.DeepEqual(w1, w2) {
				t.Fatalf("%q and %q compiled differently: %v != %v", pair[0], pair[1], w1, w2)
			}
		})
	}
}

func BenchmarkSerialize(b *testing.B) {
	re, err := parser.Parse([]rune("[a-z0-9]{2,16}"))
	if err != nil {
		b.Fatalf("Parse: %v", err)
	}
	g, err := graph.Build(re)
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Serialize(g)
	}
}

func TestDumpFormat(t *testing.T) {
	g := build(t, "ab")
	buf := Serialize(g)
	dump := Dump(buf)
	want := "Graph (n=5, o=1, size="
	if len(dump) < len(want) || dump[:len(want)] != want {
		t.Fatalf("Dump header = %q, want prefix %q", dump, want)
	}
	if !strings.Contains(dump, "node0 (m=") {
		t.Fatalf("Dump missing node0 header: %q", dump)
	}
}
