package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/crepererum/oclgrep/internal/graph"
	"github.com/crepererum/oclgrep/internal/oclerr"
	"github.com/crepererum/oclgrep/internal/parser"
	"github.com/crepererum/oclgrep/internal/serialize"
)

func compile(t testing.TB, regex string) *serialize.Buffer {
	t.Helper()
	re, err := parser.Parse([]rune(regex))
	if err != nil {
		t.Fatalf("Parse(%q): %v", regex, err)
	}
	g, err := graph.Build(re)
	if err != nil {
		t.Fatalf("Build(%q): %v", regex, err)
	}
	return serialize.Serialize(g)
}

func run(t testing.TB, cfg Config, regex, text string, candidates []bool) ([]uint32, error) {
	t.Helper()
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	runner, err := eng.NewRunner(compile(t, regex), len([]rune(text)))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner.Run([]rune(text), candidates)
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name  string
		regex string
		text  string
		want  []uint32
	}{
		{"literal", "ab", "xababy", []uint32{1, 3}},
		{"amount", "a{2,3}", "aaaa", []uint32{0, 1, 2}},
		{"class plus", "[a-c]+", "xabcabcx", []uint32{1, 2, 3, 4, 5, 6}},
		{"nullable prefix", "a*b", "aaabxb", []uint32{0, 1, 2, 3, 5}},
		{"class amount", "[0-9]{3}", "a123b45c678", []uint32{1, 8}},
		{"optional middle", "ab?c", "acxabcxabbc", []uint32{0, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := run(t, DefaultConfig(), tc.regex, tc.text, nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			assertOffsets(t, got, tc.want, len([]rune(tc.text)))
		})
	}
}

func assertOffsets(t *testing.T, got, want []uint32, textLen int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("offsets = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", got, want)
		}
		if i > 0 && got[i] <= got[i-1] {
			t.Fatalf("offsets not strictly increasing: %v", got)
		}
		if int(got[i]) >= textLen {
			t.Fatalf("offset %d out of range for text length %d", got[i], textLen)
		}
	}
}

func TestRunSmallGroupSize(t *testing.T) {
	// Forces multiple workgroups and multiple items per group on a short
	// text so the barrier and block assignment paths are exercised.
	cfg := DefaultConfig()
	cfg.GroupSize = 2
	cfg.MultiInputN = 2
	cfg.SyncCount = 1

	got, err := run(t, cfg, "[a-c]+", "xabcabcx", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertOffsets(t, got, []uint32{1, 2, 3, 4, 5, 6}, 8)
}

func TestRunWithTextCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseCache = true

	got, err := run(t, cfg, "ab", "xababy", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertOffsets(t, got, []uint32{1, 3}, 6)
}

func TestRunCandidateMask(t *testing.T) {
	text := "xababy"
	mask := make([]bool, len(text))
	mask[1] = true // offset 3 is deliberately excluded

	got, err := run(t, DefaultConfig(), "ab", text, mask)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertOffsets(t, got, []uint32{1}, len(text))
}

func TestStackFullFlag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStackSize = 3

	_, err := run(t, cfg, "a{1,10}", "aaaaaaaaaaaa", nil)
	var userErr *oclerr.User
	if !errors.As(err, &userErr) {
		t.Fatalf("Run: want *oclerr.User, got %T: %v", err, err)
	}
	if !strings.Contains(userErr.Message, "stack") {
		t.Fatalf("Run: error does not mention the stack: %v", err)
	}
}

func TestIterMaxFlag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterCount = 1

	_, err := run(t, cfg, "ab", "ab", nil)
	var userErr *oclerr.User
	if !errors.As(err, &userErr) {
		t.Fatalf("Run: want *oclerr.User, got %T: %v", err, err)
	}
	if !strings.Contains(userErr.Message, "iteration") {
		t.Fatalf("Run: error does not mention the iteration budget: %v", err)
	}
}

func TestGraphTooLargeForDevice(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.Dev.MaxConstBufferSize = 8

	_, err = eng.NewRunner(compile(t, "ab"), 16)
	var userErr *oclerr.User
	if !errors.As(err, &userErr) {
		t.Fatalf("NewRunner: want *oclerr.User, got %T: %v", err, err)
	}
}

func TestBrokenBufferIsInternalError(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	runner, err := eng.NewRunner(&serialize.Buffer{Words: nil, N: 0, O: 0}, 4)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	_, err = runner.Run([]rune("a"), nil)
	var internalErr *oclerr.Internal
	if !errors.As(err, &internalErr) {
		t.Fatalf("Run: want *oclerr.Internal, got %T: %v", err, err)
	}
	if len(internalErr.BuildLog) == 0 {
		t.Fatalf("Run: internal error carries no build log: %v", err)
	}
}

func TestEmptyChunkIsSanityError(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	runner, err := eng.NewRunner(compile(t, "ab"), 4)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	_, err = runner.Run(nil, nil)
	var sanityErr *oclerr.Sanity
	if !errors.As(err, &sanityErr) {
		t.Fatalf("Run: want *oclerr.Sanity, got %T: %v", err, err)
	}
}

func TestProfileCapturesAllPhases(t *testing.T) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	runner, err := eng.NewRunner(compile(t, "ab"), 8)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if _, err := runner.Run([]rune("xababy"), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	prof := runner.LastProfile()
	if prof == nil {
		t.Fatalf("LastProfile: nil after a run")
	}
	// log2(6) rounded up: offsets 1, 2, 4
	if len(prof.KernelScan) != 3 {
		t.Fatalf("KernelScan waves = %d, want 3", len(prof.KernelScan))
	}
	if !prof.HasDownloadOutput {
		t.Fatalf("HasDownloadOutput = false for a run with matches")
	}
	banner := prof.String()
	for _, phase := range []string{"uploadText", "kernelAutomaton", "kernelTransform", "kernelScan", "kernelMove", "downloadOutputSize", "downloadOutput", "downloadFlags"} {
		if !strings.Contains(banner, phase) {
			t.Fatalf("profile banner missing %q:\n%s", phase, banner)
		}
	}
}

func BenchmarkRunClassPlus(b *testing.B) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		b.Fatalf("NewEngine: %v", err)
	}
	text := []rune(strings.Repeat("xabcabcx", 1024))
	runner, err := eng.NewRunner(compile(b, "[a-c]+"), len(text))
	if err != nil {
		b.Fatalf("NewRunner: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := runner.Run(text, nil); err != nil {
			b.Fatalf("Run: %v", err)
		}
	}
}
