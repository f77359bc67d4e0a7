package device

import (
	"fmt"
	"sync/atomic"

	"github.com/crepererum/oclgrep/internal/graph"
	"github.com/crepererum/oclgrep/internal/oclerr"
	"github.com/crepererum/oclgrep/internal/serialize"
)

// kernelParams is the constant block a real device build would receive as
// -D macro substitutions. buildKernelParams is the analogue of compiling
// the kernel sources with -Werror: a parameter set no kernel can be built
// from is an internal error carrying the offending lines as a build log.
type kernelParams struct {
	n             uint32
	o             uint32
	groupSize     int
	multiInputN   int
	syncCount     int
	maxIterCount  int
	maxStackSize  int
	oversizeCache int
	useCache      bool
}

func buildKernelParams(cfg Config, buf *serialize.Buffer) (kernelParams, error) {
	var log []string
	if buf.N < 3 {
		log = append(log, fmt.Sprintf("automaton.cl: N=%d but the graph needs at least FAIL, OK and the entry node", buf.N))
	}
	if buf.O < 1 {
		log = append(log, fmt.Sprintf("automaton.cl: O=%d but entries need at least one target word", buf.O))
	}
	if len(buf.Words) < buf.N {
		log = append(log, fmt.Sprintf("automaton.cl: buffer of %d words cannot hold a dispatch table of %d nodes", len(buf.Words), buf.N))
	}
	if len(log) > 0 {
		return kernelParams{}, &oclerr.Internal{Message: "cannot build automaton kernel", BuildLog: log}
	}
	return kernelParams{
		n:             uint32(buf.N),
		o:             uint32(buf.O),
		groupSize:     cfg.GroupSize,
		multiInputN:   cfg.MultiInputN,
		syncCount:     cfg.SyncCount,
		maxIterCount:  cfg.MaxIterCount,
		maxStackSize:  cfg.MaxStackSize,
		oversizeCache: cfg.OversizeCache,
		useCache:      cfg.UseCache,
	}, nil
}

// engineFlags is the 2-byte flags buffer. Work-items of all groups may set
// the same flag concurrently.
type engineFlags struct {
	bits [flagsN]atomic.Bool
}

func (f *engineFlags) set(idx int) { f.bits[idx].Store(true) }

func (f *engineFlags) bytes() [flagsN]byte {
	var out [flagsN]byte
	for i := range f.bits {
		if f.bits[i].Load() {
			out[i] = 1
		}
	}
	return out
}

// groupCache is the workgroup-local mirror of a text window, filled before
// the group's work-items start walking.
type groupCache struct {
	base int
	data []uint32
}

func newGroupCache(p kernelParams, text []uint32, groupID int) *groupCache {
	if !p.useCache {
		return nil
	}
	base := int(uint32(groupID*p.groupSize*p.multiInputN) & cacheMask)
	size := p.groupSize * p.oversizeCache
	if base >= len(text) {
		return &groupCache{base: base}
	}
	end := base + size
	if end > len(text) {
		end = len(text)
	}
	data := make([]uint32, end-base)
	copy(data, text[base:end])
	return &groupCache{base: base, data: data}
}

func (c *groupCache) read(text []uint32, pos int) uint32 {
	if c != nil && pos >= c.base && pos < c.base+len(c.data) {
		return c.data[pos-c.base]
	}
	return text[pos]
}

// automatonRun is the state shared by every work-item of one automaton
// dispatch: the uploaded graph and text, the per-position output buffer and
// the flags.
type automatonRun struct {
	p          kernelParams
	words      []uint32
	text       []uint32
	output     []uint32
	candidates []bool
	fl         *engineFlags
}

type frame struct {
	pos  int
	node uint32
}

// item is one work-item: a contiguous block of multiInputN start offsets,
// walked serially. Every syncCount iterations the item joins the group
// barrier so the group's memory accesses stay roughly in step despite
// divergent walks.
func (r *automatonRun) item(globalID int, bar *barrier, cache *groupCache) {
	defer bar.leave()
	ticks := 0
	tick := func() {
		ticks++
		if ticks%r.p.syncCount == 0 {
			bar.await()
		}
	}

	base := globalID * r.p.multiInputN
	for i := 0; i < r.p.multiInputN; i++ {
		s := base + i
		if s >= len(r.text) {
			return
		}
		if r.candidates != nil && !r.candidates[s] {
			r.output[s] = ResultFail
			continue
		}
		r.output[s] = r.walk(s, tick, cache)
	}
}

// walk attempts all nondeterministic paths from start offset s with a
// bounded stack and a bounded iteration budget. Returns s on the first
// accepting path, ResultFail otherwise.
func (r *automatonRun) walk(s int, tick func(), cache *groupCache) uint32 {
	stack := make([]frame, 1, r.p.maxStackSize)
	stack[0] = frame{pos: s, node: graph.IDEntry}

	iter := 0
	for len(stack) > 0 {
		if iter >= r.p.maxIterCount {
			r.fl.set(flagIterMax)
			return ResultFail
		}
		iter++
		tick()

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node == graph.IDOK {
			return uint32(s)
		}
		if f.node == graph.IDFail {
			continue
		}
		if f.pos >= len(r.text) {
			continue
		}

		c := cache.read(r.text, f.pos)
		nodeBase := r.words[f.node]
		m := r.words[nodeBase]
		entryBase := nodeBase + 1

		// Largest entry character <= c; the (c+1, FAIL) guards make any
		// out-of-range lookup dead-end via the guard's empty slot.
		found := false
		var slotBase uint32
		for e := uint32(0); e < m; e++ {
			eb := entryBase + e*(1+r.p.o)
			if r.words[eb] > c {
				break
			}
			slotBase = eb + 1
			found = true
		}
		if !found {
			continue
		}

		for k := uint32(0); k < r.p.o; k++ {
			id := r.words[slotBase+k]
			if id == graph.IDFail {
				// target ids are sorted with trailing zero padding
				break
			}
			if len(stack) >= r.p.maxStackSize {
				r.fl.set(flagStackFull)
				return ResultFail
			}
			stack = append(stack, frame{pos: f.pos + 1, node: id})
		}
	}
	return ResultFail
}

// kernelTransform writes 1 to scan[i] for matched positions, 0 otherwise.
func kernelTransform(output, scan []uint32, i int) {
	if output[i] == ResultFail {
		scan[i] = 0
	} else {
		scan[i] = 1
	}
}

// kernelScan is one Hillis-Steele wave of the inclusive prefix sum.
func kernelScan(src, dst []uint32, offset, i int) {
	v := src[i]
	if i >= offset {
		v += src[i-offset]
	}
	dst[i] = v
}

// kernelMove scatters matched positions to their dense rank.
func kernelMove(scan, output, compact []uint32, i int) {
	if output[i] != ResultFail {
		compact[scan[i]-1] = output[i]
	}
}
