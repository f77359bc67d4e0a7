package device

import (
	"sync"
	"time"

	"github.com/crepererum/oclgrep/internal/oclerr"
	"github.com/crepererum/oclgrep/internal/serialize"
)

// Engine owns the simulated device and the tunables shared by every runner.
// It is the analogue of a context plus command queue: single-threaded on
// the host side, all kernel dispatches funnel through it in order.
type Engine struct {
	Dev *Device
	cfg Config
}

// NewEngine validates the configuration and probes the host device.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev, err := ProbeHost()
	if err != nil {
		return nil, err
	}
	return &Engine{Dev: dev, cfg: cfg}, nil
}

// Config returns the engine's tunables.
func (e *Engine) Config() Config { return e.cfg }

// Runner binds one serialized graph to the engine's device for any number
// of runs over chunks of up to maxChunkSize characters. The graph buffer is
// uploaded once at construction and shared read-only by all runs.
type Runner struct {
	eng          *Engine
	buf          *serialize.Buffer
	words        []uint32
	maxChunkSize int

	uploadAutomaton time.Duration
	lastProfile     *Profile
}

// NewRunner uploads the serialized graph. The graph must fit the device's
// constant-memory budget.
func (e *Engine) NewRunner(buf *serialize.Buffer, maxChunkSize int) (*Runner, error) {
	if err := oclerr.Assert(maxChunkSize > 0, 0, "maxChunkSize must be positive"); err != nil {
		return nil, err
	}
	if buf.Size() > e.Dev.MaxConstBufferSize {
		return nil, oclerr.NewUser("compiled automaton is too large for the compute device!")
	}

	t0 := time.Now()
	words := append([]uint32(nil), buf.Words...)
	upload := time.Since(t0)

	return &Runner{
		eng:             e,
		buf:             buf,
		words:           words,
		maxChunkSize:    maxChunkSize,
		uploadAutomaton: upload,
	}, nil
}

// UploadTime reports how long the one-time graph upload took.
func (r *Runner) UploadTime() time.Duration { return r.uploadAutomaton }

// LastProfile returns the timing profile of the most recent Run, or nil
// before the first one.
func (r *Runner) LastProfile() *Profile { return r.lastProfile }

// Run matches the graph against chunk from every start offset and returns
// the ascending list of matching offsets. candidates, when non-nil, marks
// the offsets the automaton still has to try (len(candidates) ==
// len(chunk)); offsets outside the mask fail without touching the device.
//
// The kernel sequence is automaton -> transform -> log2(len) scan waves ->
// move, with the host blocking between phases. A raised engine flag
// invalidates the whole run.
func (r *Runner) Run(chunk []rune, candidates []bool) ([]uint32, error) {
	if err := oclerr.Assert(len(chunk) > 0, 0, "chunk must contain content"); err != nil {
		return nil, err
	}
	if err := oclerr.Assert(len(chunk) <= r.maxChunkSize, 0, "chunk is too big for this config"); err != nil {
		return nil, err
	}
	if candidates != nil {
		if err := oclerr.Assert(len(candidates) == len(chunk), 0, "candidate mask must cover the chunk"); err != nil {
			return nil, err
		}
	}

	p, err := buildKernelParams(r.eng.cfg, r.buf)
	if err != nil {
		return nil, err
	}

	prof := &Profile{}

	t := time.Now()
	text := make([]uint32, len(chunk))
	for i, c := range chunk {
		text[i] = uint32(c)
	}
	prof.UploadText = time.Since(t)

	t = time.Now()
	fl := &engineFlags{}
	prof.UploadFlags = time.Since(t)

	output := make([]uint32, len(chunk))

	t = time.Now()
	r.dispatchAutomaton(p, text, output, candidates, fl)
	prof.KernelAutomaton = time.Since(t)

	scan0 := make([]uint32, len(chunk))
	scan1 := make([]uint32, len(chunk))

	t = time.Now()
	r.parallelFor(p, len(chunk), func(i int) { kernelTransform(output, scan0, i) })
	prof.KernelTransform = time.Since(t)

	for offset := 1; offset < len(chunk); offset <<= 1 {
		t = time.Now()
		off := offset
		src, dst := scan0, scan1
		r.parallelFor(p, len(chunk), func(i int) { kernelScan(src, dst, off, i) })
		scan0, scan1 = scan1, scan0
		prof.KernelScan = append(prof.KernelScan, time.Since(t))
	}

	compact := make([]uint32, len(chunk))
	t = time.Now()
	r.parallelFor(p, len(chunk), func(i int) { kernelMove(scan0, output, compact, i) })
	prof.KernelMove = time.Since(t)

	t = time.Now()
	outputSize := scan0[len(chunk)-1]
	prof.DownloadOutputSize = time.Since(t)
	if err := oclerr.Assert(int(outputSize) <= len(chunk), 0, "outputSize must be at max the chunk size"); err != nil {
		return nil, err
	}

	result := make([]uint32, outputSize)
	if outputSize > 0 {
		t = time.Now()
		copy(result, compact[:outputSize])
		prof.DownloadOutput = time.Since(t)
		prof.HasDownloadOutput = true
	}

	t = time.Now()
	flagBytes := fl.bytes()
	prof.DownloadFlags = time.Since(t)

	r.lastProfile = prof

	if flagBytes[flagStackFull] != 0 {
		return nil, oclerr.NewUser("Automaton engine error: task stack was full!")
	}
	if flagBytes[flagIterMax] != 0 {
		return nil, oclerr.NewUser("Automaton engine error: reached maximum iteration count!")
	}

	return result, nil
}

// dispatchAutomaton launches the automaton kernel: one workgroup of
// groupSize work-items per slice of groupSize*multiInputN start offsets,
// each group cooperating through its own barrier.
func (r *Runner) dispatchAutomaton(p kernelParams, text, output []uint32, candidates []bool, fl *engineFlags) {
	items := (len(text) + p.multiInputN - 1) / p.multiInputN
	items = adjustGlobalSize(items, p.groupSize)
	groups := items / p.groupSize

	run := &automatonRun{p: p, words: r.words, text: text, output: output, candidates: candidates, fl: fl}

	var wg sync.WaitGroup
	for g := 0; g < groups; g++ {
		bar := newBarrier(p.groupSize)
		cache := newGroupCache(p, text, g)
		for l := 0; l < p.groupSize; l++ {
			gid := g*p.groupSize + l
			wg.Add(1)
			go func() {
				defer wg.Done()
				run.item(gid, bar, cache)
			}()
		}
	}
	wg.Wait()
}

// parallelFor dispatches an embarrassingly parallel collector kernel over n
// indices, one goroutine per workgroup. The Wait is the phase boundary.
func (r *Runner) parallelFor(p kernelParams, n int, fn func(i int)) {
	total := adjustGlobalSize(n, p.groupSize)
	groups := total / p.groupSize

	var wg sync.WaitGroup
	for g := 0; g < groups; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for l := 0; l < p.groupSize; l++ {
				if i := g*p.groupSize + l; i < n {
					fn(i)
				}
			}
		}(g)
	}
	wg.Wait()
}

func adjustGlobalSize(globalSize, localSize int) int {
	if globalSize%localSize != 0 {
		globalSize += localSize - globalSize%localSize
	}
	return globalSize
}
