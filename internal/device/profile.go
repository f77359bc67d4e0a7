package device

import (
	"fmt"
	"strings"
	"time"
)

// Profile records the wall time of every phase of one Run, in the order the
// phases hit the queue.
type Profile struct {
	UploadText         time.Duration
	UploadFlags        time.Duration
	KernelAutomaton    time.Duration
	KernelTransform    time.Duration
	KernelScan         []time.Duration
	KernelMove         time.Duration
	DownloadOutputSize time.Duration
	DownloadOutput     time.Duration
	DownloadFlags      time.Duration

	// HasDownloadOutput is false when the run produced zero matches and
	// the output download never fired.
	HasDownloadOutput bool
}

func fmtMS(d time.Duration) string {
	return fmt.Sprintf("%gms", float64(d.Nanoseconds())/1e6)
}

// String renders the per-phase timing banner.
func (p *Profile) String() string {
	var b strings.Builder
	b.WriteString("Profiling data:\n")
	fmt.Fprintf(&b, "  uploadText         = %s\n", fmtMS(p.UploadText))
	fmt.Fprintf(&b, "  uploadFlags        = %s\n", fmtMS(p.UploadFlags))
	fmt.Fprintf(&b, "  kernelAutomaton    = %s\n", fmtMS(p.KernelAutomaton))
	fmt.Fprintf(&b, "  kernelTransform    = %s\n", fmtMS(p.KernelTransform))
	b.WriteString("  kernelScan         =\n")
	var sum time.Duration
	for _, wave := range p.KernelScan {
		sum += wave
		fmt.Fprintf(&b, "    %s\n", fmtMS(wave))
	}
	b.WriteString("    ====\n")
	fmt.Fprintf(&b, "    %s\n", fmtMS(sum))
	fmt.Fprintf(&b, "  kernelMove         = %s\n", fmtMS(p.KernelMove))
	fmt.Fprintf(&b, "  downloadOutputSize = %s\n", fmtMS(p.DownloadOutputSize))
	if p.HasDownloadOutput {
		fmt.Fprintf(&b, "  downloadOutput     = %s\n", fmtMS(p.DownloadOutput))
	}
	fmt.Fprintf(&b, "  downloadFlags      = %s", fmtMS(p.DownloadFlags))
	return b.String()
}
