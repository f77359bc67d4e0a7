package device

import (
	"encoding/binary"
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/crepererum/oclgrep/internal/oclerr"
)

// Device describes the simulated compute device the engine dispatches to.
// The fields mirror the OpenCL device properties the host driver depends
// on: endianness, the constant-memory budget for the automaton buffer, and
// a preferred workgroup width derived from the host's SIMD capabilities.
type Device struct {
	Name               string
	LittleEndian       bool
	MaxConstBufferSize int
	PreferredGroupSize int
	ComputeUnits       int
}

// ProbeHost enumerates the single in-process device. It fails with a user
// error when the host violates the engine's preconditions (a big-endian
// host cannot consume the little-endian serialized graph).
func ProbeHost() (*Device, error) {
	dev := &Device{
		Name:               hostName(),
		LittleEndian:       hostIsLittleEndian(),
		MaxConstBufferSize: 64 * 1024,
		PreferredGroupSize: hostGroupSize(),
		ComputeUnits:       runtime.NumCPU(),
	}
	if !dev.LittleEndian {
		return nil, oclerr.NewUser("not all selected devices are little endian!")
	}
	return dev, nil
}

func hostIsLittleEndian() bool {
	return binary.NativeEndian.Uint32([]byte{0x01, 0x00, 0x00, 0x00}) == 1
}

// hostGroupSize picks the simulated workgroup width from the host's widest
// vector unit, the same gate the SIMD fast paths in the matching ecosystem
// key on.
func hostGroupSize() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 128
	case cpu.X86.HasAVX2, cpu.ARM64.HasASIMD:
		return 64
	default:
		return 32
	}
}

func hostName() string {
	switch {
	case cpu.X86.HasAVX512F:
		return "host-cpu (avx512)"
	case cpu.X86.HasAVX2:
		return "host-cpu (avx2)"
	case cpu.X86.HasSSSE3:
		return "host-cpu (ssse3)"
	case cpu.ARM64.HasASIMD:
		return "host-cpu (asimd)"
	default:
		return "host-cpu"
	}
}
