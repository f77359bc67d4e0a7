// Package oclerr defines the three disjoint error kinds shared by every
// oclgrep component: misuse, internal bugs, and violated invariants.
package oclerr

import (
	"fmt"
	"runtime"
)

// User reports misuse or an environmental problem: a malformed regex, an
// illegal multiplier, a non-UTF-8 locale, a missing device, an engine flag
// raised mid-run. It is reported to stderr and the process exits non-zero.
type User struct {
	Message string
}

func (e *User) Error() string { return e.Message }

// NewUser builds a User error with a formatted message.
func NewUser(format string, args ...any) *User {
	return &User{Message: fmt.Sprintf(format, args...)}
}

// Internal reports a kernel-build failure or an impossible device response.
// BuildLog, when non-empty, carries the per-device kernel build log and is
// appended to the rendered message.
type Internal struct {
	Message  string
	BuildLog []string
}

func (e *Internal) Error() string {
	s := "internal error, please report this as a bug: " + e.Message
	for _, line := range e.BuildLog {
		s += "\n" + line
	}
	return s
}

// NewInternal builds an Internal error with a formatted message.
func NewInternal(format string, args ...any) *Internal {
	return &Internal{Message: fmt.Sprintf(format, args...)}
}

// Sanity reports a violated invariant (outputSize > len(text), an empty
// chunk, ...). It carries the call site of the check that failed.
type Sanity struct {
	Message string
	File    string
	Line    int
	Func    string
}

func (e *Sanity) Error() string {
	return fmt.Sprintf("sanity check failed at %s:%d (%s): %s", e.File, e.Line, e.Func, e.Message)
}

// Assert raises a *Sanity error, captured at the caller's location, when ok
// is false. skip is the number of additional stack frames to skip beyond
// Assert itself (pass 0 from a direct caller).
func Assert(ok bool, skip int, format string, args ...any) error {
	if ok {
		return nil
	}
	pc, file, line, _ := runtime.Caller(1 + skip)
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return &Sanity{
		Message: fmt.Sprintf(format, args...),
		File:    file,
		Line:    line,
		Func:    name,
	}
}
