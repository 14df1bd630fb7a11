package helpers

import (
	"path"
	"runtime"
	"strconv"
	"strings"
)

const maxStackDepth = 64

// Returns the call stack of the caller with one "function (file:line)" line
// per frame. This is meant to be called from a deferred "recover()" so the
// frames of the panicking code are still on the stack. Frames inside the Go
// runtime are left out since they're the same for every panic.
func PrettyPrintedStack() string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	sb := strings.Builder{}
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}

			// "github.com/esmlink/esmlink/internal/linker.(*linkerContext).generateModule"
			// becomes "linker.(*linkerContext).generateModule"
			name := frame.Function
			if slash := strings.LastIndexByte(name, '/'); slash != -1 {
				name = name[slash+1:]
			}
			sb.WriteString(name)
			sb.WriteString(" (")
			sb.WriteString(path.Join(path.Base(path.Dir(frame.File)), path.Base(frame.File)))
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(frame.Line))
			sb.WriteString(")")
		}
		if !more {
			break
		}
	}
	return sb.String()
}
