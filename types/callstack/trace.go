package callstack

import (
	"fmt"
	"runtime"
)

const maxStackDepth = 16

// GetStackTrace returns a formatted stack trace, skipping the given number
// of frames plus this function itself
func GetStackTrace(skip int) []string {
	pc := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pc[:n])
	result := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		result = append(result, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return result
}
