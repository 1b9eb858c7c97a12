//go:build griddebug

package grid

import "fmt"

// assertf panics when cond is false. Enabled with the griddebug build
// tag; the failures it catches indicate registry misuse by a caller.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("grid: " + fmt.Sprintf(format, args...))
	}
}
