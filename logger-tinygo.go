//go:build tinygo

package rf24

import (
	"machine"
)

// zap does not build on TinyGo, log straight to the serial console.
func init() {
	globalLogger = NewLineLogger(machine.Serial, false)
}
