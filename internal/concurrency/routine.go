package concurrency

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// SafeGo runs fn in a goroutine; a panic is logged and handed to onPanic.
func SafeGo(fn func(), onPanic func(interface{})) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic recovered", "panic", r, "stack", string(debug.Stack()))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

// PanicError carries a recovered panic value as an error.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
