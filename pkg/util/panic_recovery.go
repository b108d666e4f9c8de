package util

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// PanicHandler provides centralized panic recovery and logging
type PanicHandler struct {
	logger *logrus.Logger
}

// PanicError is returned by Guard when the guarded function panicked
type PanicError struct {
	Component string
	Value     interface{}
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Component, e.Value)
}

// NewPanicHandler creates a new panic handler
func NewPanicHandler(logger *logrus.Logger) *PanicHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &PanicHandler{logger: logger}
}

func callerOf(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fmt.Sprintf("%s:%d %s", file, line, fn.Name())
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (ph *PanicHandler) logPanic(component string, value interface{}, stack []byte) {
	ph.logger.WithFields(logrus.Fields{
		"component":   component,
		"panic_value": value,
		"caller":      callerOf(4),
		"stack_trace": string(stack),
	}).Error("Panic recovered")
}

// Recover recovers from panics and logs them. It must be deferred directly.
func (ph *PanicHandler) Recover(component string) {
	if r := recover(); r != nil {
		ph.logPanic(component, r, debug.Stack())
	}
}

// RecoverWithCallback recovers from panics and passes the panic value to callback
func (ph *PanicHandler) RecoverWithCallback(component string, callback func(interface{})) {
	r := recover()
	if r == nil {
		return
	}
	ph.logPanic(component, r, debug.Stack())

	if callback == nil {
		return
	}
	defer func() {
		if cbPanic := recover(); cbPanic != nil {
			ph.logger.WithFields(logrus.Fields{
				"component":      component,
				"callback_panic": cbPanic,
			}).Error("Panic in panic recovery callback")
		}
	}()
	callback(r)
}

// Guard runs fn and converts a panic into a *PanicError
func (ph *PanicHandler) Guard(component string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			ph.logPanic(component, r, stack)
			err = &PanicError{Component: component, Value: r, Stack: stack}
		}
	}()
	return fn()
}

// WrapGoroutine wraps a goroutine function with panic recovery
func (ph *PanicHandler) WrapGoroutine(component string, fn func()) func() {
	return func() {
		defer ph.Recover(component)
		fn()
	}
}

// SafeGo starts a goroutine with panic recovery
func (ph *PanicHandler) SafeGo(component string, fn func()) {
	go ph.WrapGoroutine(component, fn)()
}

var globalPanicHandler *PanicHandler

// SetGlobalPanicHandler sets the global panic handler
func SetGlobalPanicHandler(logger *logrus.Logger) {
	globalPanicHandler = NewPanicHandler(logger)
}

// GetGlobalPanicHandler returns the global panic handler, creating a default one if unset
func GetGlobalPanicHandler() *PanicHandler {
	if globalPanicHandler == nil {
		globalPanicHandler = NewPanicHandler(nil)
	}
	return globalPanicHandler
}

// SafeGoGlobal starts a goroutine with panic recovery using the global handler
func SafeGoGlobal(component string, fn func()) {
	GetGlobalPanicHandler().SafeGo(component, fn)
}
