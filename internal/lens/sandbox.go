package lens

import (
	"errors"
	"time"

	"github.com/robertkrimen/otto"
)

// DefaultTimeout bounds the evaluation of a lens script body
// (runWithTimeout's interrupt channel). The enhance() and explanation()
// calls that Runtime.Apply makes afterwards run without a time bound, and
// otto has no native memory ceiling, so no memory bound is enforced.
const DefaultTimeout = 2 * time.Second

var errHalt = errors.New("lens: execution halted")

// sandboxVM builds a fresh otto VM with only the four bound free variables
// {epi, ips, pv, html} and an allow-listed console sink reachable from
// script code — no filesystem, network, or process environment access is
// exposed, since otto never wires those in unless a host explicitly sets
// them (spec.md §9's "controlled script interpreter").
func sandboxVM(epiVal, ipsVal, pvVal any, html string, sink ConsoleSink) (*otto.Otto, error) {
	vm := otto.New()
	if err := vm.Set("epi", epiVal); err != nil {
		return nil, err
	}
	if err := vm.Set("ips", ipsVal); err != nil {
		return nil, err
	}
	if err := vm.Set("pv", pvVal); err != nil {
		return nil, err
	}
	if err := vm.Set("html", html); err != nil {
		return nil, err
	}
	if err := vm.Set("console", consoleObject(sink)); err != nil {
		return nil, err
	}
	return vm, nil
}

// runWithTimeout runs script on vm and halts it via otto's documented
// Interrupt-channel pattern if it has not returned within timeout.
func runWithTimeout(vm *otto.Otto, script string, timeout time.Duration) (result otto.Value, err error) {
	vm.Interrupt = make(chan func(), 1)

	defer func() {
		if caught := recover(); caught != nil {
			if caught == errHalt {
				err = errors.New("lens: execution timed out")
				return
			}
			panic(caught)
		}
	}()

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt <- func() {
			panic(errHalt)
		}
	})
	defer timer.Stop()

	return vm.Run(script)
}

// ConsoleSink receives console.{debug,info,warn,error} calls made from
// inside a lens script. Level filtering happens at the sink, matching
// spec.md §4.7's "capture of console and logging is delegated to
// configurable sinks with level filtering".
type ConsoleSink interface {
	Log(level, lensID, message string)
}

func consoleObject(sink ConsoleSink) map[string]any {
	logFn := func(level string) func(otto.FunctionCall) otto.Value {
		return func(call otto.FunctionCall) otto.Value {
			if sink != nil {
				msg := ""
				for i, arg := range call.ArgumentList {
					if i > 0 {
						msg += " "
					}
					msg += arg.String()
				}
				sink.Log(level, "", msg)
			}
			return otto.UndefinedValue()
		}
	}
	return map[string]any{
		"debug": logFn("debug"),
		"log":   logFn("info"),
		"info":  logFn("info"),
		"warn":  logFn("warn"),
		"error": logFn("error"),
	}
}
