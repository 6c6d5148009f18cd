// TinyOS structured kernel logging
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package klog provides a leveled logger for the kernel console. It writes
// through whatever Writer the board layer installs (normally the
// MiniUART), never allocating in the hot path: records are built from
// pre-formatted fields, not fmt.Sprintf, so that fault handlers can log
// without risking a further fault from the allocator.
package klog

import (
	"sync"
)

// Level orders log records by severity.
type Level int

const (
	Debug Level = iota
	Notice
	Warn
	Panic
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Notice:
		return "NOTICE"
	case Warn:
		return "WARN"
	case Panic:
		return "PANIC"
	default:
		return "?"
	}
}

// Writer is the minimal console sink a logger writes bytes to. The UART
// drivers in soc/bcm2711 implement this without modification.
type Writer interface {
	Tx(c byte)
}

var (
	mu     sync.Mutex
	sink   Writer
	minLvl = Debug
)

// SetOutput installs the console the logger writes to. Called once during
// board bring-up; nil disables output (used by host-side tests).
func SetOutput(w Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = w
}

// SetLevel sets the minimum level that reaches the console.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLvl = l
}

// Record is a single structured log line: a tag plus a fixed set of
// already-formatted fields, avoiding allocation in callers that log from
// inside a fault path.
type Record struct {
	Level  Level
	Module string
	Msg    string
}

// Emit writes a record to the installed console, if any, and is a no-op
// otherwise (e.g. before SetOutput runs, or under test).
func Emit(r Record) {
	mu.Lock()
	defer mu.Unlock()

	if sink == nil || r.Level < minLvl {
		return
	}

	writeString(sink, "[")
	writeString(sink, r.Level.String())
	writeString(sink, "] ")
	writeString(sink, r.Module)
	writeString(sink, ": ")
	writeString(sink, r.Msg)
	sink.Tx('\n')
}

func writeString(w Writer, s string) {
	for i := 0; i < len(s); i++ {
		w.Tx(s[i])
	}
}

func D(module, msg string) { Emit(Record{Level: Debug, Module: module, Msg: msg}) }
func N(module, msg string) { Emit(Record{Level: Notice, Module: module, Msg: msg}) }
func W(module, msg string) { Emit(Record{Level: Warn, Module: module, Msg: msg}) }
func P(module, msg string) { Emit(Record{Level: Panic, Module: module, Msg: msg}) }
