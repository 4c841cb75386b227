// SPDX-License-Identifier: Apache-2.0

// Package logging provides the structured Logger used throughout the
// engine, generalized from the teacher's pterm-backed migration-operation
// logger to script/guard/reversal events.
package logging

import "github.com/pterm/pterm"

// Logger is the structured logging surface used by the applier and CLI.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Success(msg string, args ...interface{})
}

// PtermLogger implements Logger on top of pterm's default loggers.
type PtermLogger struct{}

func (PtermLogger) Info(msg string, args ...interface{}) {
	pterm.Info.Printfln(msg, args...)
}

func (PtermLogger) Warn(msg string, args ...interface{}) {
	pterm.Warning.Printfln(msg, args...)
}

func (PtermLogger) Error(msg string, args ...interface{}) {
	pterm.Error.Printfln(msg, args...)
}

func (PtermLogger) Success(msg string, args ...interface{}) {
	pterm.Success.Printfln(msg, args...)
}

// noopLogger discards everything; used in tests.
type noopLogger struct{}

func (noopLogger) Info(msg string, args ...interface{})    {}
func (noopLogger) Warn(msg string, args ...interface{})    {}
func (noopLogger) Error(msg string, args ...interface{})   {}
func (noopLogger) Success(msg string, args ...interface{}) {}

// NewNoopLogger returns a Logger that discards everything, for tests.
func NewNoopLogger() Logger { return noopLogger{} }
