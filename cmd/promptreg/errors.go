package main

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitConfigError  = 2 // invalid config, suite or flags
	ExitTestsFailed  = 3
)

// exitError carries a process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: ExitConfigError, err: err}
}

func configErrorf(format string, args ...any) error {
	return configError(fmt.Errorf(format, args...))
}

func testsFailed(n int) error {
	return &exitError{code: ExitTestsFailed, err: fmt.Errorf("%d test(s) failed", n)}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitRuntimeError
}
