package main

import (
	"errors"

	"github.com/gnana997/esmpack/pkg/config"
	"github.com/gnana997/esmpack/pkg/npm"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitNotFound     = 3
	ExitUsageError   = 64
)

// ExitError carries the process exit code for an error. Printed is set
// when the command already reported the error itself.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode classifies the fatal errors a build can end with.
func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrStaticWithoutBaseURL),
		errors.Is(err, config.ErrBadExtension),
		errors.Is(err, config.ErrBadResolution),
		errors.Is(err, config.ErrNoConfigFile),
		errors.Is(err, config.ErrOutDirIsWorkspace):
		return ExitConfigError
	case errors.Is(err, npm.ErrNoLookupDir):
		return ExitNotFound
	}
	return ExitGeneralError
}

// fatal wraps err with its exit code. nil stays nil.
func fatal(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: exitCode(err), Err: err}
}
