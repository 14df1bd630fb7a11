// Package exitcode maps errors returned by CLI commands to process exit
// codes. Commands wrap their errors with a code and main turns the final
// error back into that code.
package exitcode

import (
	"errors"
	"os"

	"github.com/spf13/pflag"
)

const (
	OK = 0

	// The input was rejected, e.g. a malformed snapshot or settings file
	Failure = 1

	Usage = 2

	// Code generation found a broken invariant in its input. This points at
	// a bug in whatever produced the snapshot rather than at the user.
	Internal = 3
)

// Coder is an interface to control what value Get returns.
type Coder interface {
	error
	ExitCode() int
}

// Get gets the exit code associated with an error. Cases:
//
//	nil => OK
//	errors implementing Coder => value returned by ExitCode
//	pflag.ErrHelp => Usage
//	all other errors => Failure
func Get(err error) int {
	if err == nil {
		return OK
	}

	if coder := Coder(nil); errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if errors.Is(err, pflag.ErrHelp) {
		return Usage
	}

	return Failure
}

// Set wraps an error in a Coder, setting its error code.
func Set(err error, code int) error {
	if err == nil {
		return nil
	}
	return coder{err, code}
}

var _ Coder = coder{}

type coder struct {
	error
	int
}

func (co coder) ExitCode() int {
	return co.int
}

func (co coder) Unwrap() error {
	return co.error
}

// Exit calls os.Exit with the exit code associated with err.
func Exit(err error) {
	os.Exit(Get(err))
}
