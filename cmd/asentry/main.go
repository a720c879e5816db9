// SPDX-License-Identifier: MIT

// Command asentry monitors the JPL Sentry impact-risk table and packages the
// display firmware for release.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asentry/asentry/internal/validate"
)

// exitCodeError carries a process exit code without an error message.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitUpdates is returned by `asentry check` when updates were found.
const exitUpdates = 3

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	var verr validate.ValidationError
	if errors.As(err, &verr) {
		_, _ = fmt.Fprintln(stderr, "Error: validation failed")
		for _, f := range verr.Errors() {
			_, _ = fmt.Fprintf(stderr, "  %s: %s\n", f.Field, f.Message)
		}
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
