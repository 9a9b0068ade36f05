// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
)

// Request is one program run: a source file in a language, fed a single stdin payload.
type Request struct {
	Language string
	Source   string
	Stdin    string
}

// Result holds what the program printed. A non-empty Stderr means the run failed.
type Result struct {
	Stdout string
	Stderr string
}

// Executor runs untrusted code in a sandbox. Implementations return an error only when the
// sandbox itself could not produce a result (network failure, container crash); a program
// that compiles badly or panics is reported through Result.Stderr.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

var ErrUnsupportedLanguage = errors.New("unsupported language")
