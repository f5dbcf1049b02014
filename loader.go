package tumorml

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"
)

// LoadError is returned by Load when the schema could not be compiled.
// Detail is the engine diagnostic printed to the user.
type LoadError struct {
	Name   string
	Detail string
	Err    error
}

func (e *LoadError) Error() string { return e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// Load compiles the schema resource name from fsys with engine. The
// returned error is a *LoadError matching either ErrResourceLocation or
// ErrSchemaSyntax.
func Load(engine Engine, fsys fs.FS, name string, logger *slog.Logger) (Schema, error) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	s, err := engine.Compile(fsys, name)
	if err != nil {
		wrapped := wrapSchemaError(name, err)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			wrapped = wrapResourceError(name, err)
		}
		logger.Debug("schema compilation failed", "schema", name, "error", err)
		return nil, &LoadError{Name: name, Detail: err.Error(), Err: wrapped}
	}

	logger.Debug("schema compiled", "schema", name, "elapsed", time.Since(start))
	return s, nil
}
