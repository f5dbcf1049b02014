package tumorml

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync/atomic"
)

type fakeEngine struct {
	schema Schema
	err    error
	calls  int
}

func (e *fakeEngine) Compile(fsys fs.FS, name string) (Schema, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.schema, nil
}

// contentSchema decides validity from the document text: "valid" passes,
// "invalid" yields a diagnostic and anything else is treated as malformed.
type contentSchema struct {
	validators atomic.Int32
}

func (s *contentSchema) NewValidator() Validator {
	s.validators.Add(1)
	return &contentValidator{}
}

type contentValidator struct {
	used bool
}

func (v *contentValidator) Validate(name string, r io.Reader) error {
	if v.used {
		return errors.New("validator reused")
	}
	v.used = true

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	switch strings.TrimSpace(string(data)) {
	case "valid":
		return nil
	case "invalid":
		return &DiagnosticError{Diagnostics: []string{"error[E202]: Required element missing\n --> " + name + ":1:1"}}
	default:
		return errors.New(name + " is not well-formed XML")
	}
}
