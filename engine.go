package tumorml

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/agentflare-ai/go-xmldom"

	"github.com/agentflare-ai/go-tumorml/internal/xsd"
)

// Engine compiles schema resources.
type Engine interface {
	// Compile compiles the schema named name inside fsys. Errors matching
	// fs.ErrNotExist or fs.ErrInvalid mean the resource could not be
	// located; every other error means it is not a usable schema.
	Compile(fsys fs.FS, name string) (Schema, error)
}

// Schema is a compiled schema. It is never modified after compilation and
// may be shared between goroutines.
type Schema interface {
	NewValidator() Validator
}

// Validator checks a single document. Validators are not safe for
// concurrent use and are not reused across documents.
type Validator interface {
	// Validate returns nil when the document read from r satisfies the
	// schema and a *DiagnosticError when it does not. Any other error
	// means the document could not be read or is not well-formed XML.
	Validate(name string, r io.Reader) error
}

// XSDEngine is the Engine backed by the internal XML Schema implementation.
type XSDEngine struct {
	// Color enables ANSI colors in diagnostics.
	Color bool
	// ContextLines is passed through to the diagnostic formatter.
	ContextLines int
	Logger       *slog.Logger
}

// Compile loads name and every document it includes or imports from fsys.
func (e *XSDEngine) Compile(fsys fs.FS, name string) (Schema, error) {
	loader := xsd.NewSchemaLoader(fsys)
	loader.Logger = e.Logger
	s, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	return &xsdSchema{schema: s, engine: e}, nil
}

type xsdSchema struct {
	schema *xsd.Schema
	engine *XSDEngine
}

func (s *xsdSchema) NewValidator() Validator {
	return &xsdValidator{
		validator: xsd.NewValidator(s.schema),
		formatter: xsd.ErrorFormatter{
			Color:        s.engine.Color,
			ContextLines: s.engine.ContextLines,
		},
	}
}

type xsdValidator struct {
	validator *xsd.Validator
	formatter xsd.ErrorFormatter
}

func (v *xsdValidator) Validate(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	doc, err := xmldom.NewDecoderFromBytes(data).Decode()
	if err != nil {
		return fmt.Errorf("%s is not well-formed XML: %w", name, err)
	}

	violations := v.validator.Validate(doc)
	if len(violations) == 0 {
		return nil
	}

	source := string(data)
	diagnostics := xsd.NewDiagnosticConverter(name, source).Convert(violations)
	formatted := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		formatted = append(formatted, strings.TrimRight(v.formatter.Format(d, source), "\n"))
	}
	return &DiagnosticError{Diagnostics: formatted}
}
