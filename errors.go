package tumorml

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrResourceLocation means the schema resource could not be found or
	// its name is not a valid resource path.
	ErrResourceLocation = errors.New("schema resource not found")
	// ErrSchemaSyntax means the schema resource was found but is not a
	// valid XML schema.
	ErrSchemaSyntax = errors.New("invalid schema")
	// ErrDocumentInvalid means a document broke one or more schema rules.
	ErrDocumentInvalid = errors.New("document is not valid")
	// ErrDocumentUnreadable means a document could not be opened, read or
	// parsed as XML.
	ErrDocumentUnreadable = errors.New("document could not be read")
	// ErrMalformedArguments means the command line or the config file could
	// not be understood.
	ErrMalformedArguments = errors.New("malformed arguments")
)

const (
	schemaResourceNotFoundCode = "SCHEMA_RESOURCE_NOT_FOUND"
	schemaSyntaxInvalidCode    = "SCHEMA_SYNTAX_INVALID"
	documentInvalidCode        = "DOCUMENT_INVALID"
	documentUnreadableCode     = "DOCUMENT_UNREADABLE"
	argumentsMalformedCode     = "ARGUMENTS_MALFORMED"
)

// DiagnosticError is returned by a Validator when a document was read but
// does not satisfy the schema. Each entry of Diagnostics is one formatted
// violation.
type DiagnosticError struct {
	Diagnostics []string
}

func (e *DiagnosticError) Error() string {
	return strings.Join(e.Diagnostics, "\n")
}

func (e *DiagnosticError) Unwrap() error { return ErrDocumentInvalid }

// wrapKind tags err with one of the sentinel kinds above. The go-errors value
// is built directly so an err that is already a go-errors value keeps its own
// category further down the chain instead of replacing ours.
func wrapKind(kind, err error, category goerrors.Category, code, message string) error {
	e := goerrors.New(message, category).WithTextCode(code)
	e.Source = &kindError{kind: kind, err: err}
	return e
}

// kindError pairs a sentinel kind with the error it classifies. Its text is
// the classified error's own.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// Detail renders err for people. Kinds and go-errors wrappers contribute
// their messages but not their categories or codes.
func Detail(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		err = ke.err
	}
	ge, ok := err.(*goerrors.Error)
	if !ok {
		return err.Error()
	}
	switch {
	case len(ge.ValidationErrors) > 0:
		fields := make([]string, 0, len(ge.ValidationErrors))
		for _, fe := range ge.ValidationErrors {
			fields = append(fields, fe.Error())
		}
		return ge.Message + ": " + strings.Join(fields, "; ")
	case ge.Source != nil:
		return ge.Message + ": " + Detail(ge.Source)
	}
	return ge.Message
}
