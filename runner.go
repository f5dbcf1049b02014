package tumorml

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

// OutcomeKind classifies the result of validating one file.
type OutcomeKind int

const (
	// OutcomeSuccess means the file is well-formed and satisfies the schema.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeSkipped means no schema was available, so nothing was checked.
	OutcomeSkipped
	// OutcomeInvalid means the file broke at least one schema rule.
	OutcomeInvalid
	// OutcomeUnreadable means the file could not be opened, read or parsed.
	OutcomeUnreadable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// Outcome is the result of validating one file.
type Outcome struct {
	Path string
	Kind OutcomeKind
	// Detail is the diagnostic text shown to the user for failed files.
	Detail string
	// Err matches ErrDocumentInvalid or ErrDocumentUnreadable for failed
	// files and is nil otherwise.
	Err error
}

// Failed reports whether the outcome counts as a failure.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeInvalid || o.Kind == OutcomeUnreadable
}

// Runner validates files against a compiled schema.
type Runner struct {
	// Jobs is the number of files validated at the same time. Values below
	// two validate one file after the other.
	Jobs int
	// Open opens a file for reading. Nil means os.Open.
	Open   func(path string) (io.ReadCloser, error)
	Logger *slog.Logger
}

// Run validates every path against schema and passes each Outcome to report
// in the order of paths. A nil schema yields OutcomeSkipped for every path
// without touching the file system. Failed files never stop the run; the
// only error Run returns is the context's.
func (r *Runner) Run(ctx context.Context, schema Schema, paths []string, report func(Outcome)) error {
	if r.Jobs < 2 || len(paths) < 2 {
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			report(r.validate(schema, path))
		}
		return nil
	}

	r.logger().Debug("validating in parallel", "jobs", r.Jobs, "files", len(paths))

	outcomes := make([]Outcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.validate(schema, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, o := range outcomes {
		report(o)
	}
	return nil
}

func (r *Runner) validate(schema Schema, path string) Outcome {
	if schema == nil {
		return Outcome{Path: path, Kind: OutcomeSkipped}
	}

	o := newOutcome(path, r.validateFile(schema, path))
	r.logger().Debug("validated file", "path", path, "outcome", o.Kind)
	return o
}

func (r *Runner) validateFile(schema Schema, path string) error {
	f, err := r.open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return schema.NewValidator().Validate(path, f)
}

func newOutcome(path string, err error) Outcome {
	if err == nil {
		return Outcome{Path: path, Kind: OutcomeSuccess}
	}

	o := Outcome{
		Path:   path,
		Kind:   OutcomeUnreadable,
		Detail: err.Error(),
		Err:    wrapDocumentError(path, err),
	}
	var diag *DiagnosticError
	if errors.As(err, &diag) {
		o.Kind = OutcomeInvalid
	}
	return o
}

func (r *Runner) open(path string) (io.ReadCloser, error) {
	if r.Open != nil {
		return r.Open(path)
	}
	return os.Open(path)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
