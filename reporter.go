package tumorml

import (
	"fmt"
	"io"
)

// Reporter prints compile and validation results and remembers whether any
// failure was seen. Success lines go to Stdout and only when Verbose is set;
// failures always go to Stderr.
type Reporter struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Verbose  bool
	Messages Messages
	// Label names the schema in per-file messages.
	Label string

	failed bool
}

// NewReporter returns a Reporter using DefaultMessages.
func NewReporter(stdout, stderr io.Writer, label string, verbose bool) *Reporter {
	return &Reporter{
		Stdout:   stdout,
		Stderr:   stderr,
		Verbose:  verbose,
		Messages: DefaultMessages,
		Label:    label,
	}
}

// SchemaCompiled reports a successful compilation of the named schema.
func (r *Reporter) SchemaCompiled(name string) {
	if r.Verbose {
		fmt.Fprintf(r.Stdout, r.Messages.SchemaCompiled+"\n", name)
	}
}

// SchemaFailed records a schema compilation failure.
func (r *Reporter) SchemaFailed(err *LoadError) {
	r.failed = true
	r.failure(fmt.Sprintf(r.Messages.SchemaFailed, err.Name), err.Detail)
}

// Outcome reports the result of one file.
func (r *Reporter) Outcome(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		if r.Verbose {
			fmt.Fprintf(r.Stdout, r.Messages.DocumentValid+"\n", o.Path, r.Label)
		}
	case OutcomeInvalid, OutcomeUnreadable:
		r.failed = true
		r.failure(fmt.Sprintf(r.Messages.DocumentFailed, o.Path, r.Label), o.Detail)
	}
}

func (r *Reporter) failure(header, detail string) {
	fmt.Fprintf(r.Stderr, "%s\n\n%s\n", header, detail)
}

// Failed reports whether any failure has been recorded.
func (r *Reporter) Failed() bool { return r.failed }

// ExitCode maps the recorded results to a process exit code.
func (r *Reporter) ExitCode() int {
	if r.failed {
		return ExitFailure
	}
	return ExitOK
}
