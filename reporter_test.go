package tumorml

import (
	"bytes"
	"errors"
	"testing"
)

func TestReporter(t *testing.T) {
	tests := []struct {
		name       string
		verbose    bool
		report     func(r *Reporter)
		wantStdout string
		wantStderr string
		wantExit   int
	}{
		{
			name: "quiet success",
			report: func(r *Reporter) {
				r.SchemaCompiled("tumorml.xsd")
				r.Outcome(Outcome{Path: "a.xml", Kind: OutcomeSuccess})
			},
			wantExit: ExitOK,
		},
		{
			name:    "verbose success",
			verbose: true,
			report: func(r *Reporter) {
				r.SchemaCompiled("tumorml.xsd")
				r.Outcome(Outcome{Path: "a.xml", Kind: OutcomeSuccess})
			},
			wantStdout: "Compiled [tumorml.xsd] successfully\n" +
				"Validated: [a.xml] successfully against [TumorML 1.2 XML schema]\n",
			wantExit: ExitOK,
		},
		{
			name: "invalid document",
			report: func(r *Reporter) {
				r.Outcome(Outcome{Path: "b.xml", Kind: OutcomeInvalid, Detail: "error[E202]: Required element missing"})
			},
			wantStderr: "Error validating [b.xml] against [TumorML 1.2 XML schema]:\n\nerror[E202]: Required element missing\n",
			wantExit:   ExitFailure,
		},
		{
			name:    "unreadable document in verbose mode",
			verbose: true,
			report: func(r *Reporter) {
				r.Outcome(Outcome{Path: "c.xml", Kind: OutcomeUnreadable, Detail: "open c.xml: no such file or directory"})
				r.Outcome(Outcome{Path: "d.xml", Kind: OutcomeSuccess})
			},
			wantStdout: "Validated: [d.xml] successfully against [TumorML 1.2 XML schema]\n",
			wantStderr: "Error validating [c.xml] against [TumorML 1.2 XML schema]:\n\nopen c.xml: no such file or directory\n",
			wantExit:   ExitFailure,
		},
		{
			name:    "schema failure skips files",
			verbose: true,
			report: func(r *Reporter) {
				r.SchemaFailed(&LoadError{Name: "tumorml.xsd", Detail: "unexpected EOF", Err: errors.New("compile")})
				r.Outcome(Outcome{Path: "a.xml", Kind: OutcomeSkipped})
			},
			wantStderr: "Error compiling schema: tumorml.xsd:\n\nunexpected EOF\n",
			wantExit:   ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			r := NewReporter(&stdout, &stderr, "TumorML 1.2 XML schema", tt.verbose)
			tt.report(r)

			if got := stdout.String(); got != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", got, tt.wantStdout)
			}
			if got := stderr.String(); got != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", got, tt.wantStderr)
			}
			if got := r.ExitCode(); got != tt.wantExit {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantExit)
			}
			if r.Failed() != (tt.wantExit == ExitFailure) {
				t.Errorf("Failed() = %v with exit code %d", r.Failed(), tt.wantExit)
			}
		})
	}
}
