package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePath = "../../testdata/egfr-erk_pathway.xml"

const schemaLabel = "TumorML 1.2 XML schema"

const missingModel = `<?xml version="1.0" encoding="UTF-8"?>
<tumorml xmlns="http://www.tumorml.org/1.2" version="1.2">
  <metadata>
    <title>Incomplete model</title>
    <authors>
      <author>
        <name>A. Author</name>
      </author>
    </authors>
    <created>2014-03-12</created>
  </metadata>
</tumorml>
`

func execute(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHelp(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.xml")

	for _, args := range [][]string{
		{"-h"},
		{"--help"},
		{missing, "-h"},
		{"-v", "--help", missing},
		{"--config", filepath.Join(dir, "missing.yaml"), "-h"},
	} {
		stdout, stderr, code := execute(t, args...)
		if code != 0 {
			t.Errorf("%v: exit code = %d, want 0", args, code)
		}
		if !strings.Contains(stdout, "Provide a file to check agains the TumorML schema") {
			t.Errorf("%v: help text missing from stdout:\n%s", args, stdout)
		}
		if !strings.Contains(stdout, "tumorml-validate testdata/egfr-erk_pathway.xml -v") {
			t.Errorf("%v: example invocation missing from stdout:\n%s", args, stdout)
		}
		if strings.Contains(stdout, "Compiled") || stderr != "" {
			t.Errorf("%v: help did more than print usage:\nstdout: %s\nstderr: %s", args, stdout, stderr)
		}
	}
}

func TestNoFiles(t *testing.T) {
	stdout, stderr, code := execute(t)
	if code != 0 || stdout != "" || stderr != "" {
		t.Errorf("quiet run: code=%d stdout=%q stderr=%q", code, stdout, stderr)
	}

	stdout, stderr, code = execute(t, "-v")
	if code != 0 {
		t.Errorf("verbose run: exit code = %d, want 0", code)
	}
	if stdout != "Compiled [tumorml.xsd] successfully\n" {
		t.Errorf("verbose run: stdout = %q", stdout)
	}
	if stderr != "" {
		t.Errorf("verbose run: stderr = %q", stderr)
	}
}

func TestValidFile(t *testing.T) {
	stdout, stderr, code := execute(t, samplePath, "-v")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; stderr:\n%s", code, stderr)
	}
	want := "Validated: [" + samplePath + "] successfully against [" + schemaLabel + "]"
	if n := strings.Count(stdout, samplePath); n != 1 {
		t.Errorf("stdout names the file %d times, want 1:\n%s", n, stdout)
	}
	if !strings.Contains(stdout, want+"\n") {
		t.Errorf("stdout = %q, want a line %q", stdout, want)
	}
	if stderr != "" {
		t.Errorf("stderr = %q, want empty", stderr)
	}

	stdout, _, code = execute(t, samplePath)
	if code != 0 || stdout != "" {
		t.Errorf("quiet run: code=%d stdout=%q", code, stdout)
	}
}

func TestInvalidFile(t *testing.T) {
	invalid := writeFile(t, t.TempDir(), "invalid.xml", missingModel)

	for _, args := range [][]string{{invalid}, {"-v", invalid}} {
		stdout, stderr, code := execute(t, args...)
		if code != 2 {
			t.Errorf("%v: exit code = %d, want 2", args, code)
		}
		header := "Error validating [" + invalid + "] against [" + schemaLabel + "]:\n\n"
		if !strings.HasPrefix(stderr, header) {
			t.Errorf("%v: stderr does not start with %q:\n%s", args, header, stderr)
		}
		if !strings.Contains(stderr, "Required element missing") {
			t.Errorf("%v: engine diagnostic missing from stderr:\n%s", args, stderr)
		}
		if strings.Contains(stdout, "Validated:") {
			t.Errorf("%v: invalid file reported as valid:\n%s", args, stdout)
		}
	}
}

func TestMissingFileDoesNotStopRun(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.xml")
	invalid := writeFile(t, dir, "invalid.xml", missingModel)
	broken := writeFile(t, dir, "broken.xml", "<tumorml")

	stdout, stderr, code := execute(t, "-v", missing, samplePath, broken, invalid, samplePath)
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}

	for _, path := range []string{missing, broken, invalid} {
		if !strings.Contains(stderr, "Error validating ["+path+"]") {
			t.Errorf("no failure reported for %s:\n%s", path, stderr)
		}
	}
	if n := strings.Count(stdout, "Validated: ["+samplePath+"]"); n != 2 {
		t.Errorf("valid file reported %d times, want 2:\n%s", n, stdout)
	}

	// Failures are reported in argument order.
	if strings.Index(stderr, missing) > strings.Index(stderr, broken) ||
		strings.Index(stderr, broken) > strings.Index(stderr, invalid) {
		t.Errorf("failures out of order:\n%s", stderr)
	}
}

func TestSchemaFailure(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.xsd", `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">`)
	invalid := writeFile(t, dir, "invalid.xml", missingModel)

	tests := []struct {
		name   string
		schema string
		header string
	}{
		{name: "not well-formed", schema: broken, header: "Error compiling schema: broken.xsd:\n\n"},
		{name: "missing", schema: filepath.Join(dir, "none.xsd"), header: "Error compiling schema: none.xsd:\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := execute(t, "-v", "--schema", tt.schema, samplePath, invalid)
			if code != 2 {
				t.Errorf("exit code = %d, want 2", code)
			}
			if !strings.HasPrefix(stderr, tt.header) {
				t.Errorf("stderr does not start with %q:\n%s", tt.header, stderr)
			}
			if strings.Contains(stderr, "Error validating") {
				t.Errorf("files were validated without a schema:\n%s", stderr)
			}
			if stdout != "" {
				t.Errorf("stdout = %q, want empty", stdout)
			}
		})
	}
}

func TestSchemaOverride(t *testing.T) {
	dir := t.TempDir()
	xsd := writeFile(t, dir, "note.xsd", `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="note" type="xs:string"/>
</xs:schema>`)
	note := writeFile(t, dir, "note.xml", `<note>hello</note>`)

	stdout, stderr, code := execute(t, "-v", "-s", xsd, note)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; stderr:\n%s", code, stderr)
	}
	want := "Compiled [note.xsd] successfully\nValidated: [" + note + "] successfully against [note.xsd]\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}

	_, stderr, code = execute(t, "-s", xsd, samplePath)
	if code != 2 || !strings.Contains(stderr, "against [note.xsd]") {
		t.Errorf("sample against note schema: code=%d stderr:\n%s", code, stderr)
	}
}

func TestMalformedArguments(t *testing.T) {
	dir := t.TempDir()
	badConfig := writeFile(t, dir, "bad.yaml", "verbosity: true\n")

	tests := []struct {
		name      string
		args      []string
		contains  string
		wantUsage bool
	}{
		{name: "unknown flag", args: []string{"--bogus", samplePath}, contains: "unknown flag: --bogus", wantUsage: true},
		{name: "unknown shorthand", args: []string{"-x"}, contains: "Error: unknown shorthand flag: 'x' in -x\n", wantUsage: true},
		{name: "bad jobs value", args: []string{"-j", "many"}, contains: "invalid argument", wantUsage: true},
		{name: "zero jobs", args: []string{"-j", "0", samplePath}, contains: "jobs must be at least 1"},
		{name: "bad color", args: []string{"--color", "rainbow"}, contains: "color must be one of"},
		{name: "bad log level", args: []string{"--log-level", "loud"}, contains: "log_level"},
		{name: "missing config", args: []string{"--config", filepath.Join(dir, "none.yaml")}, contains: "read config file"},
		{name: "unknown config key", args: []string{"--config", badConfig}, contains: "verbosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := execute(t, tt.args...)
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if stdout != "" {
				t.Errorf("stdout = %q, want empty", stdout)
			}
			if !strings.HasPrefix(stderr, "Error: ") || !strings.Contains(stderr, tt.contains) {
				t.Errorf("stderr does not report %q:\n%s", tt.contains, stderr)
			}
			if strings.Contains(stderr, "ARGUMENTS_MALFORMED") || strings.Contains(stderr, "source:") {
				t.Errorf("stderr shows the error wrapper:\n%s", stderr)
			}
			if got := strings.Contains(stderr, "Usage:"); got != tt.wantUsage {
				t.Errorf("usage printed = %v, want %v:\n%s", got, tt.wantUsage, stderr)
			}
			if strings.Contains(stderr, "Compiled") || strings.Contains(stderr, "Error compiling") {
				t.Errorf("schema compiled despite malformed arguments:\n%s", stderr)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "tumorml.yaml", "verbose: true\njobs: 2\ncolor: never\n")

	stdout, _, code := execute(t, "--config", cfg, samplePath)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Validated: ["+samplePath+"]") {
		t.Errorf("verbose from config not applied:\n%s", stdout)
	}

	stdout, _, code = execute(t, "--config", cfg, "--verbose=false", samplePath)
	if code != 0 || stdout != "" {
		t.Errorf("flag did not override config: code=%d stdout=%q", code, stdout)
	}
}

func TestJobsMatchSequentialOutput(t *testing.T) {
	dir := t.TempDir()
	args := []string{"-v"}
	for i := range 12 {
		switch i % 4 {
		case 1:
			args = append(args, writeFile(t, dir, "invalid"+string(rune('a'+i))+".xml", missingModel))
		case 2:
			args = append(args, filepath.Join(dir, "missing"+string(rune('a'+i))+".xml"))
		default:
			args = append(args, samplePath)
		}
	}

	seqOut, seqErr, seqCode := execute(t, args...)
	parOut, parErr, parCode := execute(t, append([]string{"-j", "4"}, args...)...)

	if seqCode != 2 || parCode != seqCode {
		t.Errorf("exit codes: sequential=%d parallel=%d, want 2", seqCode, parCode)
	}
	if parOut != seqOut {
		t.Errorf("stdout differs:\nsequential:\n%s\nparallel:\n%s", seqOut, parOut)
	}
	if parErr != seqErr {
		t.Errorf("stderr differs:\nsequential:\n%s\nparallel:\n%s", seqErr, parErr)
	}
}

func TestColor(t *testing.T) {
	invalid := writeFile(t, t.TempDir(), "invalid.xml", missingModel)

	_, stderr, _ := execute(t, invalid)
	if strings.Contains(stderr, "\033[") {
		t.Errorf("auto color enabled for a non-terminal writer:\n%s", stderr)
	}

	_, stderr, _ = execute(t, "--color", "always", invalid)
	if !strings.Contains(stderr, "\033[") {
		t.Errorf("--color always produced no escape codes:\n%s", stderr)
	}
}

func TestDebugLogging(t *testing.T) {
	_, stderr, code := execute(t, "--log-level", "debug", samplePath)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stderr, "level=DEBUG") || !strings.Contains(stderr, "schema compiled") {
		t.Errorf("debug log lines missing:\n%s", stderr)
	}
}
