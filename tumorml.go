// Package tumorml validates XML documents against the TumorML schema.
//
// A run compiles one schema through an Engine, validates every input file
// with a fresh Validator obtained from that schema and reports the outcome of
// each file. Failures never stop the run; they only decide the exit code.
package tumorml

// Exit codes returned by a run.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitFailure = 2
)

// Messages holds the report templates. The zero value is not usable; start
// from DefaultMessages.
type Messages struct {
	// SchemaCompiled takes the schema resource name.
	SchemaCompiled string
	// SchemaFailed takes the schema resource name and is followed by the
	// engine diagnostic.
	SchemaFailed string
	// DocumentValid takes the file path and the schema label.
	DocumentValid string
	// DocumentFailed takes the file path and the schema label and is
	// followed by the engine diagnostic.
	DocumentFailed string
}

// DefaultMessages are the templates printed by the command line tool.
var DefaultMessages = Messages{
	SchemaCompiled: "Compiled [%s] successfully",
	SchemaFailed:   "Error compiling schema: %s:",
	DocumentValid:  "Validated: [%s] successfully against [%s]",
	DocumentFailed: "Error validating [%s] against [%s]:",
}
