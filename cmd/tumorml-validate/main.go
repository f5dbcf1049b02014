// Command tumorml-validate checks XML documents against the TumorML schema.
//
// Usage:
//
//	tumorml-validate [flags] <file>...
//
// It exits 0 when every file is valid, 1 when the command line or config
// file cannot be understood and 2 when the schema or any file fails.
package main

import (
	"os"

	"github.com/agentflare-ai/go-tumorml/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
