// Package schema bundles the TumorML XML schema with the program.
package schema

import "embed"

// Name is the resource name of the bundled schema inside FS.
const Name = "tumorml.xsd"

// Label names the bundled schema in validation messages.
const Label = "TumorML 1.2 XML schema"

// FS holds the bundled schema resource.
//
//go:embed tumorml.xsd
var FS embed.FS
