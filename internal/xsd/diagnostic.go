package xsd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Diagnostic represents a rustc-style validation diagnostic
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Position  Position `json:"position"`
	Tag       string   `json:"tag"`
	Attribute string   `json:"attribute,omitempty"`
	SpecRef   string   `json:"spec_ref,omitempty"`
	Hints     []string `json:"hints,omitempty"`
}

// Severity represents the severity level of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Position contains source position information for a node
type Position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int64  `json:"offset"`
}

// diagnosticCode is the short code and the XML Schema section behind a
// validation rule.
type diagnosticCode struct {
	code string
	ref  string
}

const (
	refElementContent = "XML Schema Part 1 §3.4.4 (element content)"
	refAttributes     = "XML Schema Part 1 §3.4.4 (attributes)"
	refElements       = "XML Schema Part 1 §3.3.4 (element declarations)"
	refTypes          = "XML Schema Part 1 §3.14.4 (simple type definitions)"
	refIdentity       = "XML Schema Part 1 §3.15.4 (ID/IDREF)"
)

var diagnosticCodes = map[string]diagnosticCode{
	"xsd-null-document":         {"E001", ""},
	"xsd-no-root":               {"E002", ""},
	"cvc-complex-type.3.2.2":    {"E200", refAttributes},
	"cvc-complex-type.2.4.a":    {"E201", refElementContent},
	"cvc-complex-type.2.4.b":    {"E202", refElementContent},
	"cvc-complex-type.2.4.d":    {"E203", refElementContent},
	"cvc-complex-type.4":        {"E204", "XML Schema Part 1 §3.4.4 (required attributes)"},
	"cvc-id.1":                  {"E205", refIdentity},
	"cvc-id.2":                  {"E206", refIdentity},
	"cvc-elt.1":                 {"E207", refElements},
	"cvc-datatype-valid.1.2.1":  {"E208", "XML Schema Part 2 §4.1.4 (datatype validity)"},
	"cvc-enumeration-valid":     {"E209", "XML Schema Part 2 §4.3.5 (enumeration)"},
	"cvc-pattern-valid":         {"E210", "XML Schema Part 2 §4.3.4 (pattern)"},
	"cvc-complex-type.2.1":      {"E211", refElementContent},
	"cvc-elt.2":                 {"E212", refElements},
	"cvc-elt.3.1":               {"E213", refElements},
	"cvc-elt.3.2.1":             {"E214", refElements},
	"cvc-elt.3.2.2":             {"E215", refElements},
	"cvc-elt.5.2.2":             {"E216", refElements},
	"cvc-type.2":                {"E217", refElements},
	"cvc-type.3.1.1":            {"E218", refTypes},
	"cvc-type.3.1.2":            {"E219", refTypes},
	"cvc-complex-type.2.2":      {"E220", refElementContent},
	"cvc-complex-type.2.3":      {"E221", refElementContent},
	"cvc-complex-type.2.4.c":    {"E222", refElementContent},
	"cvc-attribute.4":           {"E223", "XML Schema Part 1 §3.2.4 (attribute declarations)"},
	"cvc-length-valid":          {"E224", "XML Schema Part 2 §4.3.1 (length)"},
	"cvc-minLength-valid":       {"E225", "XML Schema Part 2 §4.3.2 (minLength)"},
	"cvc-maxLength-valid":       {"E226", "XML Schema Part 2 §4.3.3 (maxLength)"},
	"cvc-maxInclusive-valid":    {"E227", "XML Schema Part 2 §4.3.7 (maxInclusive)"},
	"cvc-maxExclusive-valid":    {"E228", "XML Schema Part 2 §4.3.8 (maxExclusive)"},
	"cvc-minExclusive-valid":    {"E229", "XML Schema Part 2 §4.3.9 (minExclusive)"},
	"cvc-minInclusive-valid":    {"E230", "XML Schema Part 2 §4.3.10 (minInclusive)"},
	"cvc-totalDigits-valid":     {"E231", "XML Schema Part 2 §4.3.11 (totalDigits)"},
	"cvc-fractionDigits-valid":  {"E232", "XML Schema Part 2 §4.3.12 (fractionDigits)"},
}

// DiagnosticConverter converts XSD violations to rustc-style diagnostics
type DiagnosticConverter struct {
	fileName string
	source   string
}

// NewDiagnosticConverter creates a new converter
func NewDiagnosticConverter(fileName, source string) *DiagnosticConverter {
	return &DiagnosticConverter{
		fileName: fileName,
		source:   source,
	}
}

// Convert converts XSD violations to rustc-style diagnostics
func (dc *DiagnosticConverter) Convert(violations []Violation) []Diagnostic {
	diagnostics := make([]Diagnostic, 0, len(violations))
	for _, v := range violations {
		diagnostics = append(diagnostics, dc.convertViolation(v))
	}
	return diagnostics
}

func (dc *DiagnosticConverter) convertViolation(v Violation) Diagnostic {
	code, ok := diagnosticCodes[v.Code]
	if !ok {
		code = diagnosticCode{"E" + strings.ReplaceAll(v.Code, ".", "_"), "XML Schema 1.0"}
	}
	diag := Diagnostic{
		Severity:  SeverityError,
		Code:      code.code,
		Message:   v.Message,
		Position:  dc.position(v.Element, v.Attribute),
		Attribute: v.Attribute,
		SpecRef:   code.ref,
		Hints:     hints(v),
	}
	if v.Element != nil {
		diag.Tag = string(v.Element.LocalName())
	}
	if v.Code == "cvc-complex-type.2.4.a" && len(v.Expected) > 0 {
		diag.Message = fmt.Sprintf("Invalid element '%s'. Expected one of: %s", v.Actual, strings.Join(v.Expected, ", "))
	}
	return diag
}

// position prefers the attribute's own position when the parser kept one.
func (dc *DiagnosticConverter) position(elem xmldom.Element, attrName string) Position {
	if elem == nil {
		return Position{File: dc.fileName}
	}
	if attrName != "" {
		if attr := elem.GetAttributeNode(xmldom.DOMString(attrName)); attr != nil {
			if line, col, offset := attr.Position(); line > 0 {
				return Position{File: dc.fileName, Line: line, Column: col, Offset: offset}
			}
		}
	}
	line, col, offset := elem.Position()
	return Position{File: dc.fileName, Line: line, Column: col, Offset: offset}
}

func hints(v Violation) []string {
	switch v.Code {
	case "cvc-complex-type.3.2.2":
		if len(v.Expected) > 0 {
			return []string{fmt.Sprintf("Did you mean: %s?", strings.Join(v.Expected, " or "))}
		}
	case "cvc-complex-type.2.4.a", "cvc-complex-type.2.4.b":
		if len(v.Expected) > 0 {
			return []string{fmt.Sprintf("Expected: %s", strings.Join(v.Expected, ", "))}
		}
	case "cvc-complex-type.4":
		if len(v.Expected) == 1 {
			return []string{fmt.Sprintf("Add required attribute: %s=\"...\"", v.Expected[0])}
		}
	case "cvc-id.1":
		return []string{fmt.Sprintf("Ensure there is an element with id='%s' in the document", v.Actual)}
	case "cvc-id.2":
		return []string{"Each ID value must be unique within the document"}
	case "cvc-enumeration-valid":
		if len(v.Expected) > 0 {
			return []string{fmt.Sprintf("Valid values are: %s", strings.Join(v.Expected, ", "))}
		}
	case "cvc-elt.1", "cvc-elt.2":
		if len(v.Expected) > 0 {
			return []string{fmt.Sprintf("Declared elements: %s", strings.Join(v.Expected, ", "))}
		}
	}
	if len(v.Expected) > 0 {
		return []string{fmt.Sprintf("Expected: %s", strings.Join(v.Expected, ", "))}
	}
	return nil
}

// ErrorFormatter provides rustc-style error formatting
type ErrorFormatter struct {
	Color bool
	// ContextLines is the number of source lines shown above the line a
	// diagnostic points at.
	ContextLines int
}

const (
	ansiRed   = "\033[31;1m"
	ansiBlue  = "\033[34;1m"
	ansiReset = "\033[0m"
)

func (ef *ErrorFormatter) paint(color, s string) string {
	if !ef.Color {
		return s
	}
	return color + s + ansiReset
}

// Format formats a diagnostic in rustc style
func (ef *ErrorFormatter) Format(diag Diagnostic, source string) string {
	var sb strings.Builder

	severity := string(diag.Severity)
	if severity == "" {
		severity = string(SeverityError)
	}
	fmt.Fprintf(&sb, "%s[%s]: %s\n", ef.paint(ansiRed, severity), diag.Code, diag.Message)

	line := diag.Position.Line
	width := len(strconv.Itoa(max(line, 1)))
	gutter := strings.Repeat(" ", width)
	fmt.Fprintf(&sb, "%s%s %s:%d:%d\n", gutter, ef.paint(ansiBlue, "-->"), diag.Position.File, line, diag.Position.Column)

	lines := strings.Split(source, "\n")
	if source != "" && line > 0 && line <= len(lines) {
		bar := ef.paint(ansiBlue, "|")
		fmt.Fprintf(&sb, "%s %s\n", gutter, bar)
		for n := max(1, line-ef.ContextLines); n <= line; n++ {
			number := ef.paint(ansiBlue, fmt.Sprintf("%*d", width, n))
			fmt.Fprintf(&sb, "%s %s %s\n", number, bar, strings.TrimRight(lines[n-1], "\r"))
		}
		if col := diag.Position.Column; col > 0 {
			marker := "^" + strings.Repeat("~", len(diag.Attribute))
			fmt.Fprintf(&sb, "%s %s %s%s\n", gutter, bar, strings.Repeat(" ", col-1), ef.paint(ansiRed, marker))
		}
	}

	for _, hint := range diag.Hints {
		fmt.Fprintf(&sb, "%s = help: %s\n", gutter, hint)
	}
	if diag.SpecRef != "" {
		fmt.Fprintf(&sb, "%s = note: see %s\n", gutter, diag.SpecRef)
	}
	return sb.String()
}
