package xsd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Facet is a constraining facet declared by one derivation step of a
// simple type.
type Facet interface {
	Name() string
	// Validate checks a normalized value. st is the type that declares the
	// facet and decides how values are measured and compared.
	Validate(value string, st *SimpleType) error
}

// FacetError reports a value rejected by a constraining facet.
type FacetError struct {
	Facet    string
	Value    string
	Expected []string
	msg      string
}

func (e *FacetError) Error() string { return e.msg }

func facetErrorf(facet, value, format string, args ...any) *FacetError {
	return &FacetError{Facet: facet, Value: value, msg: fmt.Sprintf(format, args...)}
}

// EnumerationFacet validates against a set of allowed values
type EnumerationFacet struct {
	Values []string
}

func (f *EnumerationFacet) Name() string { return "enumeration" }

func (f *EnumerationFacet) Validate(value string, st *SimpleType) error {
	for _, allowed := range f.Values {
		if st.equal(value, allowed) {
			return nil
		}
	}
	err := facetErrorf("enumeration", value, "value '%s' is not in enumeration [%s]", value, strings.Join(f.Values, ", "))
	err.Expected = f.Values
	return err
}

// PatternFacet holds the patterns of one derivation step. A value must
// match at least one of them.
type PatternFacet struct {
	Patterns []string
	regexes  []*regexp.Regexp
}

// NewPatternFacet compiles XML Schema regular expressions once so the facet
// can be shared by concurrent validators.
func NewPatternFacet(patterns ...string) (*PatternFacet, error) {
	f := &PatternFacet{Patterns: patterns}
	for _, pattern := range patterns {
		translated, err := translateRegex(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern '%s': %w", pattern, err)
		}
		re, err := regexp.Compile("^(?:" + translated + ")$")
		if err != nil {
			return nil, fmt.Errorf("pattern '%s': %w", pattern, err)
		}
		f.regexes = append(f.regexes, re)
	}
	return f, nil
}

func (f *PatternFacet) Name() string { return "pattern" }

func (f *PatternFacet) Validate(value string, _ *SimpleType) error {
	for _, re := range f.regexes {
		if re.MatchString(value) {
			return nil
		}
	}
	return facetErrorf("pattern", value, "value '%s' does not match pattern '%s'", value, strings.Join(f.Patterns, "' or '"))
}

// LengthFacet requires an exact length
type LengthFacet struct {
	Value int
}

func (f *LengthFacet) Name() string { return "length" }

func (f *LengthFacet) Validate(value string, st *SimpleType) error {
	if n := st.length(value); n != f.Value {
		return facetErrorf("length", value, "length of '%s' is %d, must be %d", value, n, f.Value)
	}
	return nil
}

// MinLengthFacet requires a minimum length
type MinLengthFacet struct {
	Value int
}

func (f *MinLengthFacet) Name() string { return "minLength" }

func (f *MinLengthFacet) Validate(value string, st *SimpleType) error {
	if n := st.length(value); n < f.Value {
		return facetErrorf("minLength", value, "length of '%s' is %d, must be at least %d", value, n, f.Value)
	}
	return nil
}

// MaxLengthFacet limits the length
type MaxLengthFacet struct {
	Value int
}

func (f *MaxLengthFacet) Name() string { return "maxLength" }

func (f *MaxLengthFacet) Validate(value string, st *SimpleType) error {
	if n := st.length(value); n > f.Value {
		return facetErrorf("maxLength", value, "length of '%s' is %d, must be at most %d", value, n, f.Value)
	}
	return nil
}

// MinInclusiveFacet validates minimum inclusive value
type MinInclusiveFacet struct {
	Value string
}

func (f *MinInclusiveFacet) Name() string { return "minInclusive" }

func (f *MinInclusiveFacet) Validate(value string, st *SimpleType) error {
	return checkBound(st, "minInclusive", value, f.Value, ">=", func(c int) bool { return c >= 0 })
}

// MaxInclusiveFacet validates maximum inclusive value
type MaxInclusiveFacet struct {
	Value string
}

func (f *MaxInclusiveFacet) Name() string { return "maxInclusive" }

func (f *MaxInclusiveFacet) Validate(value string, st *SimpleType) error {
	return checkBound(st, "maxInclusive", value, f.Value, "<=", func(c int) bool { return c <= 0 })
}

// MinExclusiveFacet validates minimum exclusive value
type MinExclusiveFacet struct {
	Value string
}

func (f *MinExclusiveFacet) Name() string { return "minExclusive" }

func (f *MinExclusiveFacet) Validate(value string, st *SimpleType) error {
	return checkBound(st, "minExclusive", value, f.Value, ">", func(c int) bool { return c > 0 })
}

// MaxExclusiveFacet validates maximum exclusive value
type MaxExclusiveFacet struct {
	Value string
}

func (f *MaxExclusiveFacet) Name() string { return "maxExclusive" }

func (f *MaxExclusiveFacet) Validate(value string, st *SimpleType) error {
	return checkBound(st, "maxExclusive", value, f.Value, "<", func(c int) bool { return c < 0 })
}

func checkBound(st *SimpleType, facet, value, bound, relation string, ok func(int) bool) error {
	c, err := st.compare(value, bound)
	if err != nil || !ok(c) {
		return facetErrorf(facet, value, "value '%s' must be %s %s", value, relation, bound)
	}
	return nil
}

// TotalDigitsFacet limits the number of significant digits of a decimal.
type TotalDigitsFacet struct {
	Value int
}

func (f *TotalDigitsFacet) Name() string { return "totalDigits" }

func (f *TotalDigitsFacet) Validate(value string, _ *SimpleType) error {
	if total, _ := countDigits(value); total > f.Value {
		return facetErrorf("totalDigits", value, "value '%s' has %d digits, at most %d allowed", value, total, f.Value)
	}
	return nil
}

// FractionDigitsFacet limits the number of fraction digits of a decimal.
type FractionDigitsFacet struct {
	Value int
}

func (f *FractionDigitsFacet) Name() string { return "fractionDigits" }

func (f *FractionDigitsFacet) Validate(value string, _ *SimpleType) error {
	if _, fraction := countDigits(value); fraction > f.Value {
		return facetErrorf("fractionDigits", value, "value '%s' has %d fraction digits, at most %d allowed", value, fraction, f.Value)
	}
	return nil
}

// countDigits counts the significant digits of a decimal lexical value,
// ignoring sign, leading zeros and trailing fraction zeros.
func countDigits(value string) (total, fraction int) {
	value = strings.TrimLeft(value, "+-")
	whole, frac, _ := strings.Cut(value, ".")
	whole = strings.TrimLeft(whole, "0")
	frac = strings.TrimRight(frac, "0")
	total = len(whole) + len(frac)
	if total == 0 {
		total = 1
	}
	return total, len(frac)
}

var errClassSubtraction = errors.New("character class subtraction is not supported")

// translateRegex rewrites an XML Schema regular expression into RE2 syntax.
// XML Schema expressions are implicitly anchored, treat ^ and $ as literals
// and add the \i and \c name escapes.
func translateRegex(pattern string) (string, error) {
	var sb strings.Builder
	runes := []rune(pattern)
	inClass := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			i++
			esc := runes[i]
			if esc == 'p' || esc == 'P' {
				end := i + 1
				for end < len(runes) && runes[end] != '}' {
					end++
				}
				if end >= len(runes) {
					return "", fmt.Errorf("unterminated \\%c escape", esc)
				}
				sb.WriteString(string(runes[i-1 : end+1]))
				i = end
				continue
			}
			out, err := translateEscape(esc, inClass)
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
		case r == '[' && !inClass:
			inClass = true
			sb.WriteRune(r)
			if i+1 < len(runes) && runes[i+1] == '^' {
				sb.WriteRune('^')
				i++
			}
		case r == '[' && inClass:
			sb.WriteString(`\[`)
		case r == '-' && inClass && i+1 < len(runes) && runes[i+1] == '[':
			return "", errClassSubtraction
		case r == ']' && inClass:
			inClass = false
			sb.WriteRune(r)
		case r == '.' && !inClass:
			sb.WriteString(`[^\n\r]`)
		case (r == '^' || r == '$') && !inClass:
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	if inClass {
		return "", errors.New("unterminated character class")
	}
	return sb.String(), nil
}

// classEscapes maps the multi-character escapes to RE2 character class
// bodies.
var classEscapes = map[rune]string{
	'd': `\p{Nd}`,
	's': ` \t\n\r`,
	'i': `\p{L}_:`,
	'c': `\p{L}\p{Nd}\p{Mn}\p{Mc}._:\-`,
	'w': `\p{L}\p{M}\p{N}\p{S}`,
}

func translateEscape(esc rune, inClass bool) (string, error) {
	switch esc {
	case 'd', 's', 'i', 'c', 'w':
		if inClass {
			return classEscapes[esc], nil
		}
		return "[" + classEscapes[esc] + "]", nil
	case 'D', 'S', 'I', 'C', 'W':
		if inClass {
			if esc == 'D' {
				return `\P{Nd}`, nil
			}
			return "", fmt.Errorf("\\%c inside a character class is not supported", esc)
		}
		return "[^" + classEscapes[esc+('a'-'A')] + "]", nil
	case 'n', 'r', 't', '\\', '|', '.', '-', '^', '?', '*', '+', '{', '}', '(', ')', '[', ']':
		return `\` + string(esc), nil
	}
	return "", fmt.Errorf("unknown escape \\%c", esc)
}
