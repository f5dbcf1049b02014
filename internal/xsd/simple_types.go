package xsd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Variety is the variety of a simple type.
type Variety int

const (
	AtomicVariety Variety = iota
	ListVariety
	UnionVariety
)

// Whitespace handling modes.
const (
	WhiteSpacePreserve = "preserve"
	WhiteSpaceReplace  = "replace"
	WhiteSpaceCollapse = "collapse"
)

// SimpleType represents a built-in or user defined simple type.
type SimpleType struct {
	QName   QName
	Variety Variety
	// Base is the type this one restricts. It is nil for types defined by
	// list or union.
	Base        *SimpleType
	ItemType    *SimpleType
	MemberTypes []*SimpleType
	// Facets holds the facets declared by this derivation step only.
	Facets     []Facet
	WhiteSpace string

	builtin *BuiltinType

	baseRef       QName
	inlineBase    *SimpleType
	itemRef       QName
	inlineItem    *SimpleType
	memberRefs    []QName
	inlineMembers []*SimpleType
	rawFacets     []rawFacet
	at            origin
	resolving     bool
	resolved      bool
}

type rawFacet struct {
	name  string
	value string
	fixed bool
	at    origin
}

// Name returns the type name; anonymous types have an empty local name.
func (st *SimpleType) Name() QName { return st.QName }

func (st *SimpleType) label() string {
	switch {
	case st.QName.Local == "":
		return "anonymous type"
	case st.QName.Namespace == XSDNamespace:
		return "xs:" + st.QName.Local
	}
	return st.QName.Local
}

// Normalize applies the type's whitespace facet to value.
func (st *SimpleType) Normalize(value string) string {
	return normalizeWhiteSpace(value, st.WhiteSpace)
}

// Validate reports whether value, after whitespace normalization, is a
// valid lexical representation of the type. Facet failures are returned as
// *FacetError.
func (st *SimpleType) Validate(value string) error {
	return st.validate(st.Normalize(value))
}

func (st *SimpleType) validate(value string) error {
	// Built-in checks run most derived first so errors name the most
	// specific type.
	if bt := st.builtin; bt != nil && bt.Check != nil {
		if err := bt.Check(value); err != nil {
			return fmt.Errorf("value '%s' is not a valid %s: %w", value, st.label(), err)
		}
	}

	switch {
	case st.Base != nil:
		if err := st.Base.validate(value); err != nil {
			return err
		}
	case st.Variety == ListVariety:
		items := splitXMLSpace(value)
		if len(items) == 0 && st.builtin != nil {
			return fmt.Errorf("value of %s cannot be empty", st.label())
		}
		for _, item := range items {
			if err := st.ItemType.Validate(item); err != nil {
				return fmt.Errorf("list item '%s': %w", item, err)
			}
		}
	case st.Variety == UnionVariety:
		matched := false
		for _, member := range st.MemberTypes {
			if member.Validate(value) == nil {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("value '%s' does not match any member type of %s", value, st.label())
		}
	}

	for _, f := range st.Facets {
		if err := f.Validate(value, st); err != nil {
			return err
		}
	}
	return nil
}

// primitive returns the name of the primitive built-in type st derives
// from, or "" for list, union and anySimpleType.
func (st *SimpleType) primitive() string {
	if st.Variety != AtomicVariety {
		return ""
	}
	for t := st; t != nil; t = t.Base {
		if t.builtin != nil && t.builtin.Base == "anySimpleType" {
			return t.builtin.Name
		}
	}
	return ""
}

// derivesFrom reports whether st is, or restricts, the named built-in type.
func (st *SimpleType) derivesFrom(builtin string) bool {
	for t := st; t != nil; t = t.Base {
		if t.builtin != nil && t.builtin.Name == builtin {
			return true
		}
	}
	return false
}

// length measures value the way the length facets count: items for lists,
// octets for binary types and characters otherwise.
func (st *SimpleType) length(value string) int {
	if st.Variety == ListVariety {
		return len(splitXMLSpace(value))
	}
	switch st.primitive() {
	case "hexBinary":
		return len(value) / 2
	case "base64Binary":
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(splitXMLSpace(value), ""))
		if err != nil {
			return 0
		}
		return len(decoded)
	}
	return utf8.RuneCountInString(value)
}

type ordering int

const (
	unordered ordering = iota
	numericOrder
	temporalOrder
)

func (st *SimpleType) ordering() ordering {
	switch st.primitive() {
	case "decimal", "float", "double":
		return numericOrder
	case "dateTime", "date", "time", "gYearMonth", "gYear", "gMonthDay", "gDay", "gMonth":
		return temporalOrder
	}
	return unordered
}

var errIncomparable = errors.New("values are not comparable")

// compare orders two values of an ordered type.
func (st *SimpleType) compare(a, b string) (int, error) {
	switch st.ordering() {
	case numericOrder:
		if p := st.primitive(); p == "float" || p == "double" {
			x, errA := parseXSDFloat(a)
			y, errB := parseXSDFloat(b)
			if errA != nil || errB != nil || math.IsNaN(x) || math.IsNaN(y) {
				return 0, errIncomparable
			}
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
		x, okA := new(big.Rat).SetString(a)
		y, okB := new(big.Rat).SetString(b)
		if !okA || !okB {
			return 0, errIncomparable
		}
		return x.Cmp(y), nil
	case temporalOrder:
		kind := st.primitive()
		x, errA := parseTemporal(kind, a)
		y, errB := parseTemporal(kind, b)
		if errA != nil || errB != nil {
			return 0, errIncomparable
		}
		return x.Compare(y), nil
	}
	return 0, errIncomparable
}

// equal compares two values in the value space when the type is ordered
// and lexically otherwise.
func (st *SimpleType) equal(a, b string) bool {
	if st.ordering() != unordered {
		c, err := st.compare(a, b)
		return err == nil && c == 0
	}
	return a == b
}

func parseXSDFloat(value string) (float64, error) {
	switch value {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(value, 64)
}

func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func splitXMLSpace(value string) []string {
	return strings.FieldsFunc(value, isXMLSpace)
}

func normalizeWhiteSpace(value, mode string) string {
	switch mode {
	case WhiteSpaceReplace:
		return strings.Map(func(r rune) rune {
			if isXMLSpace(r) {
				return ' '
			}
			return r
		}, value)
	case WhiteSpaceCollapse:
		return strings.Join(splitXMLSpace(value), " ")
	}
	return value
}
