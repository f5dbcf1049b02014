// Package xsd compiles XML Schema 1.0 documents and validates instance
// documents against them. It works on go-xmldom trees so violations carry
// source positions.
//
// The supported subset covers element, attribute, model group and simple
// type definitions with every constraining facet, type derivation by
// extension and restriction, wildcards, substitution groups and
// xs:include/xs:import. Identity constraints and xs:redefine are not
// supported.
package xsd

import (
	"errors"
	"fmt"

	"github.com/agentflare-ai/go-xmldom"
)

const (
	// XSDNamespace is the XML Schema namespace
	XSDNamespace = "http://www.w3.org/2001/XMLSchema"
	// XSINamespace is the XML Schema instance namespace
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

	xmlnsNamespace = "http://www.w3.org/2000/xmlns/"
	xmlNamespace   = "http://www.w3.org/XML/1998/namespace"
)

// Unbounded is the MaxOccurs of a particle without an upper limit.
const Unbounded = -1

// ErrInvalidSchema marks errors caused by a schema document that is not a
// usable XSD: malformed XML, a root other than xs:schema, a structural rule
// violation or a reference to an undefined component.
var ErrInvalidSchema = errors.New("invalid XSD schema")

// Schema is a compiled schema. It is never modified after compilation and
// may be shared by any number of validators.
type Schema struct {
	TargetNamespace string
	ElementDecls    map[QName]*ElementDecl
	TypeDefs        map[QName]Type
	AttributeDecls  map[QName]*AttributeDecl
	AttributeGroups map[QName]*AttributeGroup
	Groups          map[QName]*ModelGroup

	// substitutions maps a head element to every element that may appear
	// in its place, transitively.
	substitutions map[QName][]*ElementDecl
}

func newSchema() *Schema {
	return &Schema{
		ElementDecls:    make(map[QName]*ElementDecl),
		TypeDefs:        make(map[QName]Type),
		AttributeDecls:  make(map[QName]*AttributeDecl),
		AttributeGroups: make(map[QName]*AttributeGroup),
		Groups:          make(map[QName]*ModelGroup),
		substitutions:   make(map[QName][]*ElementDecl),
	}
}

// LookupElement returns the global element declaration for name.
func (s *Schema) LookupElement(name QName) (*ElementDecl, bool) {
	decl, ok := s.ElementDecls[name]
	return decl, ok
}

// LookupType returns the named type definition, including built-in types.
func (s *Schema) LookupType(name QName) (Type, bool) {
	if name.Namespace == XSDNamespace {
		if name.Local == "anyType" {
			return AnyType, true
		}
		if st := builtinSimpleType(name.Local); st != nil {
			return st, true
		}
	}
	t, ok := s.TypeDefs[name]
	return t, ok
}

// QName represents a qualified XML name
type QName struct {
	Namespace string
	Local     string
}

// String returns the string representation of a QName
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Namespace, q.Local)
}

// Type is implemented by *SimpleType and *ComplexType.
type Type interface {
	Name() QName
}

// ElementDecl represents an element declaration
type ElementDecl struct {
	Name              QName
	Type              Type
	Nillable          bool
	Abstract          bool
	Default           string
	Fixed             string
	SubstitutionGroup QName

	global  bool
	typeRef QName
}

// Term is the part of a particle that matches elements: an *ElementDecl, a
// *ModelGroup or a *Wildcard.
type Term interface {
	term()
}

func (*ElementDecl) term() {}
func (*ModelGroup) term()  {}
func (*Wildcard) term()    {}

// Particle is a term together with its occurrence range.
type Particle struct {
	MinOccurs int
	MaxOccurs int
	Term      Term
}

// Compositor says how the particles of a model group combine.
type Compositor string

const (
	Sequence Compositor = "sequence"
	Choice   Compositor = "choice"
	All      Compositor = "all"
)

// ModelGroup represents xs:sequence, xs:choice or xs:all.
type ModelGroup struct {
	Compositor Compositor
	Particles  []*Particle
}

// elementRef and groupRef are placeholders left by the parser until
// references are resolved.
type elementRef struct {
	ref QName
}

type groupRef struct {
	ref QName
}

func (*elementRef) term() {}
func (*groupRef) term()   {}

// ProcessContents controls how elements and attributes matched by a
// wildcard are validated.
type ProcessContents string

const (
	Strict ProcessContents = "strict"
	Lax    ProcessContents = "lax"
	Skip   ProcessContents = "skip"
)

// Wildcard represents xs:any and xs:anyAttribute.
type Wildcard struct {
	// Any accepts every namespace.
	Any bool
	// Other accepts every namespace except Not and the absent namespace.
	Other bool
	Not   string
	// Namespaces lists the accepted namespaces; "" is the absent namespace.
	Namespaces      []string
	ProcessContents ProcessContents
}

// Allows reports whether the wildcard accepts names in namespace ns.
func (w *Wildcard) Allows(ns string) bool {
	switch {
	case w.Any:
		return true
	case w.Other:
		return ns != "" && ns != w.Not
	}
	for _, allowed := range w.Namespaces {
		if allowed == ns {
			return true
		}
	}
	return false
}

// ContentKind classifies what a complex type allows between its tags.
type ContentKind int

const (
	EmptyContent ContentKind = iota
	SimpleContent
	ElementOnlyContent
	MixedContent
)

// Derivation is the method a type was derived by.
type Derivation string

const (
	Extension   Derivation = "extension"
	Restriction Derivation = "restriction"
)

// ComplexType represents an XSD complex type
type ComplexType struct {
	QName    QName
	Abstract bool

	Content ContentKind
	// Particle is the content model of element-only and mixed content.
	Particle *Particle
	// SimpleType is the value type of simple content.
	SimpleType *SimpleType

	Attributes   []*AttributeDecl
	AnyAttribute *Wildcard

	BaseType   Type
	Derivation Derivation

	// Parse state consumed by resolution.
	mixed         bool
	baseRef       QName
	simpleFacets  *SimpleType
	attrGroupRefs []QName
	at            origin
	resolving     bool
	resolved      bool

	// elements indexes the element declarations of the content model,
	// substitution group members included, by name.
	elements  map[QName]*ElementDecl
	wildcards []*Wildcard
}

// Name returns the type name; anonymous types have an empty local name.
func (ct *ComplexType) Name() QName { return ct.QName }

// AnyType is xs:anyType: any attributes and any well-formed content.
var AnyType = &ComplexType{
	QName:    QName{Namespace: XSDNamespace, Local: "anyType"},
	Content:  MixedContent,
	resolved: true,
	Particle: &Particle{
		MinOccurs: 0,
		MaxOccurs: Unbounded,
		Term:      &Wildcard{Any: true, ProcessContents: Lax},
	},
	AnyAttribute: &Wildcard{Any: true, ProcessContents: Lax},
}

func init() {
	indexContent(AnyType, nil)
}

// AttributeUse represents attribute use
type AttributeUse string

const (
	OptionalUse   AttributeUse = "optional"
	RequiredUse   AttributeUse = "required"
	ProhibitedUse AttributeUse = "prohibited"
)

// AttributeDecl represents an attribute declaration or a local use of one.
type AttributeDecl struct {
	Name    QName
	Type    *SimpleType
	Use     AttributeUse
	Default string
	Fixed   string

	ref     QName
	typeRef QName
}

// AttributeGroup represents a named group of attributes
type AttributeGroup struct {
	Name         QName
	Attributes   []*AttributeDecl
	AnyAttribute *Wildcard

	groupRefs []QName
	resolving bool
	resolved  bool
}

// Violation represents a validation error
type Violation struct {
	Element   xmldom.Element
	Attribute string
	Code      string
	Message   string
	Expected  []string
	Actual    string
}
