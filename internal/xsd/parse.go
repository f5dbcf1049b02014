package xsd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// SchemaError is a problem found while compiling a schema document. Every
// SchemaError matches ErrInvalidSchema.
type SchemaError struct {
	Location string
	Line     int
	Column   int
	Message  string
}

func (e *SchemaError) Error() string {
	loc := e.Location
	if loc == "" {
		loc = "schema"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	return loc + ": " + e.Message
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// origin remembers where a component was declared so resolution errors can
// point at it.
type origin struct {
	location string
	line     int
	column   int
}

func (o origin) errorf(format string, args ...any) *SchemaError {
	return &SchemaError{
		Location: o.location,
		Line:     o.line,
		Column:   o.column,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Compile decodes a single XSD document from r and compiles it. Includes and
// imports are not followed; use SchemaLoader for multi-document schemas.
func Compile(r io.Reader) (*Schema, error) {
	doc, err := xmldom.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return Parse(doc)
}

// Parse compiles an already decoded XSD document.
func Parse(doc xmldom.Document) (*Schema, error) {
	c := newCompiler()
	if _, err := c.addDocument(doc, "", documentContext{}); err != nil {
		return nil, err
	}
	return c.finish()
}

// documentKind says how a document was reached.
type documentKind int

const (
	rootDocument documentKind = iota
	includedDocument
	importedDocument
)

type documentContext struct {
	kind documentKind
	// namespace is the including document's target namespace for
	// includes and the declared namespace for imports.
	namespace string
}

// directive is an xs:include or xs:import found in a document.
type directive struct {
	include        bool
	namespace      string
	schemaLocation string
}

// compiler accumulates the components of every document of a schema and
// resolves references between them once all documents are parsed.
type compiler struct {
	schema *Schema
	errs   []error
	rooted bool

	elements        []*elementSource
	attributes      []*attributeSource
	complexTypes    []*ComplexType
	simpleTypes     []*SimpleType
	groups          []*groupSource
	attributeGroups []*AttributeGroup
	groupOrigins    map[*AttributeGroup]origin

	// Resolution state.
	groupState   map[*ModelGroup]int
	groupNames   map[*ModelGroup]*groupSource
	elementState map[*ElementDecl]int
	elementAt    map[*ElementDecl]origin
}

type elementSource struct {
	decl *ElementDecl
	at   origin
}

type attributeSource struct {
	decl *AttributeDecl
	at   origin
}

type groupSource struct {
	name  QName
	group *ModelGroup
	at    origin
}

func newCompiler() *compiler {
	return &compiler{
		schema:       newSchema(),
		groupOrigins: make(map[*AttributeGroup]origin),
	}
}

func (c *compiler) fail(err *SchemaError) {
	c.errs = append(c.errs, err)
}

func (c *compiler) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return errors.Join(c.errs...)
}

// addDocument parses the top level components of doc and returns the
// includes and imports it declares.
func (c *compiler) addDocument(doc xmldom.Document, location string, ctx documentContext) ([]directive, error) {
	if doc == nil {
		return nil, &SchemaError{Location: location, Message: "empty document"}
	}
	root := doc.DocumentElement()
	if root == nil {
		return nil, &SchemaError{Location: location, Message: "document has no root element"}
	}
	if string(root.NamespaceURI()) != XSDNamespace || string(root.LocalName()) != "schema" {
		line, col, _ := root.Position()
		return nil, &SchemaError{
			Location: location,
			Line:     line,
			Column:   col,
			Message:  fmt.Sprintf("root element is '%s', not an XSD schema document", root.LocalName()),
		}
	}

	p := &docParser{c: c, location: location}
	p.tns = attr(root, "targetNamespace")
	switch ctx.kind {
	case includedDocument:
		if p.tns == "" {
			// Chameleon include: adopt the includer's namespace.
			p.tns = ctx.namespace
		} else if p.tns != ctx.namespace {
			return nil, p.at(root).errorf("included schema has targetNamespace '%s', expected '%s'", p.tns, ctx.namespace)
		}
	case importedDocument:
		if p.tns != ctx.namespace {
			return nil, p.at(root).errorf("imported schema has targetNamespace '%s', expected '%s'", p.tns, ctx.namespace)
		}
	}
	if !c.rooted {
		c.schema.TargetNamespace = p.tns
		c.rooted = true
	}
	p.elementQualified = attr(root, "elementFormDefault") == "qualified"
	p.attributeQualified = attr(root, "attributeFormDefault") == "qualified"

	before := len(c.errs)
	sc := (*scope)(nil).push(root)
	directives := p.parseSchema(root, sc)
	if len(c.errs) > before {
		return nil, errors.Join(c.errs[before:]...)
	}
	return directives, nil
}

// finish resolves references and returns the compiled schema.
func (c *compiler) finish() (*Schema, error) {
	if err := c.err(); err != nil {
		return nil, err
	}
	c.resolve()
	if err := c.err(); err != nil {
		return nil, err
	}
	return c.schema, nil
}

// scope maps namespace prefixes in effect at a schema element.
type scope struct {
	parent   *scope
	prefixes map[string]string
}

// push returns the scope of elem, which is the receiver plus any namespace
// declarations on elem.
func (sc *scope) push(elem xmldom.Element) *scope {
	var prefixes map[string]string
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a == nil {
			continue
		}
		prefix, ok := declaredPrefix(a)
		if !ok {
			continue
		}
		if prefixes == nil {
			prefixes = make(map[string]string)
		}
		prefixes[prefix] = string(a.NodeValue())
	}
	if prefixes == nil {
		return sc
	}
	return &scope{parent: sc, prefixes: prefixes}
}

// declaredPrefix reports the prefix a namespace declaration binds. The
// decoder files xmlns:p under the "xmlns" namespace with local name p, and
// the default declaration as an unqualified attribute named xmlns.
func declaredPrefix(a xmldom.Node) (string, bool) {
	ns, local := string(a.NamespaceURI()), string(a.LocalName())
	switch {
	case ns == "xmlns" || ns == xmlnsNamespace:
		if local == "xmlns" {
			return "", true
		}
		return local, true
	case ns == "" && local == "xmlns":
		return "", true
	}
	return "", false
}

func (sc *scope) lookup(prefix string) (string, bool) {
	if prefix == "xml" {
		return xmlNamespace, true
	}
	for s := sc; s != nil; s = s.parent {
		if ns, ok := s.prefixes[prefix]; ok {
			return ns, true
		}
	}
	return "", false
}

// docParser parses one schema document.
type docParser struct {
	c                  *compiler
	location           string
	tns                string
	elementQualified   bool
	attributeQualified bool
}

func attr(elem xmldom.Element, name string) string {
	return string(elem.GetAttribute(xmldom.DOMString(name)))
}

func (p *docParser) at(elem xmldom.Element) origin {
	line, col, _ := elem.Position()
	return origin{location: p.location, line: line, column: col}
}

func (p *docParser) fail(elem xmldom.Element, format string, args ...any) {
	p.c.fail(p.at(elem).errorf(format, args...))
}

// xsdChildren returns the XSD namespace children of elem, reporting
// anything else as an error. Annotations are skipped.
func (p *docParser) xsdChildren(elem xmldom.Element) []xmldom.Element {
	var out []xmldom.Element
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil {
			continue
		}
		if string(child.NamespaceURI()) != XSDNamespace {
			p.fail(child, "unexpected element '%s' in xs:%s", child.LocalName(), elem.LocalName())
			continue
		}
		if string(child.LocalName()) == "annotation" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// qname resolves a QName valued attribute. Unprefixed names without a
// default namespace in scope belong to the target namespace.
func (p *docParser) qname(elem xmldom.Element, sc *scope, value string) (QName, bool) {
	value = strings.TrimSpace(value)
	prefix, local, found := strings.Cut(value, ":")
	if !found {
		local, prefix = prefix, ""
	}
	if local == "" || validateNCName(local) != nil {
		p.fail(elem, "invalid QName '%s'", value)
		return QName{}, false
	}
	ns, ok := sc.lookup(prefix)
	switch {
	case ok:
	case prefix == "":
		ns = p.tns
	case prefix == "xs" || prefix == "xsd":
		ns = XSDNamespace
	default:
		p.fail(elem, "undeclared namespace prefix '%s' in '%s'", prefix, value)
		return QName{}, false
	}
	return QName{Namespace: ns, Local: local}, true
}

func (p *docParser) name(elem xmldom.Element) (string, bool) {
	name := attr(elem, "name")
	if name == "" {
		p.fail(elem, "xs:%s is missing a name", elem.LocalName())
		return "", false
	}
	if err := validateNCName(name); err != nil {
		p.fail(elem, "invalid name '%s': %v", name, err)
		return "", false
	}
	return name, true
}

func (p *docParser) parseSchema(root xmldom.Element, sc *scope) []directive {
	var directives []directive
	for _, child := range p.xsdChildren(root) {
		csc := sc.push(child)
		switch string(child.LocalName()) {
		case "include":
			directives = append(directives, directive{
				include:        true,
				namespace:      p.tns,
				schemaLocation: attr(child, "schemaLocation"),
			})
		case "import":
			ns := attr(child, "namespace")
			if ns != "" && ns == p.tns {
				p.fail(child, "xs:import namespace must differ from the targetNamespace")
				continue
			}
			directives = append(directives, directive{
				namespace:      ns,
				schemaLocation: attr(child, "schemaLocation"),
			})
		case "element":
			p.parseGlobalElement(child, csc)
		case "attribute":
			p.parseGlobalAttribute(child, csc)
		case "simpleType":
			if name, ok := p.name(child); ok {
				st := p.parseSimpleType(child, csc)
				st.QName = QName{Namespace: p.tns, Local: name}
				p.defineType(child, st.QName, st)
			}
		case "complexType":
			if name, ok := p.name(child); ok {
				ct := p.parseComplexType(child, csc)
				ct.QName = QName{Namespace: p.tns, Local: name}
				p.defineType(child, ct.QName, ct)
			}
		case "group":
			p.parseGroupDefinition(child, csc)
		case "attributeGroup":
			p.parseAttributeGroupDefinition(child, csc)
		case "notation":
		case "redefine":
			p.fail(child, "xs:redefine is not supported")
		default:
			p.fail(child, "unexpected xs:%s at the top level of a schema", child.LocalName())
		}
	}
	return directives
}

func (p *docParser) defineType(elem xmldom.Element, name QName, t Type) {
	if _, exists := p.c.schema.TypeDefs[name]; exists {
		p.fail(elem, "type '%s' is already defined", name.Local)
		return
	}
	p.c.schema.TypeDefs[name] = t
}

func (p *docParser) parseGlobalElement(elem xmldom.Element, sc *scope) {
	for _, forbidden := range []string{"ref", "minOccurs", "maxOccurs", "form"} {
		if attr(elem, forbidden) != "" {
			p.fail(elem, "global element declarations cannot have a %s attribute", forbidden)
		}
	}
	name, ok := p.name(elem)
	if !ok {
		return
	}
	decl := p.parseElementDecl(elem, sc, QName{Namespace: p.tns, Local: name})
	decl.global = true
	if sg := attr(elem, "substitutionGroup"); sg != "" {
		if head, ok := p.qname(elem, sc, sg); ok {
			decl.SubstitutionGroup = head
		}
	}
	if _, exists := p.c.schema.ElementDecls[decl.Name]; exists {
		p.fail(elem, "element '%s' is already declared", name)
		return
	}
	p.c.schema.ElementDecls[decl.Name] = decl
}

// parseLocalElement returns the particle for an element inside a model
// group: either a reference to a global declaration or a local one.
func (p *docParser) parseLocalElement(elem xmldom.Element, sc *scope) *Particle {
	min, max, ok := p.occurs(elem)
	if !ok {
		return nil
	}
	if ref := attr(elem, "ref"); ref != "" {
		for _, forbidden := range []string{"name", "type", "default", "fixed", "nillable", "block", "form"} {
			if attr(elem, forbidden) != "" {
				p.fail(elem, "element reference cannot have a %s attribute", forbidden)
			}
		}
		if len(p.xsdChildren(elem)) > 0 {
			p.fail(elem, "element reference cannot have a type definition")
		}
		name, ok := p.qname(elem, sc, ref)
		if !ok {
			return nil
		}
		return &Particle{MinOccurs: min, MaxOccurs: max, Term: &elementRef{ref: name}}
	}
	name, ok := p.name(elem)
	if !ok {
		return nil
	}
	for _, forbidden := range []string{"substitutionGroup", "abstract", "final"} {
		if attr(elem, forbidden) != "" {
			p.fail(elem, "local element declarations cannot have a %s attribute", forbidden)
		}
	}
	qualified := p.elementQualified
	switch form := attr(elem, "form"); form {
	case "":
	case "qualified":
		qualified = true
	case "unqualified":
		qualified = false
	default:
		p.fail(elem, "invalid form '%s'", form)
	}
	qn := QName{Local: name}
	if qualified {
		qn.Namespace = p.tns
	}
	return &Particle{MinOccurs: min, MaxOccurs: max, Term: p.parseElementDecl(elem, sc, qn)}
}

func (p *docParser) parseElementDecl(elem xmldom.Element, sc *scope, name QName) *ElementDecl {
	decl := &ElementDecl{
		Name:     name,
		Nillable: p.boolean(elem, "nillable"),
		Abstract: p.boolean(elem, "abstract"),
		Default:  attr(elem, "default"),
		Fixed:    attr(elem, "fixed"),
	}
	if decl.Default != "" && decl.Fixed != "" {
		p.fail(elem, "element '%s' cannot have both default and fixed", name.Local)
	}
	if t := attr(elem, "type"); t != "" {
		if ref, ok := p.qname(elem, sc, t); ok {
			decl.typeRef = ref
		}
	}
	for _, child := range p.xsdChildren(elem) {
		csc := sc.push(child)
		switch string(child.LocalName()) {
		case "simpleType", "complexType":
			if decl.Type != nil || decl.typeRef != (QName{}) {
				p.fail(child, "element '%s' has more than one type", name.Local)
				continue
			}
			if attr(child, "name") != "" {
				p.fail(child, "anonymous type definitions cannot have a name")
			}
			if string(child.LocalName()) == "simpleType" {
				decl.Type = p.parseSimpleType(child, csc)
			} else {
				decl.Type = p.parseComplexType(child, csc)
			}
		case "unique", "key", "keyref":
			// Identity constraints are accepted but not enforced.
		default:
			p.fail(child, "unexpected xs:%s in an element declaration", child.LocalName())
		}
	}
	p.c.elements = append(p.c.elements, &elementSource{decl: decl, at: p.at(elem)})
	return decl
}

func (p *docParser) boolean(elem xmldom.Element, name string) bool {
	switch v := strings.TrimSpace(attr(elem, name)); v {
	case "", "false", "0":
		return false
	case "true", "1":
		return true
	default:
		p.fail(elem, "invalid boolean '%s' for %s", v, name)
		return false
	}
}

// occurs parses minOccurs and maxOccurs.
func (p *docParser) occurs(elem xmldom.Element) (min, max int, ok bool) {
	min, max = 1, 1
	if v := strings.TrimSpace(attr(elem, "minOccurs")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			p.fail(elem, "invalid minOccurs '%s'", v)
			return 0, 0, false
		}
		min = n
	}
	if v := strings.TrimSpace(attr(elem, "maxOccurs")); v != "" {
		if v == "unbounded" {
			max = Unbounded
		} else {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				p.fail(elem, "invalid maxOccurs '%s'", v)
				return 0, 0, false
			}
			max = n
		}
	}
	if max != Unbounded && min > max {
		p.fail(elem, "minOccurs %d is greater than maxOccurs %d", min, max)
		return 0, 0, false
	}
	return min, max, true
}

func (p *docParser) parseGlobalAttribute(elem xmldom.Element, sc *scope) {
	for _, forbidden := range []string{"ref", "use", "form"} {
		if attr(elem, forbidden) != "" {
			p.fail(elem, "global attribute declarations cannot have a %s attribute", forbidden)
		}
	}
	name, ok := p.name(elem)
	if !ok {
		return
	}
	decl := p.parseAttributeDecl(elem, sc, QName{Namespace: p.tns, Local: name})
	if _, exists := p.c.schema.AttributeDecls[decl.Name]; exists {
		p.fail(elem, "attribute '%s' is already declared", name)
		return
	}
	p.c.schema.AttributeDecls[decl.Name] = decl
}

func (p *docParser) parseLocalAttribute(elem xmldom.Element, sc *scope) *AttributeDecl {
	use := AttributeUse(strings.TrimSpace(attr(elem, "use")))
	switch use {
	case "":
		use = OptionalUse
	case OptionalUse, RequiredUse, ProhibitedUse:
	default:
		p.fail(elem, "invalid attribute use '%s'", use)
		return nil
	}

	var decl *AttributeDecl
	if ref := attr(elem, "ref"); ref != "" {
		for _, forbidden := range []string{"name", "type", "form"} {
			if attr(elem, forbidden) != "" {
				p.fail(elem, "attribute reference cannot have a %s attribute", forbidden)
			}
		}
		name, ok := p.qname(elem, sc, ref)
		if !ok {
			return nil
		}
		decl = &AttributeDecl{
			ref:     name,
			Name:    name,
			Default: attr(elem, "default"),
			Fixed:   attr(elem, "fixed"),
		}
		p.c.attributes = append(p.c.attributes, &attributeSource{decl: decl, at: p.at(elem)})
	} else {
		name, ok := p.name(elem)
		if !ok {
			return nil
		}
		qualified := p.attributeQualified
		switch form := attr(elem, "form"); form {
		case "":
		case "qualified":
			qualified = true
		case "unqualified":
			qualified = false
		default:
			p.fail(elem, "invalid form '%s'", form)
		}
		qn := QName{Local: name}
		if qualified {
			qn.Namespace = p.tns
		}
		decl = p.parseAttributeDecl(elem, sc, qn)
	}
	decl.Use = use
	if use == RequiredUse && decl.Default != "" {
		p.fail(elem, "required attribute '%s' cannot have a default", decl.Name.Local)
	}
	return decl
}

func (p *docParser) parseAttributeDecl(elem xmldom.Element, sc *scope, name QName) *AttributeDecl {
	decl := &AttributeDecl{
		Name:    name,
		Use:     OptionalUse,
		Default: attr(elem, "default"),
		Fixed:   attr(elem, "fixed"),
	}
	if name.Local == "xmlns" || name.Namespace == XSINamespace {
		p.fail(elem, "attribute name '%s' is reserved", name.Local)
	}
	if decl.Default != "" && decl.Fixed != "" {
		p.fail(elem, "attribute '%s' cannot have both default and fixed", name.Local)
	}
	if t := attr(elem, "type"); t != "" {
		if ref, ok := p.qname(elem, sc, t); ok {
			decl.typeRef = ref
		}
	}
	for _, child := range p.xsdChildren(elem) {
		if string(child.LocalName()) != "simpleType" || decl.Type != nil || decl.typeRef != (QName{}) {
			p.fail(child, "unexpected xs:%s in attribute '%s'", child.LocalName(), name.Local)
			continue
		}
		decl.Type = p.parseSimpleType(child, sc.push(child))
	}
	p.c.attributes = append(p.c.attributes, &attributeSource{decl: decl, at: p.at(elem)})
	return decl
}

func (p *docParser) parseGroupDefinition(elem xmldom.Element, sc *scope) {
	name, ok := p.name(elem)
	if !ok {
		return
	}
	qn := QName{Namespace: p.tns, Local: name}
	children := p.xsdChildren(elem)
	if len(children) != 1 {
		p.fail(elem, "group '%s' must contain exactly one of xs:sequence, xs:choice or xs:all", name)
		return
	}
	switch string(children[0].LocalName()) {
	case "sequence", "choice", "all":
	default:
		p.fail(children[0], "unexpected xs:%s in group '%s'", children[0].LocalName(), name)
		return
	}
	if attr(children[0], "minOccurs") != "" || attr(children[0], "maxOccurs") != "" {
		p.fail(children[0], "the model group of a group definition cannot have occurrence attributes")
	}
	particle := p.parseModelGroup(children[0], sc.push(children[0]))
	if particle == nil {
		return
	}
	group := particle.Term.(*ModelGroup)
	if _, exists := p.c.schema.Groups[qn]; exists {
		p.fail(elem, "group '%s' is already defined", name)
		return
	}
	p.c.schema.Groups[qn] = group
	p.c.groups = append(p.c.groups, &groupSource{name: qn, group: group, at: p.at(elem)})
}

func (p *docParser) parseModelGroup(elem xmldom.Element, sc *scope) *Particle {
	min, max, ok := p.occurs(elem)
	if !ok {
		return nil
	}
	group := &ModelGroup{Compositor: Compositor(elem.LocalName())}
	if group.Compositor == All && (min > 1 || max != 1) {
		p.fail(elem, "xs:all must have maxOccurs 1 and minOccurs 0 or 1")
	}
	for _, child := range p.xsdChildren(elem) {
		csc := sc.push(child)
		var particle *Particle
		switch kind := string(child.LocalName()); {
		case kind == "element":
			particle = p.parseLocalElement(child, csc)
			if particle != nil && group.Compositor == All && (particle.MaxOccurs != 1 || particle.MinOccurs > 1) {
				p.fail(child, "elements in xs:all must have maxOccurs 1 and minOccurs 0 or 1")
			}
		case group.Compositor == All:
			p.fail(child, "xs:all can only contain element declarations")
		case kind == "sequence" || kind == "choice":
			particle = p.parseModelGroup(child, csc)
		case kind == "group":
			particle = p.parseGroupRef(child, csc)
		case kind == "any":
			particle = p.parseAny(child)
		default:
			p.fail(child, "unexpected xs:%s in xs:%s", kind, group.Compositor)
		}
		if particle != nil {
			group.Particles = append(group.Particles, particle)
		}
	}
	return &Particle{MinOccurs: min, MaxOccurs: max, Term: group}
}

func (p *docParser) parseGroupRef(elem xmldom.Element, sc *scope) *Particle {
	ref := attr(elem, "ref")
	if ref == "" {
		p.fail(elem, "group reference is missing a ref attribute")
		return nil
	}
	min, max, ok := p.occurs(elem)
	if !ok {
		return nil
	}
	name, ok := p.qname(elem, sc, ref)
	if !ok {
		return nil
	}
	return &Particle{MinOccurs: min, MaxOccurs: max, Term: &groupRef{ref: name}}
}

func (p *docParser) parseAny(elem xmldom.Element) *Particle {
	min, max, ok := p.occurs(elem)
	if !ok {
		return nil
	}
	w := p.parseWildcard(elem)
	if w == nil {
		return nil
	}
	return &Particle{MinOccurs: min, MaxOccurs: max, Term: w}
}

func (p *docParser) parseWildcard(elem xmldom.Element) *Wildcard {
	w := &Wildcard{ProcessContents: Strict}
	switch pc := ProcessContents(attr(elem, "processContents")); pc {
	case "":
	case Strict, Lax, Skip:
		w.ProcessContents = pc
	default:
		p.fail(elem, "invalid processContents '%s'", pc)
		return nil
	}
	switch ns := strings.TrimSpace(attr(elem, "namespace")); ns {
	case "", "##any":
		w.Any = true
	case "##other":
		w.Other = true
		w.Not = p.tns
	default:
		for _, token := range strings.Fields(ns) {
			switch token {
			case "##targetNamespace":
				w.Namespaces = append(w.Namespaces, p.tns)
			case "##local":
				w.Namespaces = append(w.Namespaces, "")
			case "##any", "##other":
				p.fail(elem, "%s cannot appear in a namespace list", token)
				return nil
			default:
				w.Namespaces = append(w.Namespaces, token)
			}
		}
	}
	return w
}

func (p *docParser) parseAttributeGroupDefinition(elem xmldom.Element, sc *scope) {
	name, ok := p.name(elem)
	if !ok {
		return
	}
	ag := &AttributeGroup{Name: QName{Namespace: p.tns, Local: name}}
	ag.Attributes, ag.groupRefs, ag.AnyAttribute = p.parseAttributeUses(p.xsdChildren(elem), sc, "attribute group")
	if _, exists := p.c.schema.AttributeGroups[ag.Name]; exists {
		p.fail(elem, "attribute group '%s' is already defined", name)
		return
	}
	p.c.schema.AttributeGroups[ag.Name] = ag
	p.c.attributeGroups = append(p.c.attributeGroups, ag)
	p.c.groupOrigins[ag] = p.at(elem)
}

// parseAttributeUses parses the trailing attribute declarations shared by
// complex types, extensions, restrictions and attribute groups.
func (p *docParser) parseAttributeUses(children []xmldom.Element, sc *scope, owner string) ([]*AttributeDecl, []QName, *Wildcard) {
	var (
		attrs    []*AttributeDecl
		groups   []QName
		wildcard *Wildcard
	)
	for _, child := range children {
		csc := sc.push(child)
		switch string(child.LocalName()) {
		case "attribute":
			if wildcard != nil {
				p.fail(child, "xs:anyAttribute must come after every attribute")
			}
			if decl := p.parseLocalAttribute(child, csc); decl != nil {
				attrs = append(attrs, decl)
			}
		case "attributeGroup":
			ref := attr(child, "ref")
			if ref == "" {
				p.fail(child, "attribute group reference is missing a ref attribute")
				continue
			}
			if name, ok := p.qname(child, csc, ref); ok {
				groups = append(groups, name)
			}
		case "anyAttribute":
			if wildcard != nil {
				p.fail(child, "more than one xs:anyAttribute in %s", owner)
				continue
			}
			wildcard = p.parseWildcard(child)
		default:
			p.fail(child, "unexpected xs:%s in %s", child.LocalName(), owner)
		}
	}
	return attrs, groups, wildcard
}

func (p *docParser) parseComplexType(elem xmldom.Element, sc *scope) *ComplexType {
	ct := &ComplexType{
		Abstract: p.boolean(elem, "abstract"),
		mixed:    p.boolean(elem, "mixed"),
		at:       p.at(elem),
	}
	p.c.complexTypes = append(p.c.complexTypes, ct)

	children := p.xsdChildren(elem)
	if len(children) > 0 {
		first := children[0]
		switch string(first.LocalName()) {
		case "simpleContent":
			p.parseSimpleContent(ct, first, sc.push(first))
			if len(children) > 1 {
				p.fail(children[1], "unexpected xs:%s after xs:simpleContent", children[1].LocalName())
			}
			return ct
		case "complexContent":
			p.parseComplexContent(ct, first, sc.push(first))
			if len(children) > 1 {
				p.fail(children[1], "unexpected xs:%s after xs:complexContent", children[1].LocalName())
			}
			return ct
		}
	}

	children = p.parseContentModel(ct, children, sc)
	ct.Attributes, ct.attrGroupRefs, ct.AnyAttribute = p.parseAttributeUses(children, sc, "complex type")
	return ct
}

// parseContentModel consumes an optional leading model group and returns
// the remaining children.
func (p *docParser) parseContentModel(ct *ComplexType, children []xmldom.Element, sc *scope) []xmldom.Element {
	if len(children) == 0 {
		return children
	}
	first := children[0]
	switch string(first.LocalName()) {
	case "sequence", "choice", "all":
		ct.Particle = p.parseModelGroup(first, sc.push(first))
	case "group":
		ct.Particle = p.parseGroupRef(first, sc.push(first))
	default:
		return children
	}
	return children[1:]
}

func (p *docParser) parseDerivation(elem xmldom.Element, sc *scope, content string) (xmldom.Element, []xmldom.Element, bool) {
	children := p.xsdChildren(elem)
	if len(children) != 1 {
		p.fail(elem, "xs:%s must contain exactly one xs:extension or xs:restriction", content)
		return nil, nil, false
	}
	derivation := children[0]
	switch string(derivation.LocalName()) {
	case "extension", "restriction":
	default:
		p.fail(derivation, "unexpected xs:%s in xs:%s", derivation.LocalName(), content)
		return nil, nil, false
	}
	return derivation, p.xsdChildren(derivation), true
}

func (p *docParser) parseSimpleContent(ct *ComplexType, elem xmldom.Element, sc *scope) {
	ct.Content = SimpleContent
	derivation, children, ok := p.parseDerivation(elem, sc, "simpleContent")
	if !ok {
		return
	}
	dsc := sc.push(derivation)
	ct.Derivation = Derivation(derivation.LocalName())
	if base := attr(derivation, "base"); base != "" {
		ct.baseRef, _ = p.qname(derivation, dsc, base)
	} else {
		p.fail(derivation, "xs:%s is missing a base", derivation.LocalName())
	}

	if ct.Derivation == Restriction {
		facets := &SimpleType{Variety: AtomicVariety, at: p.at(derivation)}
		children = p.parseRestrictionBody(facets, derivation, children, dsc)
		ct.simpleFacets = facets
	}
	ct.Attributes, ct.attrGroupRefs, ct.AnyAttribute = p.parseAttributeUses(children, dsc, "simple content")
}

func (p *docParser) parseComplexContent(ct *ComplexType, elem xmldom.Element, sc *scope) {
	if v := attr(elem, "mixed"); v != "" {
		ct.mixed = p.boolean(elem, "mixed")
	}
	derivation, children, ok := p.parseDerivation(elem, sc, "complexContent")
	if !ok {
		return
	}
	dsc := sc.push(derivation)
	ct.Derivation = Derivation(derivation.LocalName())
	if base := attr(derivation, "base"); base != "" {
		ct.baseRef, _ = p.qname(derivation, dsc, base)
	} else {
		p.fail(derivation, "xs:%s is missing a base", derivation.LocalName())
	}
	children = p.parseContentModel(ct, children, dsc)
	ct.Attributes, ct.attrGroupRefs, ct.AnyAttribute = p.parseAttributeUses(children, dsc, "complex content")
}

func (p *docParser) parseSimpleType(elem xmldom.Element, sc *scope) *SimpleType {
	st := &SimpleType{at: p.at(elem)}
	p.c.simpleTypes = append(p.c.simpleTypes, st)

	children := p.xsdChildren(elem)
	if len(children) != 1 {
		p.fail(elem, "xs:simpleType must contain exactly one of xs:restriction, xs:list or xs:union")
		return st
	}
	child := children[0]
	csc := sc.push(child)
	switch string(child.LocalName()) {
	case "restriction":
		st.Variety = AtomicVariety
		rest := p.parseRestrictionBody(st, child, p.xsdChildren(child), csc)
		for _, extra := range rest {
			p.fail(extra, "unexpected xs:%s in a simple type restriction", extra.LocalName())
		}
		if st.baseRef == (QName{}) && st.inlineBase == nil {
			p.fail(child, "xs:restriction needs a base attribute or an anonymous simple type")
		}
	case "list":
		st.Variety = ListVariety
		if item := attr(child, "itemType"); item != "" {
			st.itemRef, _ = p.qname(child, csc, item)
		}
		for _, c := range p.xsdChildren(child) {
			if string(c.LocalName()) != "simpleType" || st.itemRef != (QName{}) || st.inlineItem != nil {
				p.fail(c, "unexpected xs:%s in xs:list", c.LocalName())
				continue
			}
			st.inlineItem = p.parseSimpleType(c, csc.push(c))
		}
		if st.itemRef == (QName{}) && st.inlineItem == nil {
			p.fail(child, "xs:list needs an itemType attribute or an anonymous simple type")
		}
	case "union":
		st.Variety = UnionVariety
		for _, member := range strings.Fields(attr(child, "memberTypes")) {
			if name, ok := p.qname(child, csc, member); ok {
				st.memberRefs = append(st.memberRefs, name)
			}
		}
		for _, c := range p.xsdChildren(child) {
			if string(c.LocalName()) != "simpleType" {
				p.fail(c, "unexpected xs:%s in xs:union", c.LocalName())
				continue
			}
			st.inlineMembers = append(st.inlineMembers, p.parseSimpleType(c, csc.push(c)))
		}
		if len(st.memberRefs) == 0 && len(st.inlineMembers) == 0 {
			p.fail(child, "xs:union needs at least one member type")
		}
	default:
		p.fail(child, "unexpected xs:%s in xs:simpleType", child.LocalName())
	}
	return st
}

// parseRestrictionBody reads the base, an optional anonymous base type and
// the facets of a restriction into st. It returns the children that are
// neither, which complex type restrictions use for attributes.
func (p *docParser) parseRestrictionBody(st *SimpleType, elem xmldom.Element, children []xmldom.Element, sc *scope) []xmldom.Element {
	if base := attr(elem, "base"); base != "" {
		st.baseRef, _ = p.qname(elem, sc, base)
	}
	var rest []xmldom.Element
	for i, child := range children {
		name := string(child.LocalName())
		switch name {
		case "simpleType":
			if i != 0 || st.baseRef != (QName{}) {
				p.fail(child, "an anonymous base type must come first and excludes a base attribute")
				continue
			}
			st.inlineBase = p.parseSimpleType(child, sc.push(child))
		case "enumeration", "pattern", "length", "minLength", "maxLength",
			"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
			"totalDigits", "fractionDigits", "whiteSpace":
			if len(rest) > 0 {
				p.fail(child, "facets must come before attribute declarations")
			}
			st.rawFacets = append(st.rawFacets, rawFacet{
				name:  name,
				value: attr(child, "value"),
				fixed: p.boolean(child, "fixed"),
				at:    p.at(child),
			})
		default:
			rest = append(rest, child)
		}
	}
	return rest
}
