package xsd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Validator validates XML documents against XSD schemas. A Validator keeps
// per-document state and must not be shared between goroutines; the Schema
// it reads from may be.
type Validator struct {
	schema     *Schema
	violations []Violation
	ids        map[string]xmldom.Element
	idrefs     []idref
}

type idref struct {
	elem  xmldom.Element
	attr  string
	value string
}

// NewValidator creates a new validator for a schema
func NewValidator(schema *Schema) *Validator {
	return &Validator{schema: schema}
}

// Validate validates an XML document against the schema. Violations are
// reported in document order, followed by unresolved IDREFs.
func (v *Validator) Validate(doc xmldom.Document) []Violation {
	if doc == nil {
		return []Violation{{
			Code:    "xsd-null-document",
			Message: "Document is null",
		}}
	}

	root := doc.DocumentElement()
	if root == nil {
		return []Violation{{
			Code:    "xsd-no-root",
			Message: "Document has no root element",
		}}
	}

	v.violations = make([]Violation, 0)
	v.ids = make(map[string]xmldom.Element)
	v.idrefs = nil

	decl, ok := v.schema.LookupElement(qnameOf(root))
	if !ok {
		name := string(root.LocalName())
		v.addViolation(root, "", "cvc-elt.1",
			fmt.Sprintf("Cannot find declaration for element '%s'", name), v.globalElementNames(), name)
		return v.violations
	}
	v.validateElement(root, decl)

	for _, ref := range v.idrefs {
		if _, ok := v.ids[ref.value]; !ok {
			v.addViolation(ref.elem, ref.attr, "cvc-id.1",
				fmt.Sprintf("There is no ID/IDREF binding for IDREF '%s'", ref.value), nil, ref.value)
		}
	}
	return v.violations
}

func (v *Validator) globalElementNames() []string {
	names := make([]string, 0, len(v.schema.ElementDecls))
	for name := range v.schema.ElementDecls {
		names = append(names, name.Local)
	}
	slices.Sort(names)
	return names
}

func (v *Validator) validateElement(elem xmldom.Element, decl *ElementDecl) {
	name := string(elem.LocalName())
	if decl.Abstract {
		var members []string
		for _, member := range v.schema.substitutions[decl.Name] {
			if !member.Abstract {
				members = append(members, member.Name.Local)
			}
		}
		v.addViolation(elem, "", "cvc-elt.2",
			fmt.Sprintf("Element '%s' is abstract and cannot appear in a document", name), members, name)
		return
	}

	nilled := false
	if raw := string(elem.GetAttributeNS(XSINamespace, "nil")); raw != "" {
		switch strings.TrimSpace(raw) {
		case "true", "1":
			switch {
			case !decl.Nillable:
				v.addViolation(elem, "xsi:nil", "cvc-elt.3.1",
					fmt.Sprintf("Element '%s' is not nillable", name), nil, raw)
			case decl.Fixed != "":
				v.addViolation(elem, "xsi:nil", "cvc-elt.3.2.2",
					fmt.Sprintf("Element '%s' has a fixed value and cannot be nil", name), nil, raw)
			default:
				nilled = true
				if len(elementChildren(elem)) > 0 || hasText(elem) {
					v.addViolation(elem, "", "cvc-elt.3.2.1",
						fmt.Sprintf("Element '%s' is nil and must be empty", name), nil, "")
				}
			}
		case "false", "0":
		default:
			v.addViolation(elem, "xsi:nil", "cvc-datatype-valid.1.2.1",
				fmt.Sprintf("Attribute 'xsi:nil': value '%s' is not a valid xs:boolean", raw), nil, raw)
		}
	}

	switch t := decl.Type.(type) {
	case *SimpleType:
		v.validateSimpleElement(elem, decl, t, nilled)
	case *ComplexType:
		v.validateComplexElement(elem, decl, t, nilled)
	}
}

func (v *Validator) validateSimpleElement(elem xmldom.Element, decl *ElementDecl, st *SimpleType, nilled bool) {
	name := string(elem.LocalName())
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a == nil {
			continue
		}
		if _, ok := declaredPrefix(a); ok {
			continue
		}
		attrName := attributeQName(a)
		if attrName.Namespace == XSINamespace {
			continue
		}
		v.addViolation(elem, attrName.Local, "cvc-type.3.1.1",
			fmt.Sprintf("Element '%s' has a simple type and cannot have attribute '%s'", name, attrName.Local), nil, attrName.Local)
	}

	if children := elementChildren(elem); len(children) > 0 {
		v.addViolation(children[0], "", "cvc-type.3.1.2",
			fmt.Sprintf("Element '%s' has a simple type and cannot contain element '%s'", name, children[0].LocalName()),
			nil, string(children[0].LocalName()))
		return
	}
	if !nilled {
		v.checkElementValue(elem, decl, st)
	}
}

func (v *Validator) validateComplexElement(elem xmldom.Element, decl *ElementDecl, ct *ComplexType, nilled bool) {
	name := string(elem.LocalName())
	if ct.Abstract {
		v.addViolation(elem, "", "cvc-type.2",
			fmt.Sprintf("Element '%s' cannot use abstract type '%s'", name, ct.QName.Local), nil, name)
		return
	}
	v.validateAttributes(elem, ct)
	if nilled {
		return
	}

	children := elementChildren(elem)
	switch ct.Content {
	case EmptyContent:
		if len(children) > 0 || hasText(elem) {
			v.addViolation(elem, "", "cvc-complex-type.2.1",
				fmt.Sprintf("Element '%s' must have no character or element children", name), nil, "")
		}
		return
	case SimpleContent:
		if len(children) > 0 {
			v.addViolation(children[0], "", "cvc-complex-type.2.2",
				fmt.Sprintf("Element '%s' has simple content and cannot contain element '%s'", name, children[0].LocalName()),
				nil, string(children[0].LocalName()))
			return
		}
		v.checkElementValue(elem, decl, ct.SimpleType)
		return
	case ElementOnlyContent:
		if hasText(elem) {
			v.addViolation(elem, "", "cvc-complex-type.2.3",
				fmt.Sprintf("Element '%s' cannot contain character data", name), nil, "")
		}
	}

	if violation := validateContent(elem, ct, children, v.schema.substitutions); violation != nil {
		v.violations = append(v.violations, *violation)
	}
	for _, child := range children {
		v.validateChild(child, ct)
	}
}

// validateChild validates a child with the declaration the content model
// assigns to its name. Children the model rejected are already reported.
func (v *Validator) validateChild(child xmldom.Element, ct *ComplexType) {
	name := qnameOf(child)
	if decl, ok := ct.elements[name]; ok {
		v.validateElement(child, decl)
		return
	}
	for _, w := range ct.wildcards {
		if !w.Allows(name.Namespace) {
			continue
		}
		if w.ProcessContents == Skip {
			return
		}
		if decl, ok := v.schema.LookupElement(name); ok {
			v.validateElement(child, decl)
			return
		}
		if w.ProcessContents == Strict {
			v.addViolation(child, "", "cvc-complex-type.2.4.c",
				fmt.Sprintf("No declaration found for element '%s' matched by a strict wildcard", name.Local), nil, name.Local)
			return
		}
		v.validateLax(child)
		return
	}
}

// validateLax looks for declared elements below an undeclared one.
func (v *Validator) validateLax(elem xmldom.Element) {
	for _, child := range elementChildren(elem) {
		if decl, ok := v.schema.LookupElement(qnameOf(child)); ok {
			v.validateElement(child, decl)
			continue
		}
		v.validateLax(child)
	}
}

func (v *Validator) checkElementValue(elem xmldom.Element, decl *ElementDecl, st *SimpleType) {
	if st == nil {
		return
	}
	name := string(elem.LocalName())
	text := textContent(elem)
	if text == "" {
		switch {
		case decl.Fixed != "":
			text = decl.Fixed
		case decl.Default != "":
			text = decl.Default
		}
	}
	value := st.Normalize(text)
	if decl.Fixed != "" && !st.equal(value, st.Normalize(decl.Fixed)) {
		v.addViolation(elem, "", "cvc-elt.5.2.2",
			fmt.Sprintf("Element '%s' must have the fixed value '%s'", name, decl.Fixed), []string{decl.Fixed}, value)
		return
	}
	if err := st.Validate(text); err != nil {
		v.addValueViolation(elem, "", fmt.Sprintf("Element '%s'", name), value, err)
		return
	}
	v.trackIdentity(elem, "", st, value)
}

func (v *Validator) validateAttributes(elem xmldom.Element, ct *ComplexType) {
	seen := make(map[QName]bool)
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a == nil {
			continue
		}
		if _, ok := declaredPrefix(a); ok {
			continue
		}
		name := attributeQName(a)
		if name.Namespace == XSINamespace {
			continue
		}
		nodeName := name.Local
		value := string(a.NodeValue())

		if decl := findAttribute(ct.Attributes, name); decl != nil {
			seen[name] = true
			v.checkAttributeValue(elem, nodeName, decl, value)
			continue
		}
		if w := ct.AnyAttribute; w != nil && w.Allows(name.Namespace) {
			if w.ProcessContents == Skip {
				continue
			}
			if global, ok := v.schema.AttributeDecls[name]; ok {
				v.checkAttributeValue(elem, nodeName, global, value)
			} else if w.ProcessContents == Strict {
				v.addViolation(elem, nodeName, "cvc-complex-type.3.2.2",
					fmt.Sprintf("No declaration found for attribute '%s' matched by a strict wildcard", nodeName), nil, nodeName)
			}
			continue
		}
		v.addViolation(elem, nodeName, "cvc-complex-type.3.2.2",
			fmt.Sprintf("Attribute '%s' is not allowed to appear in element '%s'", nodeName, elem.LocalName()),
			suggestAttribute(name.Local, ct.Attributes), nodeName)
	}

	for _, decl := range ct.Attributes {
		if decl.Use == RequiredUse && !seen[decl.Name] {
			v.addViolation(elem, "", "cvc-complex-type.4",
				fmt.Sprintf("Required attribute '%s' is missing", decl.Name.Local), []string{decl.Name.Local}, "")
		}
	}
}

func (v *Validator) checkAttributeValue(elem xmldom.Element, attrName string, decl *AttributeDecl, raw string) {
	st := decl.Type
	if st == nil {
		return
	}
	subject := fmt.Sprintf("Attribute '%s'", attrName)
	value := st.Normalize(raw)
	if decl.Fixed != "" && !st.equal(value, st.Normalize(decl.Fixed)) {
		v.addViolation(elem, attrName, "cvc-attribute.4",
			fmt.Sprintf("%s must have the fixed value '%s'", subject, decl.Fixed), []string{decl.Fixed}, value)
		return
	}
	if err := st.Validate(raw); err != nil {
		v.addValueViolation(elem, attrName, subject, value, err)
		return
	}
	v.trackIdentity(elem, attrName, st, value)
}

// trackIdentity records ID values and IDREF uses of a valid value.
func (v *Validator) trackIdentity(elem xmldom.Element, attr string, st *SimpleType, value string) {
	switch {
	case st.derivesFrom("ID"):
		if _, dup := v.ids[value]; dup {
			v.addViolation(elem, attr, "cvc-id.2", fmt.Sprintf("Duplicate ID value '%s'", value), nil, value)
			return
		}
		v.ids[value] = elem
	case st.derivesFrom("IDREF"):
		v.idrefs = append(v.idrefs, idref{elem: elem, attr: attr, value: value})
	case st.derivesFrom("IDREFS"):
		for _, ref := range splitXMLSpace(value) {
			v.idrefs = append(v.idrefs, idref{elem: elem, attr: attr, value: ref})
		}
	}
}

// addValueViolation reports a value rejected by its simple type, using the
// facet specific code when a facet rejected it.
func (v *Validator) addValueViolation(elem xmldom.Element, attr, subject, value string, err error) {
	code := "cvc-datatype-valid.1.2.1"
	var expected []string
	var fe *FacetError
	if errors.As(err, &fe) {
		code = "cvc-" + fe.Facet + "-valid"
		expected = fe.Expected
	}
	v.addViolation(elem, attr, code, fmt.Sprintf("%s: %v", subject, err), expected, value)
}

// addViolation adds a validation violation
func (v *Validator) addViolation(elem xmldom.Element, attr, code, message string, expected []string, actual string) {
	v.violations = append(v.violations, Violation{
		Element:   elem,
		Attribute: attr,
		Code:      code,
		Message:   message,
		Expected:  expected,
		Actual:    actual,
	})
}

func findAttribute(attrs []*AttributeDecl, name QName) *AttributeDecl {
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// attributeQName returns the expanded name of an attribute. Unprefixed
// attributes are in no namespace whatever the element's namespace is.
func attributeQName(a xmldom.Node) QName {
	return QName{Namespace: string(a.NamespaceURI()), Local: string(a.LocalName())}
}

func qnameOf(elem xmldom.Element) QName {
	return QName{Namespace: string(elem.NamespaceURI()), Local: string(elem.LocalName())}
}

func elementChildren(elem xmldom.Element) []xmldom.Element {
	children := elem.Children()
	out := make([]xmldom.Element, 0, children.Length())
	for i := uint(0); i < children.Length(); i++ {
		if child := children.Item(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// textContent concatenates the text and CDATA children of elem.
func textContent(elem xmldom.Element) string {
	var content strings.Builder
	nodes := elem.ChildNodes()
	for i := uint(0); i < nodes.Length(); i++ {
		node := nodes.Item(i)
		if node == nil {
			continue
		}
		if t := node.NodeType(); t == 3 || t == 4 { // TEXT_NODE, CDATA_SECTION_NODE
			content.WriteString(string(node.NodeValue()))
		}
	}
	return content.String()
}

func hasText(elem xmldom.Element) bool {
	return strings.IndexFunc(textContent(elem), func(r rune) bool { return !isXMLSpace(r) }) >= 0
}

// suggestAttribute suggests declared attribute names close to wrong.
func suggestAttribute(wrong string, attrs []*AttributeDecl) []string {
	var suggestions []string
	wrongLower := strings.ToLower(wrong)
	for _, a := range attrs {
		name := a.Name.Local
		if levenshteinDistance(wrongLower, strings.ToLower(name)) <= 2 {
			suggestions = append(suggestions, name)
		}
	}
	return suggestions
}

// levenshteinDistance calculates edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(s2)]
}
