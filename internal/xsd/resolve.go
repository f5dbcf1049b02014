package xsd

import (
	"strconv"
	"strings"
)

// maxAllParticles bounds xs:all groups so matching can track the particles
// seen in a bit mask.
const maxAllParticles = 64

const (
	stateNew = iota
	stateActive
	stateDone
)

// resolve replaces references with the components they name, computes
// derived content models and attribute sets, and reports every reference
// to an undefined component.
func (c *compiler) resolve() {
	c.groupState = make(map[*ModelGroup]int)
	c.groupNames = make(map[*ModelGroup]*groupSource)
	c.elementState = make(map[*ElementDecl]int)
	c.elementAt = make(map[*ElementDecl]origin)
	for _, g := range c.groups {
		c.groupNames[g.group] = g
	}
	for _, e := range c.elements {
		c.elementAt[e.decl] = e.at
	}

	for _, g := range c.groups {
		c.resolveGroup(g.group, g.at)
	}
	for _, st := range c.simpleTypes {
		c.resolveSimple(st)
	}
	c.resolveAttributes()
	for _, ag := range c.attributeGroups {
		c.resolveAttributeGroup(ag, c.groupOrigins[ag])
	}
	for _, ct := range c.complexTypes {
		c.resolveComplex(ct)
	}
	for _, e := range c.elements {
		c.resolveElement(e.decl)
	}
	c.buildSubstitutions()
	for _, ct := range c.complexTypes {
		indexContent(ct, c.schema.substitutions)
	}
}

func (c *compiler) simpleTypeRef(ref QName, at origin) *SimpleType {
	t, ok := c.schema.LookupType(ref)
	if !ok {
		c.fail(at.errorf("type '%s' is not defined", ref.Local))
		return nil
	}
	st, ok := t.(*SimpleType)
	if !ok {
		c.fail(at.errorf("'%s' is not a simple type", ref.Local))
		return nil
	}
	c.resolveSimple(st)
	return st
}

func (c *compiler) resolveSimple(st *SimpleType) {
	if st.resolved {
		return
	}
	if st.resolving {
		c.fail(st.at.errorf("simple type '%s' is derived from itself", st.label()))
		return
	}
	st.resolving = true
	defer func() {
		st.resolving = false
		st.resolved = true
	}()

	switch st.Variety {
	case AtomicVariety:
		base := st.Base
		switch {
		case base != nil:
		case st.inlineBase != nil:
			base = st.inlineBase
		case st.baseRef != (QName{}):
			base = c.simpleTypeRef(st.baseRef, st.at)
		}
		if base == nil {
			return
		}
		c.resolveSimple(base)
		st.Base = base
		st.Variety = base.Variety
		st.WhiteSpace = base.WhiteSpace
		c.compileFacets(st)
	case ListVariety:
		item := st.inlineItem
		if item == nil && st.itemRef != (QName{}) {
			item = c.simpleTypeRef(st.itemRef, st.at)
		}
		if item == nil {
			return
		}
		c.resolveSimple(item)
		if item.Variety == ListVariety {
			c.fail(st.at.errorf("the item type of a list cannot itself be a list"))
			return
		}
		st.ItemType = item
		st.WhiteSpace = WhiteSpaceCollapse
	case UnionVariety:
		for _, ref := range st.memberRefs {
			if member := c.simpleTypeRef(ref, st.at); member != nil {
				st.MemberTypes = append(st.MemberTypes, member)
			}
		}
		for _, member := range st.inlineMembers {
			c.resolveSimple(member)
			st.MemberTypes = append(st.MemberTypes, member)
		}
	}
}

var whiteSpaceRank = map[string]int{
	WhiteSpacePreserve: 0,
	WhiteSpaceReplace:  1,
	WhiteSpaceCollapse: 2,
}

func lengthApplies(st *SimpleType) bool {
	if st.Variety == ListVariety {
		return true
	}
	switch st.primitive() {
	case "string", "hexBinary", "base64Binary", "anyURI", "QName", "NOTATION":
		return true
	}
	return false
}

// compileFacets turns the raw facets of a restriction into Facet values,
// checking that each one applies to the base type and is itself valid.
func (c *compiler) compileFacets(st *SimpleType) {
	var (
		enums     []string
		enumAt    origin
		patterns  []string
		patternAt origin
		lengths   = map[string]int{}
		bounds    = map[string]string{}
		seen      = map[string]bool{}
	)
	base := st.Base
	for _, raw := range st.rawFacets {
		if raw.name != "enumeration" && raw.name != "pattern" {
			if seen[raw.name] {
				c.fail(raw.at.errorf("facet %s is specified more than once", raw.name))
				continue
			}
			seen[raw.name] = true
		}
		switch raw.name {
		case "whiteSpace":
			rank, ok := whiteSpaceRank[raw.value]
			switch {
			case !ok:
				c.fail(raw.at.errorf("invalid whiteSpace value '%s'", raw.value))
			case rank < whiteSpaceRank[base.WhiteSpace]:
				c.fail(raw.at.errorf("whiteSpace cannot be relaxed from %s to %s", base.WhiteSpace, raw.value))
			case st.Variety == ListVariety && raw.value != WhiteSpaceCollapse:
				c.fail(raw.at.errorf("list types always collapse whitespace"))
			default:
				st.WhiteSpace = raw.value
			}
		case "enumeration":
			if len(enums) == 0 {
				enumAt = raw.at
			}
			enums = append(enums, raw.value)
		case "pattern":
			if len(patterns) == 0 {
				patternAt = raw.at
			}
			patterns = append(patterns, raw.value)
		case "length", "minLength", "maxLength", "totalDigits", "fractionDigits":
			n, err := strconv.Atoi(strings.TrimSpace(raw.value))
			if err != nil || n < 0 {
				c.fail(raw.at.errorf("facet %s needs a non-negative integer, got '%s'", raw.name, raw.value))
				continue
			}
			switch raw.name {
			case "length", "minLength", "maxLength":
				if !lengthApplies(st) {
					c.fail(raw.at.errorf("facet %s does not apply to %s", raw.name, base.label()))
					continue
				}
			default:
				if st.primitive() != "decimal" {
					c.fail(raw.at.errorf("facet %s does not apply to %s", raw.name, base.label()))
					continue
				}
				if raw.name == "totalDigits" && n == 0 {
					c.fail(raw.at.errorf("totalDigits must be positive"))
					continue
				}
			}
			lengths[raw.name] = n
			st.Facets = append(st.Facets, newLengthFacet(raw.name, n))
		case "minInclusive", "maxInclusive", "minExclusive", "maxExclusive":
			switch {
			case st.primitive() == "duration":
				c.fail(raw.at.errorf("ordering facets on xs:duration are not supported"))
				continue
			case st.ordering() == unordered:
				c.fail(raw.at.errorf("facet %s does not apply to %s", raw.name, base.label()))
				continue
			}
			value := base.Normalize(raw.value)
			if err := base.Validate(value); err != nil {
				c.fail(raw.at.errorf("invalid %s: %v", raw.name, err))
				continue
			}
			bounds[raw.name] = value
			st.Facets = append(st.Facets, newBoundFacet(raw.name, value))
		}
	}

	if len(patterns) > 0 {
		f, err := NewPatternFacet(patterns...)
		if err != nil {
			c.fail(patternAt.errorf("invalid %v", err))
		} else {
			st.Facets = append(st.Facets, f)
		}
	}
	if len(enums) > 0 {
		values := make([]string, 0, len(enums))
		for _, v := range enums {
			v = st.Normalize(v)
			if err := base.Validate(v); err != nil {
				c.fail(enumAt.errorf("invalid enumeration value: %v", err))
				continue
			}
			values = append(values, v)
		}
		st.Facets = append(st.Facets, &EnumerationFacet{Values: values})
	}

	if min, ok := lengths["minLength"]; ok {
		if max, ok := lengths["maxLength"]; ok && min > max {
			c.fail(st.at.errorf("minLength %d is greater than maxLength %d", min, max))
		}
	}
	if _, ok := lengths["length"]; ok && (seen["minLength"] || seen["maxLength"]) {
		c.fail(st.at.errorf("length cannot be combined with minLength or maxLength"))
	}
	if total, ok := lengths["totalDigits"]; ok {
		if fraction, ok := lengths["fractionDigits"]; ok && fraction > total {
			c.fail(st.at.errorf("fractionDigits %d is greater than totalDigits %d", fraction, total))
		}
	}
	for _, pair := range [][2]string{
		{"minInclusive", "maxInclusive"},
		{"minExclusive", "maxExclusive"},
		{"minInclusive", "maxExclusive"},
		{"minExclusive", "maxInclusive"},
	} {
		lo, okLo := bounds[pair[0]]
		hi, okHi := bounds[pair[1]]
		if !okLo || !okHi {
			continue
		}
		if cmp, err := st.compare(lo, hi); err == nil && cmp > 0 {
			c.fail(st.at.errorf("%s %s is greater than %s %s", pair[0], lo, pair[1], hi))
		}
	}
	if seen["minInclusive"] && seen["minExclusive"] {
		c.fail(st.at.errorf("minInclusive and minExclusive cannot both be specified"))
	}
	if seen["maxInclusive"] && seen["maxExclusive"] {
		c.fail(st.at.errorf("maxInclusive and maxExclusive cannot both be specified"))
	}
}

func newLengthFacet(name string, n int) Facet {
	switch name {
	case "length":
		return &LengthFacet{Value: n}
	case "minLength":
		return &MinLengthFacet{Value: n}
	case "maxLength":
		return &MaxLengthFacet{Value: n}
	case "totalDigits":
		return &TotalDigitsFacet{Value: n}
	}
	return &FractionDigitsFacet{Value: n}
}

func newBoundFacet(name, value string) Facet {
	switch name {
	case "minInclusive":
		return &MinInclusiveFacet{Value: value}
	case "maxInclusive":
		return &MaxInclusiveFacet{Value: value}
	case "minExclusive":
		return &MinExclusiveFacet{Value: value}
	}
	return &MaxExclusiveFacet{Value: value}
}

// resolveAttributes resolves declared attributes first so references can
// copy their types.
func (c *compiler) resolveAttributes() {
	for _, a := range c.attributes {
		if a.decl.ref != (QName{}) {
			continue
		}
		d := a.decl
		switch {
		case d.Type != nil:
			c.resolveSimple(d.Type)
		case d.typeRef != (QName{}):
			d.Type = c.simpleTypeRef(d.typeRef, a.at)
		default:
			d.Type = builtinSimpleType("anySimpleType")
		}
		c.checkAttributeValues(d, a.at)
	}
	for _, a := range c.attributes {
		d := a.decl
		if d.ref == (QName{}) {
			continue
		}
		global, ok := c.schema.AttributeDecls[d.ref]
		if !ok {
			c.fail(a.at.errorf("attribute '%s' is not declared", d.ref.Local))
			continue
		}
		d.Type = global.Type
		if global.Fixed != "" {
			if d.Fixed != "" && d.Fixed != global.Fixed {
				c.fail(a.at.errorf("attribute '%s' is fixed to '%s' by its declaration", d.ref.Local, global.Fixed))
			}
			d.Fixed = global.Fixed
		}
		if d.Default == "" && d.Fixed == "" {
			d.Default = global.Default
		}
		c.checkAttributeValues(d, a.at)
	}
}

func (c *compiler) checkAttributeValues(d *AttributeDecl, at origin) {
	if d.Type == nil {
		return
	}
	for _, vc := range [][2]string{{"default", d.Default}, {"fixed", d.Fixed}} {
		kind, value := vc[0], vc[1]
		if value == "" {
			continue
		}
		if err := d.Type.Validate(value); err != nil {
			c.fail(at.errorf("%s value of attribute '%s' is invalid: %v", kind, d.Name.Local, err))
		}
	}
}

func (c *compiler) resolveAttributeGroup(ag *AttributeGroup, at origin) {
	if ag.resolved {
		return
	}
	if ag.resolving {
		c.fail(at.errorf("attribute group '%s' references itself", ag.Name.Local))
		return
	}
	ag.resolving = true
	defer func() {
		ag.resolving = false
		ag.resolved = true
	}()
	for _, ref := range ag.groupRefs {
		nested, ok := c.schema.AttributeGroups[ref]
		if !ok {
			c.fail(at.errorf("attribute group '%s' is not defined", ref.Local))
			continue
		}
		c.resolveAttributeGroup(nested, c.groupOrigins[nested])
		ag.Attributes = append(ag.Attributes, nested.Attributes...)
		if ag.AnyAttribute == nil {
			ag.AnyAttribute = nested.AnyAttribute
		}
	}
	names := make(map[QName]bool)
	for _, a := range ag.Attributes {
		if names[a.Name] {
			c.fail(at.errorf("attribute '%s' appears more than once in attribute group '%s'", a.Name.Local, ag.Name.Local))
		}
		names[a.Name] = true
	}
}

func (c *compiler) resolveGroup(g *ModelGroup, at origin) {
	switch c.groupState[g] {
	case stateDone:
		return
	case stateActive:
		name := "anonymous"
		if src := c.groupNames[g]; src != nil {
			name = src.name.Local
		}
		c.fail(at.errorf("group '%s' references itself", name))
		return
	}
	c.groupState[g] = stateActive
	for _, p := range g.Particles {
		c.resolveParticle(p, at)
	}
	c.groupState[g] = stateDone
}

func (c *compiler) resolveParticle(p *Particle, at origin) {
	if p == nil {
		return
	}
	switch t := p.Term.(type) {
	case *elementRef:
		decl, ok := c.schema.ElementDecls[t.ref]
		if !ok {
			c.fail(at.errorf("element '%s' is not declared", t.ref.Local))
			return
		}
		p.Term = decl
	case *groupRef:
		g, ok := c.schema.Groups[t.ref]
		if !ok {
			c.fail(at.errorf("group '%s' is not defined", t.ref.Local))
			return
		}
		c.resolveGroup(g, at)
		p.Term = g
	case *ModelGroup:
		if t.Compositor == All && len(t.Particles) > maxAllParticles {
			c.fail(at.errorf("xs:all groups are limited to %d elements", maxAllParticles))
		}
		c.resolveGroup(t, at)
	}
}

func (c *compiler) resolveComplex(ct *ComplexType) {
	if ct.resolved {
		return
	}
	if ct.resolving {
		c.fail(ct.at.errorf("complex type '%s' is derived from itself", ct.QName.Local))
		return
	}
	ct.resolving = true
	defer func() {
		ct.resolving = false
		ct.resolved = true
	}()

	if ct.baseRef == (QName{}) {
		ct.BaseType = AnyType
		ct.Derivation = Restriction
		c.resolveParticle(ct.Particle, ct.at)
		if ct.Content != SimpleContent {
			ct.Content = contentKind(ct.mixed, ct.Particle)
		}
		ct.Attributes = c.mergeAttributes(ct, nil)
		return
	}

	bt, ok := c.schema.LookupType(ct.baseRef)
	if !ok {
		c.fail(ct.at.errorf("type '%s' is not defined", ct.baseRef.Local))
		return
	}
	ct.BaseType = bt
	if ct.Content == SimpleContent {
		c.resolveSimpleContent(ct, bt)
	} else {
		c.resolveComplexContent(ct, bt)
	}
}

func (c *compiler) resolveSimpleContent(ct *ComplexType, bt Type) {
	var inherited []*AttributeDecl
	switch base := bt.(type) {
	case *SimpleType:
		if ct.Derivation == Restriction {
			c.fail(ct.at.errorf("simpleContent restriction needs a complex base type, '%s' is simple", base.label()))
			return
		}
		c.resolveSimple(base)
		ct.SimpleType = base
	case *ComplexType:
		c.resolveComplex(base)
		if base.Content != SimpleContent {
			c.fail(ct.at.errorf("base type '%s' of simpleContent does not have simple content", base.QName.Local))
			return
		}
		if ct.Derivation == Restriction {
			facets := ct.simpleFacets
			facets.baseRef = QName{}
			if facets.inlineBase == nil {
				facets.Base = base.SimpleType
			}
			c.resolveSimple(facets)
			ct.SimpleType = facets
		} else {
			ct.SimpleType = base.SimpleType
		}
		inherited = base.Attributes
		if ct.AnyAttribute == nil && ct.Derivation == Extension {
			ct.AnyAttribute = base.AnyAttribute
		}
	}
	ct.Attributes = c.mergeAttributes(ct, inherited)
}

func (c *compiler) resolveComplexContent(ct *ComplexType, bt Type) {
	base, ok := bt.(*ComplexType)
	if !ok {
		c.fail(ct.at.errorf("complexContent base '%s' must be a complex type", bt.Name().Local))
		return
	}
	c.resolveComplex(base)
	if base.Content == SimpleContent {
		c.fail(ct.at.errorf("complexContent cannot derive from '%s', which has simple content", base.QName.Local))
		return
	}
	c.resolveParticle(ct.Particle, ct.at)
	if ct.Derivation == Extension {
		ct.Particle = extendParticle(base.Particle, ct.Particle)
		ct.Content = contentKind(ct.mixed || base.Content == MixedContent, ct.Particle)
		if ct.AnyAttribute == nil {
			ct.AnyAttribute = base.AnyAttribute
		}
	} else {
		ct.Content = contentKind(ct.mixed, ct.Particle)
	}
	ct.Attributes = c.mergeAttributes(ct, base.Attributes)
}

// mergeAttributes combines inherited attribute uses with the type's own and
// those of its attribute groups. Own uses replace inherited ones with the
// same name and prohibited uses remove them.
func (c *compiler) mergeAttributes(ct *ComplexType, inherited []*AttributeDecl) []*AttributeDecl {
	own := ct.Attributes
	for _, ref := range ct.attrGroupRefs {
		ag, ok := c.schema.AttributeGroups[ref]
		if !ok {
			c.fail(ct.at.errorf("attribute group '%s' is not defined", ref.Local))
			continue
		}
		c.resolveAttributeGroup(ag, c.groupOrigins[ag])
		own = append(own, ag.Attributes...)
		if ct.AnyAttribute == nil {
			ct.AnyAttribute = ag.AnyAttribute
		}
	}

	merged := make([]*AttributeDecl, 0, len(inherited)+len(own))
	index := make(map[QName]int)
	for _, a := range inherited {
		index[a.Name] = len(merged)
		merged = append(merged, a)
	}
	seen := make(map[QName]bool)
	for _, a := range own {
		if seen[a.Name] {
			c.fail(ct.at.errorf("attribute '%s' is declared more than once", a.Name.Local))
			continue
		}
		seen[a.Name] = true
		if i, ok := index[a.Name]; ok {
			merged[i] = a
			continue
		}
		index[a.Name] = len(merged)
		merged = append(merged, a)
	}

	out := merged[:0]
	for _, a := range merged {
		if a.Use != ProhibitedUse {
			out = append(out, a)
		}
	}
	return out
}

func extendParticle(base, own *Particle) *Particle {
	switch {
	case isEmptyParticle(base):
		return own
	case isEmptyParticle(own):
		return base
	}
	return &Particle{
		MinOccurs: 1,
		MaxOccurs: 1,
		Term:      &ModelGroup{Compositor: Sequence, Particles: []*Particle{base, own}},
	}
}

func isEmptyParticle(p *Particle) bool {
	if p == nil || p.MaxOccurs == 0 {
		return true
	}
	g, ok := p.Term.(*ModelGroup)
	if !ok {
		return false
	}
	for _, child := range g.Particles {
		if !isEmptyParticle(child) {
			return false
		}
	}
	return true
}

func contentKind(mixed bool, p *Particle) ContentKind {
	switch {
	case mixed:
		return MixedContent
	case isEmptyParticle(p):
		return EmptyContent
	}
	return ElementOnlyContent
}

func (c *compiler) resolveElement(d *ElementDecl) {
	switch c.elementState[d] {
	case stateDone:
		return
	case stateActive:
		c.fail(c.elementAt[d].errorf("substitution group of element '%s' is circular", d.Name.Local))
		return
	}
	c.elementState[d] = stateActive
	defer func() { c.elementState[d] = stateDone }()

	at := c.elementAt[d]
	var head *ElementDecl
	if d.SubstitutionGroup != (QName{}) {
		var ok bool
		head, ok = c.schema.ElementDecls[d.SubstitutionGroup]
		if !ok {
			c.fail(at.errorf("substitution group head '%s' is not declared", d.SubstitutionGroup.Local))
		} else {
			c.resolveElement(head)
		}
	}

	switch {
	case d.Type != nil:
	case d.typeRef != (QName{}):
		t, ok := c.schema.LookupType(d.typeRef)
		if !ok {
			c.fail(at.errorf("type '%s' is not defined", d.typeRef.Local))
			return
		}
		d.Type = t
	case head != nil && head.Type != nil:
		d.Type = head.Type
	default:
		d.Type = AnyType
	}
	switch t := d.Type.(type) {
	case *SimpleType:
		c.resolveSimple(t)
	case *ComplexType:
		c.resolveComplex(t)
	}

	if d.Default == "" && d.Fixed == "" {
		return
	}
	var st *SimpleType
	switch t := d.Type.(type) {
	case *SimpleType:
		st = t
	case *ComplexType:
		switch t.Content {
		case SimpleContent:
			st = t.SimpleType
		case MixedContent:
			return
		default:
			c.fail(at.errorf("element '%s' cannot have a value constraint, its type does not allow text", d.Name.Local))
			return
		}
	}
	if st == nil {
		return
	}
	for _, vc := range [][2]string{{"default", d.Default}, {"fixed", d.Fixed}} {
		kind, value := vc[0], vc[1]
		if value == "" {
			continue
		}
		if err := st.Validate(value); err != nil {
			c.fail(at.errorf("%s value of element '%s' is invalid: %v", kind, d.Name.Local, err))
		}
	}
}

// buildSubstitutions records every global element against each head it
// can substitute for, directly or through another member.
func (c *compiler) buildSubstitutions() {
	for _, e := range c.elements {
		d := e.decl
		if !d.global || d.SubstitutionGroup == (QName{}) {
			continue
		}
		visited := map[QName]bool{d.Name: true}
		for name := d.SubstitutionGroup; name != (QName{}); {
			if visited[name] {
				break
			}
			visited[name] = true
			head, ok := c.schema.ElementDecls[name]
			if !ok {
				break
			}
			c.schema.substitutions[name] = append(c.schema.substitutions[name], d)
			name = head.SubstitutionGroup
		}
	}
}

// indexContent records the element declarations and wildcards reachable in
// the content model of ct.
func indexContent(ct *ComplexType, substitutions map[QName][]*ElementDecl) {
	ct.elements = make(map[QName]*ElementDecl)
	ct.wildcards = nil
	var walk func(p *Particle)
	walk = func(p *Particle) {
		if p == nil || p.MaxOccurs == 0 {
			return
		}
		switch t := p.Term.(type) {
		case *ElementDecl:
			if _, exists := ct.elements[t.Name]; !exists {
				ct.elements[t.Name] = t
			}
			for _, member := range substitutions[t.Name] {
				if _, exists := ct.elements[member.Name]; !exists {
					ct.elements[member.Name] = member
				}
			}
		case *Wildcard:
			ct.wildcards = append(ct.wildcards, t)
		case *ModelGroup:
			for _, child := range t.Particles {
				walk(child)
			}
		}
	}
	walk(ct.Particle)
}
