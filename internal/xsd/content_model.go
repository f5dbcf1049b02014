package xsd

import (
	"fmt"

	"github.com/agentflare-ai/go-xmldom"
)

// positions is a set of child indexes, 0 through len(children). Index i
// means the first i children have been consumed.
type positions []bool

func (p positions) empty() bool {
	for _, in := range p {
		if in {
			return false
		}
	}
	return true
}

func (p positions) union(q positions) {
	for i, in := range q {
		if in {
			p[i] = true
		}
	}
}

func (p positions) subsetOf(q positions) bool {
	for i, in := range p {
		if in && !q[i] {
			return false
		}
	}
	return true
}

// contentMatcher runs a content model over the element children of one
// element, tracking every position reachable after each particle. The
// furthest position reached and the names that could have continued from
// it drive the error report.
type contentMatcher struct {
	names         []QName
	substitutions map[QName][]*ElementDecl

	furthest int
	expected map[int][]string
}

func newContentMatcher(children []xmldom.Element, substitutions map[QName][]*ElementDecl) *contentMatcher {
	m := &contentMatcher{
		names:         make([]QName, len(children)),
		substitutions: substitutions,
		expected:      make(map[int][]string),
	}
	for i, child := range children {
		m.names[i] = QName{Namespace: string(child.NamespaceURI()), Local: string(child.LocalName())}
	}
	return m
}

func (m *contentMatcher) set() positions {
	return make(positions, len(m.names)+1)
}

func (m *contentMatcher) reach(pos int) {
	if pos > m.furthest {
		m.furthest = pos
	}
}

func (m *contentMatcher) expect(pos int, name string) {
	for _, seen := range m.expected[pos] {
		if seen == name {
			return
		}
	}
	m.expected[pos] = append(m.expected[pos], name)
}

// match reports whether p accepts exactly the children.
func (m *contentMatcher) match(p *Particle) bool {
	start := m.set()
	start[0] = true
	if p == nil {
		return len(m.names) == 0
	}
	return m.particle(p, start)[len(m.names)]
}

func (m *contentMatcher) particle(p *Particle, in positions) positions {
	out := m.set()
	if p.MinOccurs == 0 {
		out.union(in)
	}
	if p.MaxOccurs == 0 {
		return out
	}
	reached := m.set()
	prev := in
	for i := 1; ; i++ {
		cur := m.term(p.Term, prev)
		if cur.empty() {
			break
		}
		if i >= p.MinOccurs {
			out.union(cur)
			if p.MaxOccurs != Unbounded && i >= p.MaxOccurs {
				break
			}
			// Further repetitions cannot reach anything new once every
			// position has been expanded before.
			if cur.subsetOf(reached) {
				break
			}
			reached.union(cur)
		}
		prev = cur
	}
	return out
}

func (m *contentMatcher) term(t Term, in positions) positions {
	switch t := t.(type) {
	case *ElementDecl:
		return m.step(in, t.Name.Local, func(name QName) bool { return m.accepts(t, name) })
	case *Wildcard:
		return m.step(in, "*", func(name QName) bool { return t.Allows(name.Namespace) })
	case *ModelGroup:
		switch t.Compositor {
		case Sequence:
			cur := in
			for _, p := range t.Particles {
				cur = m.particle(p, cur)
				if cur.empty() {
					break
				}
			}
			return cur
		case Choice:
			out := m.set()
			for _, p := range t.Particles {
				out.union(m.particle(p, in))
			}
			return out
		case All:
			return m.all(t, in)
		}
	}
	return m.set()
}

// step consumes one child at every position of in that ok accepts.
func (m *contentMatcher) step(in positions, expected string, ok func(QName) bool) positions {
	out := m.set()
	for pos, present := range in {
		if !present {
			continue
		}
		if pos < len(m.names) && ok(m.names[pos]) {
			out[pos+1] = true
			m.reach(pos + 1)
			continue
		}
		m.expect(pos, expected)
	}
	return out
}

func (m *contentMatcher) accepts(decl *ElementDecl, name QName) bool {
	if decl.Name == name {
		return true
	}
	for _, member := range m.substitutions[decl.Name] {
		if member.Name == name {
			return true
		}
	}
	return false
}

// all matches an xs:all group, whose particles appear at most once each in
// any order. States pair a position with the set of particles used.
func (m *contentMatcher) all(g *ModelGroup, in positions) positions {
	type state struct {
		pos  int
		used uint64
	}
	var required uint64
	for i, p := range g.Particles {
		if p.MinOccurs > 0 {
			required |= 1 << i
		}
	}

	out := m.set()
	var queue []state
	visited := make(map[state]bool)
	for pos, present := range in {
		if present {
			s := state{pos: pos}
			visited[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.used&required == required {
			out[s.pos] = true
		}
		for i, p := range g.Particles {
			if s.used&(1<<i) != 0 {
				continue
			}
			decl, ok := p.Term.(*ElementDecl)
			if !ok {
				continue
			}
			if s.pos < len(m.names) && m.accepts(decl, m.names[s.pos]) {
				next := state{pos: s.pos + 1, used: s.used | 1<<i}
				m.reach(next.pos)
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
				continue
			}
			m.expect(s.pos, decl.Name.Local)
		}
	}
	return out
}

// validateContent checks the element children of elem against the content
// model of ct and returns at most one violation.
func validateContent(elem xmldom.Element, ct *ComplexType, children []xmldom.Element, substitutions map[QName][]*ElementDecl) *Violation {
	m := newContentMatcher(children, substitutions)
	if m.match(ct.Particle) {
		return nil
	}

	if m.furthest < len(children) {
		child := children[m.furthest]
		name := string(child.LocalName())
		v := &Violation{
			Element:  child,
			Code:     "cvc-complex-type.2.4.d",
			Message:  fmt.Sprintf("Unexpected element '%s'", name),
			Expected: m.expected[m.furthest],
			Actual:   name,
		}
		if len(v.Expected) > 0 {
			v.Code = "cvc-complex-type.2.4.a"
		}
		return v
	}
	return &Violation{
		Element:  elem,
		Code:     "cvc-complex-type.2.4.b",
		Message:  fmt.Sprintf("Required element missing in '%s'", elem.LocalName()),
		Expected: m.expected[len(children)],
	}
}
