package pattern

import (
	"fmt"
	"strings"
	"unicode"
)

type parser struct {
	text string
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d in %q", ErrSyntax, fmt.Sprintf(format, args...), p.pos, p.text)
}

func (p *parser) eof() bool { return p.pos >= len(p.text) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.text[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.text[p.pos])) {
		p.pos++
	}
}

func (p *parser) consume(token string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.text[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *parser) expect(token string) error {
	if !p.consume(token) {
		return p.errorf("expected %q", token)
	}
	return nil
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

// name lee un identificador simple o entre backticks (`` dentro del nombre es un backtick literal).
func (p *parser) name() (string, error) {
	p.skipSpace()

	if p.peek() == '`' {
		p.pos++
		var sb strings.Builder
		for {
			if p.eof() {
				return "", p.errorf("unterminated quoted name")
			}
			c := p.text[p.pos]
			p.pos++
			if c == '`' {
				if p.peek() == '`' {
					sb.WriteByte('`')
					p.pos++
					continue
				}
				break
			}
			sb.WriteByte(c)
		}
		if sb.Len() == 0 {
			return "", p.errorf("empty quoted name")
		}
		return sb.String(), nil
	}

	start := p.pos
	for !p.eof() && isIdentChar(p.text[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", p.errorf("expected a name")
	}
	return p.text[start:p.pos], nil
}

func (p *parser) path() (string, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && (isIdentChar(p.text[p.pos]) || p.text[p.pos] == '.') {
		p.pos++
	}
	path := p.text[start:p.pos]
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, "..") {
		return "", p.errorf("invalid field path %q", path)
	}
	return path, nil
}

func (p *parser) parseNode() (*Node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}

	node := &Node{}
	for p.consume(":") {
		label, err := p.name()
		if err != nil {
			return nil, err
		}
		node.Labels = append(node.Labels, label)
	}
	if len(node.Labels) == 0 {
		return nil, p.errorf("node pattern requires at least one label")
	}

	p.skipSpace()
	if p.peek() == '{' {
		entity, err := p.parseEntity()
		if err != nil {
			return nil, err
		}
		node.Entity = *entity
	}

	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseRelationship(start *Node) (*Relationship, error) {
	reversed := false
	if p.consume("<-") {
		reversed = true
	} else if err := p.expect("-"); err != nil {
		return nil, err
	}

	if err := p.expect("["); err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}

	relType, err := p.name()
	if err != nil {
		return nil, err
	}
	rel := &Relationship{Type: relType}

	p.skipSpace()
	if p.peek() == '{' {
		entity, err := p.parseEntity()
		if err != nil {
			return nil, err
		}
		rel.Entity = *entity
	}

	if err := p.expect("]"); err != nil {
		return nil, err
	}

	if reversed {
		if err := p.expect("-"); err != nil {
			return nil, err
		}
	} else if err := p.expect("->"); err != nil {
		return nil, err
	}

	p.skipSpace()
	end, err := p.parseNode()
	if err != nil {
		return nil, err
	}

	if reversed {
		start, end = end, start
	}
	rel.Start = start
	rel.End = end

	return rel, nil
}

func (p *parser) parseEntity() (*Entity, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}

	entity := &Entity{}
	if p.consume("}") {
		return entity, nil
	}

	for {
		if err := p.parseEntry(entity); err != nil {
			return nil, err
		}
		if p.consume(",") {
			continue
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		return entity, nil
	}
}

func (p *parser) parseEntry(entity *Entity) error {
	switch {
	case p.consume("*"):
		entity.Wildcard = true
		return nil

	case p.consume("-"):
		name, err := p.name()
		if err != nil {
			return err
		}
		entity.Excluded = append(entity.Excluded, name)
		return nil
	}

	isKey := p.consume("!")

	name, err := p.name()
	if err != nil {
		return err
	}

	prop := Property{Name: name, Path: name}
	if p.consume(":") {
		path, err := p.path()
		if err != nil {
			return err
		}
		prop.Path = path
	}

	if isKey {
		entity.Keys = append(entity.Keys, prop)
	} else {
		entity.Properties = append(entity.Properties, prop)
	}
	return nil
}

func (p *parser) validate(e *Entity, requireKeys bool, what string) error {
	if requireKeys && len(e.Keys) == 0 {
		return p.errorf("%s has no identity property (prefix one with '!')", what)
	}

	if len(e.Properties) > 0 && len(e.Excluded) > 0 {
		return p.errorf("%s mixes included and excluded properties", what)
	}
	if e.Wildcard && len(e.Properties) > 0 {
		return p.errorf("%s combines '*' with explicit properties", what)
	}

	seen := make(map[string]struct{}, len(e.Keys)+len(e.Properties)+len(e.Excluded))
	check := func(name string) error {
		if _, dup := seen[name]; dup {
			return p.errorf("%s declares property %q more than once", what, name)
		}
		seen[name] = struct{}{}
		return nil
	}

	for _, k := range e.Keys {
		if err := check(k.Name); err != nil {
			return err
		}
	}
	for _, prop := range e.Properties {
		if err := check(prop.Name); err != nil {
			return err
		}
	}
	for _, x := range e.Excluded {
		if err := check(x); err != nil {
			return err
		}
	}
	return nil
}
