package crawler

import (
	"bytes"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// styleCollector accumulates declarations from stylesheets and style
// attributes.
type styleCollector struct {
	rules  []StyleRule
	custom map[string]string
}

func newStyleCollector() *styleCollector {
	return &styleCollector{custom: make(map[string]string)}
}

// addStylesheet parses a full stylesheet. Malformed input stops parsing at the
// first error and keeps what was read so far.
func (c *styleCollector) addStylesheet(src string) {
	p := css.NewParser(parse.NewInput(strings.NewReader(src)), false)
	var (
		selectors []string
		stack     []string
	)
	current := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, joinSelector(p.Values()))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, joinSelector(p.Values()))
			stack = append(stack, strings.Join(selectors, ", "))
			selectors = selectors[:0]
		case css.EndRulesetGrammar:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case css.DeclarationGrammar:
			c.addDeclaration(current(), string(data), joinValue(p.Values()))
		case css.CustomPropertyGrammar:
			c.addCustomProperty(current(), string(data), joinValue(p.Values()))
		}
	}
}

// addInline parses the declarations of a style attribute.
func (c *styleCollector) addInline(selector, src string) {
	p := css.NewParser(parse.NewInput(strings.NewReader(src)), true)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.DeclarationGrammar:
			c.addDeclaration(selector, string(data), joinValue(p.Values()))
		case css.CustomPropertyGrammar:
			c.addCustomProperty(selector, string(data), joinValue(p.Values()))
		}
	}
}

func (c *styleCollector) addDeclaration(selector, property, value string) {
	property = strings.ToLower(strings.TrimSpace(property))
	value = stripImportant(value)
	if property == "" || value == "" || !recordedProperty(property) {
		return
	}
	c.rules = append(c.rules, StyleRule{Selector: selector, Property: property, Value: value})
}

func (c *styleCollector) addCustomProperty(selector, name, value string) {
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(name, "--") || value == "" {
		return
	}
	c.custom[name] = value
	c.rules = append(c.rules, StyleRule{Selector: selector, Property: name, Value: value})
}

func stripImportant(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasSuffix(strings.ToLower(value), "important") {
		return value
	}
	head := strings.TrimSpace(value[:len(value)-len("important")])
	if !strings.HasSuffix(head, "!") {
		return value
	}
	return strings.TrimSpace(strings.TrimSuffix(head, "!"))
}

// joinSelector concatenates selector tokens as written.
func joinSelector(tokens []css.Token) string {
	var buf bytes.Buffer
	for _, tok := range tokens {
		buf.Write(tok.Data)
	}
	return strings.Join(strings.Fields(buf.String()), " ")
}

var valueTidy = strings.NewReplacer("( ", "(", " )", ")", " ,", ",", ", ", ",")

// joinValue rebuilds a declaration value with single spaces between tokens
// and no spaces around commas or parentheses.
func joinValue(tokens []css.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.TokenType == css.WhitespaceToken || tok.TokenType == css.CommentToken {
			continue
		}
		parts = append(parts, string(tok.Data))
	}
	out := strings.Join(parts, " ")
	for {
		next := valueTidy.Replace(out)
		if next == out {
			return out
		}
		out = next
	}
}
