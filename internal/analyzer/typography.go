package analyzer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"brandkit/internal/brand"
	"brandkit/internal/crawler"
)

// TypographyPass derives the heading and body fonts.
type TypographyPass interface {
	AnalyzeTypography(ctx context.Context, art *crawler.Artifacts) (brand.Typography, error)
}

// FontDetector is the default TypographyPass. It reads font declarations on
// heading and body selectors and takes the most frequent family and weight
// for each level.
type FontDetector struct{}

var (
	headingSelector = regexp.MustCompile(`(^|[^a-z0-9_-])h[1-3]($|[^a-z0-9_-])|\.title\b|\.heading\b`)
	bodySelectors   = map[string]struct{}{"body": {}, "p": {}, "html": {}, ":root": {}}
	genericFamilies = map[string]struct{}{
		"serif": {}, "sans-serif": {}, "monospace": {}, "cursive": {}, "fantasy": {}, "system-ui": {},
		"ui-sans-serif": {}, "ui-serif": {}, "ui-monospace": {}, "ui-rounded": {}, "emoji": {}, "math": {},
		"-apple-system": {}, "blinkmacsystemfont": {}, "inherit": {}, "initial": {}, "unset": {},
	}
	fontSizeToken = regexp.MustCompile(`^[0-9.]+(px|pt|em|rem|%|vw|vh|ex|ch)(/.*)?$|^(xx-small|x-small|small|medium|large|x-large|xx-large|smaller|larger)(/.*)?$`)
)

// tally counts values in first-seen order.
type tally struct {
	order  []string
	counts map[string]int
}

func (t *tally) add(v string) {
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
	}
	t.counts[v]++
}

func (t *tally) top() string {
	best := ""
	for _, v := range t.order {
		if best == "" || t.counts[v] > t.counts[best] {
			best = v
		}
	}
	return best
}

type levelFonts struct {
	families tally
	generics tally
	weights  tally
}

func (l *levelFonts) family() string {
	if f := l.families.top(); f != "" {
		return f
	}
	return l.generics.top()
}

func (l *levelFonts) weight() int {
	w, _ := strconv.Atoi(l.weights.top())
	return w
}

// AnalyzeTypography implements TypographyPass.
func (FontDetector) AnalyzeTypography(ctx context.Context, art *crawler.Artifacts) (brand.Typography, error) {
	typo := brand.DefaultTypography()
	if art == nil {
		return typo, nil
	}
	var heading, body levelFonts
	for _, rule := range art.FontRules() {
		if err := ctx.Err(); err != nil {
			return brand.Typography{}, err
		}
		var level *levelFonts
		switch {
		case headingSelector.MatchString(strings.ToLower(rule.Selector)):
			level = &heading
		case isBodySelector(rule.Selector):
			level = &body
		default:
			continue
		}
		value := resolveVars(rule.Value, art.CustomProperties, 0)
		switch rule.Property {
		case "font-family":
			level.addFamily(value)
		case "font-weight":
			if w, ok := parseWeight(value); ok {
				level.weights.add(strconv.Itoa(w))
			}
		case "font":
			family, weight := parseFontShorthand(value)
			if family != "" {
				level.addFamily(family)
			}
			if weight > 0 {
				level.weights.add(strconv.Itoa(weight))
			}
		}
	}

	headingFont, bodyFont := heading.family(), body.family()
	switch {
	case headingFont == "" && bodyFont != "":
		headingFont = bodyFont
	case bodyFont == "" && headingFont != "":
		bodyFont = headingFont
	}
	if headingFont != "" {
		typo.HeadingFont = headingFont
		typo.BodyFont = bodyFont
	}
	if w := heading.weight(); w > 0 {
		typo.HeadingWeight = w
	}
	if w := body.weight(); w > 0 {
		typo.BodyWeight = w
	}
	return typo, nil
}

func (l *levelFonts) addFamily(list string) {
	var generic string
	for _, part := range strings.Split(list, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name == "" {
			continue
		}
		if _, ok := genericFamilies[strings.ToLower(name)]; ok {
			if generic == "" {
				generic = strings.ToLower(name)
			}
			continue
		}
		l.families.add(name)
		return
	}
	if generic != "" {
		l.generics.add(generic)
	}
}

func isBodySelector(selector string) bool {
	for _, part := range strings.Split(selector, ",") {
		if _, ok := bodySelectors[strings.ToLower(strings.TrimSpace(part))]; ok {
			return true
		}
	}
	return false
}

// parseWeight maps a CSS font-weight to 100-900.
func parseWeight(value string) (int, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "normal":
		return 400, true
	case "bold", "bolder":
		return 700, true
	case "lighter":
		return 300, true
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	w := int(n)
	return min(900, max(100, w)), true
}

// parseFontShorthand extracts the family list and weight from a font
// shorthand such as "italic 700 16px/1.5 'Inter', sans-serif".
func parseFontShorthand(value string) (family string, weight int) {
	fields := strings.Fields(value)
	for i, field := range fields {
		lower := strings.ToLower(field)
		if fontSizeToken.MatchString(lower) {
			rest := fields[i+1:]
			// A separate "/ 1.5" line height follows the size.
			if len(rest) > 0 && strings.HasPrefix(rest[0], "/") {
				if rest[0] == "/" && len(rest) > 1 {
					rest = rest[1:]
				}
				rest = rest[1:]
			}
			family = strings.Join(rest, " ")
			break
		}
		if w, ok := parseWeight(lower); ok && lower != "normal" {
			weight = w
		}
	}
	return family, weight
}

// resolveVars substitutes var(--name) references with their custom property
// values or fallbacks.
func resolveVars(value string, custom map[string]string, depth int) string {
	idx := strings.Index(strings.ToLower(value), "var(")
	if idx < 0 || depth >= maxVarDepth {
		return value
	}
	end := matchingParen(value, idx+3)
	if end < 0 {
		return value
	}
	name, fallback := splitVar(value[idx : end+1])
	replacement, ok := custom[name]
	if !ok {
		replacement = fallback
	}
	out := value[:idx] + replacement + value[end+1:]
	return resolveVars(out, custom, depth+1)
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
