package crawler

import (
	"image"
	"strings"
)

// Artifacts is the raw material gathered from one crawl.
type Artifacts struct {
	URL          string
	FinalURL     string
	Title        string
	Description  string
	MetaKeywords []string
	Pages        []Page
	Text         string
	StyleRules   []StyleRule
	// CustomProperties maps CSS custom property names (with leading "--") to
	// their last declared value.
	CustomProperties map[string]string
	Samples          []Sample
	Failures         []Failure
}

// Page is one fetched HTML document.
type Page struct {
	URL    string
	Title  string
	Status int
	Bytes  int
}

// StyleRule is a single CSS declaration and the selector it applied to. Inline
// style attributes use the element tag name as selector.
type StyleRule struct {
	Selector string
	Property string
	Value    string
}

// Sample is a decoded visual sample of the site.
type Sample struct {
	Source string
	Image  image.Image
}

// Failure records a non-fatal fetch problem.
type Failure struct {
	URL  string
	Kind string
	Err  string
}

// ColorRules returns the recorded color declarations and custom property
// declarations, which may hold colors.
func (a *Artifacts) ColorRules() []StyleRule {
	return a.filterRules(func(prop string) bool {
		return isColorProperty(prop) || strings.HasPrefix(prop, "--")
	})
}

// FontRules returns the recorded font declarations.
func (a *Artifacts) FontRules() []StyleRule {
	return a.filterRules(isFontProperty)
}

func (a *Artifacts) filterRules(keep func(string) bool) []StyleRule {
	if a == nil {
		return nil
	}
	var out []StyleRule
	for _, rule := range a.StyleRules {
		if keep(rule.Property) {
			out = append(out, rule)
		}
	}
	return out
}

func isColorProperty(prop string) bool {
	switch prop {
	case "color", "background", "background-color", "border-color", "fill":
		return true
	}
	return false
}

func isFontProperty(prop string) bool {
	switch prop {
	case "font-family", "font-weight", "font":
		return true
	}
	return false
}

func recordedProperty(prop string) bool {
	return isColorProperty(prop) || isFontProperty(prop)
}
