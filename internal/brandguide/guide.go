// Package brandguide renders a brand profile as a shareable style guide.
package brandguide

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"brandkit/internal/brand"
	"brandkit/internal/platform"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders p as a markdown document.
func Markdown(p *brand.Profile) string {
	var b strings.Builder
	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = "Untitled brand"
	}
	fmt.Fprintf(&b, "# %s brand guide\n\n", escape(name))
	if p.SourceURL != "" {
		fmt.Fprintf(&b, "Extracted from <%s>.\n\n", p.SourceURL)
	}
	if p.ExtractionStatus != brand.StatusComplete {
		fmt.Fprintf(&b, "> Extraction is %s; values below may still be defaults.\n\n", p.ExtractionStatus)
	} else if !p.Confirmed {
		b.WriteString("> This profile has not been confirmed yet.\n\n")
	}

	b.WriteString("## Colors\n\n| Role | Hex |\n| --- | --- |\n")
	for _, row := range [][2]string{
		{"Primary", p.Colors.Primary},
		{"Secondary", p.Colors.Secondary},
		{"Accent", p.Colors.Accent},
		{"Background", p.Colors.Background},
		{"Text", p.Colors.Text},
	} {
		fmt.Fprintf(&b, "| %s | `%s` |\n", row[0], row[1])
	}

	b.WriteString("\n## Typography\n\n| Use | Font | Weight |\n| --- | --- | --- |\n")
	fmt.Fprintf(&b, "| Headings | %s | %d |\n", escape(p.Typography.HeadingFont), p.Typography.HeadingWeight)
	fmt.Fprintf(&b, "| Body | %s | %d |\n", escape(p.Typography.BodyFont), p.Typography.BodyWeight)

	b.WriteString("\n## Voice\n\n")
	fmt.Fprintf(&b, "- Tone: %s\n", p.Tone)
	fmt.Fprintf(&b, "- Industry: %s\n", strings.ReplaceAll(p.Industry, "_", " "))
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "- Keywords: %s\n", escape(strings.Join(p.Keywords, ", ")))
	}

	b.WriteString("\n## Logo\n\n")
	if p.HasLogo() {
		fmt.Fprintf(&b, "Placed %s at %s size (%.0f%% of the shorter side) with %.0f%% opacity.\n",
			p.Logo.Position, p.Logo.Size, p.Logo.Size.Fraction()*100, p.Logo.Opacity*100)
	} else {
		b.WriteString("No logo uploaded. Content cannot be generated until one is set.\n")
	}

	b.WriteString("\n## Platforms\n\n| Platform | Size | Aspect |\n| --- | --- | --- |\n")
	for _, spec := range platform.All() {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", spec.Name, spec.Dimensions(), spec.AspectRatio)
	}
	return b.String()
}

// HTML renders p as a standalone HTML page.
func HTML(p *brand.Profile) (string, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(p)), &body); err != nil {
		return "", fmt.Errorf("render brand guide: %w", err)
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s brand guide</title>\n", html.EscapeString(p.Name))
	fmt.Fprintf(&b, "<style>body{font-family:'%s',sans-serif;color:%s;background:%s;max-width:48rem;margin:2rem auto}"+
		"h1,h2{font-family:'%s',sans-serif;color:%s}</style>\n",
		cssSafe(p.Typography.BodyFont), cssSafe(p.Colors.Text), cssSafe(p.Colors.Background),
		cssSafe(p.Typography.HeadingFont), cssSafe(p.Colors.Primary))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

var mdEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return mdEscaper.Replace(s) }

// cssSafe keeps only characters that can appear in a font name or hex color.
func cssSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-', r == '#':
			return r
		}
		return -1
	}, s)
}
