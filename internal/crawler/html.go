package crawler

import (
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxTextRunes = 200_000

// document is what the crawler keeps from one parsed HTML page.
type document struct {
	title        string
	description  string
	keywords     []string
	robots       string
	text         string
	styleBlocks  []string
	inlineStyles []StyleRule
	stylesheets  []string
	images       []string
	links        []string
}

// parseDocument walks the HTML tree once. Relative references are resolved
// against base.
func parseDocument(r io.Reader, base *url.URL) (*document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	doc := &document{}
	var text strings.Builder
	var ogImages, icons []string

	var walk func(n *html.Node, hidden bool)
	walk = func(n *html.Node, hidden bool) {
		switch n.Type {
		case html.TextNode:
			if !hidden && text.Len() < maxTextRunes {
				if chunk := strings.Join(strings.Fields(n.Data), " "); chunk != "" {
					if text.Len() > 0 {
						text.WriteByte(' ')
					}
					text.WriteString(chunk)
				}
			}
			return
		case html.ElementNode:
			if style := attr(n, "style"); style != "" {
				doc.inlineStyles = append(doc.inlineStyles, StyleRule{Selector: n.Data, Value: style})
			}
			switch n.DataAtom {
			case atom.Title:
				if doc.title == "" {
					doc.title = strings.Join(strings.Fields(nodeText(n)), " ")
				}
				return
			case atom.Style:
				doc.styleBlocks = append(doc.styleBlocks, nodeText(n))
				return
			case atom.Script, atom.Noscript, atom.Svg, atom.Template, atom.Head:
				hidden = true
			case atom.Meta:
				doc.readMeta(n, base, &ogImages)
			case atom.Link:
				doc.readLink(n, base, &icons)
			case atom.A:
				if href, ok := resolve(base, attr(n, "href")); ok {
					doc.links = append(doc.links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, hidden)
		}
	}
	walk(root, false)

	doc.text = text.String()
	doc.images = append(ogImages, icons...)
	return doc, nil
}

func (d *document) readMeta(n *html.Node, base *url.URL, ogImages *[]string) {
	name := strings.ToLower(attr(n, "name"))
	if name == "" {
		name = strings.ToLower(attr(n, "property"))
	}
	content := strings.TrimSpace(attr(n, "content"))
	switch name {
	case "description", "og:description":
		if d.description == "" {
			d.description = content
		}
	case "keywords":
		for _, kw := range strings.Split(content, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				d.keywords = append(d.keywords, kw)
			}
		}
	case "robots":
		d.robots = strings.ToLower(content)
	case "og:image", "og:image:url", "twitter:image":
		if ref, ok := resolve(base, content); ok {
			*ogImages = append(*ogImages, ref)
		}
	}
}

func (d *document) readLink(n *html.Node, base *url.URL, icons *[]string) {
	rels := strings.Fields(strings.ToLower(attr(n, "rel")))
	for _, rel := range rels {
		switch rel {
		case "stylesheet":
			if ref, ok := resolve(base, attr(n, "href")); ok {
				d.stylesheets = append(d.stylesheets, ref)
			}
			return
		case "icon", "apple-touch-icon":
			if ref, ok := resolve(base, attr(n, "href")); ok {
				*icons = append(*icons, ref)
			}
			return
		}
	}
}

// blocksCrawlers reports a robots meta tag that opts out of indexing.
func (d *document) blocksCrawlers() bool {
	for _, token := range strings.FieldsFunc(d.robots, func(r rune) bool { return r == ',' || r == ' ' }) {
		switch token {
		case "noindex", "none", "noai":
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".zip": {}, ".gz": {}, ".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".rss": {},
	".mp4": {}, ".mov": {}, ".webm": {}, ".mp3": {}, ".woff": {}, ".woff2": {},
}

// subpageCandidates returns distinct same-host page links, excluding home and
// asset files, in document order.
func subpageCandidates(home *url.URL, links []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	seen := map[string]struct{}{canonicalPage(home): {}}
	var out []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || !strings.EqualFold(u.Hostname(), home.Hostname()) {
			continue
		}
		if _, skip := skippedExtensions[strings.ToLower(path.Ext(u.Path))]; skip {
			continue
		}
		key := canonicalPage(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u.String())
		if len(out) == limit {
			break
		}
	}
	return out
}

func canonicalPage(u *url.URL) string {
	p := strings.TrimSuffix(u.EscapedPath(), "/")
	key := strings.ToLower(u.Hostname()) + p
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}
