package convert

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"ebc/book"
)

// errNoBody marks source documents without a body element. Such files are
// reported and dropped, the spine simply skips them.
var errNoBody = errors.New("document has no body element")

// xhtmlOptions select document specific conversion behavior.
type xhtmlOptions struct {
	// Cover documents live at the OEBPS root, next to the images and
	// styles directories instead of under Text.
	Cover bool
	// TOC documents get bare page number spans removed, page numbers mean
	// nothing in a reflowable book.
	TOC bool
	// KDP adds the kdp-mode body class which hides on-screen navigation.
	KDP bool
}

// transformRule is a single named pass over the parsed document. Rules run
// in declaration order, every rule sees the output of the previous one.
type transformRule struct {
	name  string
	apply func(doc *goquery.Document, body *goquery.Selection, opt xhtmlOptions)
}

var transformRules = []transformRule{
	{
		name: "remove-navigation",
		apply: func(_ *goquery.Document, body *goquery.Selection, _ xhtmlOptions) {
			body.Find("nav, header, footer").Remove()
			body.Find(".navigation-buttons, .nav-button, .enter-button, .navigation, .nav-link").Remove()
		},
	},
	{
		name: "remove-scripts-styles",
		apply: func(doc *goquery.Document, _ *goquery.Selection, _ xhtmlOptions) {
			doc.Find("script, style").Remove()
			doc.Find("link[rel=stylesheet]").Remove()
		},
	},
	{
		name: "strip-comments",
		apply: func(_ *goquery.Document, body *goquery.Selection, _ xhtmlOptions) {
			for _, n := range body.Nodes {
				stripComments(n)
			}
		},
	},
	{
		name: "strip-page-numbers",
		apply: func(_ *goquery.Document, body *goquery.Selection, opt xhtmlOptions) {
			if !opt.TOC {
				return
			}
			body.Find("span").Each(func(_ int, s *goquery.Selection) {
				if isDigits(strings.TrimSpace(s.Text())) {
					s.Remove()
				}
			})
		},
	},
	{
		name: "rewrite-images",
		apply: func(_ *goquery.Document, body *goquery.Selection, opt xhtmlOptions) {
			prefix := "../images/"
			if opt.Cover {
				prefix = "images/"
			}
			body.Find("img").Each(func(_ int, s *goquery.Selection) {
				src, _ := s.Attr("src")
				if len(src) == 0 {
					return
				}
				filename := book.SanitizeAssetName(path.Base(src))
				s.SetAttr("src", prefix+filename)
				if alt, _ := s.Attr("alt"); len(alt) == 0 {
					s.SetAttr("alt", altFromFilename(filename))
				}
			})
		},
	},
	{
		name: "rewrite-links",
		apply: func(_ *goquery.Document, body *goquery.Selection, opt xhtmlOptions) {
			body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				href, _ := s.Attr("href")
				if !strings.HasSuffix(href, ".html") || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
					return
				}
				href = strings.TrimSuffix(href, ".html") + ".xhtml"
				if href == "index.xhtml" {
					// the cover document is renamed and lives one level up
					if opt.Cover {
						href = "cover.xhtml"
					} else {
						href = "../cover.xhtml"
					}
				}
				s.SetAttr("href", href)
			})
		},
	},
}

// convertDocument turns a source HTML chapter into a well-formed XHTML
// document. The returned title comes from the source head.
func convertDocument(data []byte, opt xhtmlOptions, log *zap.Logger) (string, []byte, error) {

	// the parser synthesizes a body for any input, check the source itself
	if !bytes.Contains(bytes.ToLower(data), []byte("<body")) {
		return "", nil, errNoBody
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("unable to parse document: %w", err)
	}

	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if len(title) == 0 {
		title = "Untitled"
	}

	body := doc.Find("body").First()

	for _, rule := range transformRules {
		rule.apply(doc, body, opt)
		log.Debug("Applied transform rule", zap.String("rule", rule.name))
	}

	var buf bytes.Buffer
	for c := body.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		renderXHTML(&buf, c)
	}

	bodyClass := bodyClassAttr(body, opt.KDP)
	cssPath := "../Styles/style.css"
	if opt.Cover {
		cssPath = "Styles/style.css"
	}

	var out bytes.Buffer
	out.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	out.WriteString("<!DOCTYPE html>\n")
	out.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\" xml:lang=\"en\">\n")
	out.WriteString("<head>\n")
	out.WriteString("    <meta charset=\"UTF-8\"/>\n")
	out.WriteString("    <title>" + html.EscapeString(title) + "</title>\n")
	out.WriteString("    <link rel=\"stylesheet\" type=\"text/css\" href=\"" + cssPath + "\"/>\n")
	out.WriteString("</head>\n")
	out.WriteString("<body" + bodyClass + ">\n")
	out.Write(buf.Bytes())
	out.WriteString("\n</body>\n")
	out.WriteString("</html>\n")

	return title, normalizeEntities(out.Bytes()), nil
}

func bodyClassAttr(body *goquery.Selection, kdp bool) string {
	var classes []string
	if v, ok := body.Attr("class"); ok {
		classes = strings.Fields(v)
	}
	if kdp {
		found := false
		for _, c := range classes {
			if c == "kdp-mode" {
				found = true
				break
			}
		}
		if !found {
			classes = append(classes, "kdp-mode")
		}
	}
	if len(classes) == 0 {
		return ""
	}
	return ` class="` + strings.Join(classes, " ") + `"`
}

func stripComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripComments(c)
		}
		c = next
	}
}

func isDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func altFromFilename(filename string) string {
	alt := strings.TrimSuffix(filename, path.Ext(filename))
	alt = strings.ReplaceAll(alt, "-", " ")
	alt = strings.ReplaceAll(alt, "_", " ")
	return alt
}

// voidElements are HTML elements that must be self-closing in XHTML.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Wbr: true,
}

// renderXHTML renders an html.Node tree as XHTML (self-closing void elements).
func renderXHTML(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		buf.WriteByte('<')
		buf.WriteString(n.Data)
		for _, a := range n.Attr {
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteString(`="`)
			buf.WriteString(html.EscapeString(a.Val))
			buf.WriteByte('"')
		}
		if voidElements[n.DataAtom] && n.FirstChild == nil {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
	case html.CommentNode:
		// dropped, comments are not content
	case html.RawNode:
		buf.WriteString(n.Data)
	}
}

// entityRe matches references that are already valid in XML: named,
// decimal and hexadecimal.
var entityRe = regexp.MustCompile(`^&(?:[a-zA-Z][a-zA-Z0-9]*|#[0-9]+|#x[0-9a-fA-F]+);`)

// normalizeEntities makes the serialized document safe for strict XML
// consumers: non-breaking spaces become numeric references and every
// ampersand that is not part of a valid reference is escaped.
func normalizeEntities(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("&nbsp;"), []byte("&#160;"))
	data = bytes.ReplaceAll(data, []byte("\u00a0"), []byte("&#160;"))

	var out bytes.Buffer
	out.Grow(len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '&' {
			out.WriteByte(data[i])
			continue
		}
		if m := entityRe.Find(data[i:]); m != nil {
			out.Write(m)
			i += len(m) - 1
			continue
		}
		out.WriteString("&amp;")
	}
	return out.Bytes()
}
