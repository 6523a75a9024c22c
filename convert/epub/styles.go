package epub

import (
	"bytes"
	_ "embed"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// baseCSS is the book stylesheet packaged with every build.
//
//go:embed style.css
var baseCSS []byte

// kdpModeCSS carries the navigation hiding rules the kdp channel depends
// on. The base stylesheet already contains them, this is the safety net for
// a trimmed down stylesheet.
const kdpModeCSS = `
/* KDP Mode - Hide navigation */
body.kdp-mode .navigation-buttons,
body.kdp-mode .nav-button,
body.kdp-mode .enter-button {
    display: none !important;
}
`

// Stylesheet returns the stylesheet for a build. When kdp is set the result
// is guaranteed to carry the kdp-mode rules.
func Stylesheet(kdp bool) []byte {
	if !kdp {
		return baseCSS
	}
	return EnsureKDPRules(baseCSS)
}

// EnsureKDPRules appends the kdp-mode rules unless a kdp-mode selector is
// already present. Presence is determined by lexing, a mention inside a
// comment does not count.
func EnsureKDPRules(sheet []byte) []byte {
	if hasIdent(sheet, "kdp-mode") {
		return sheet
	}
	out := make([]byte, 0, len(sheet)+len(kdpModeCSS))
	out = append(out, sheet...)
	out = append(out, kdpModeCSS...)
	return out
}

func hasIdent(sheet []byte, ident string) bool {

	l := css.NewLexer(parse.NewInputBytes(sheet))
	want := []byte(ident)
	for {
		tt, text := l.Next()
		switch tt {
		case css.ErrorToken:
			return false
		case css.IdentToken:
			if bytes.Equal(text, want) {
				return true
			}
		}
	}
}
