package convert

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"ebc/book"
)

// printCSS is the print stylesheet snippet maintained in the chapter files,
// a comment header followed by a single "@media print" block.
//
//go:embed print.css
var printCSS string

// PrintCSSStats summarizes a print stylesheet pass over the chapter files.
type PrintCSSStats struct {
	// Added counts files that received the block for the first time.
	Added int
	// Updated counts files where an existing block was replaced.
	Updated int
	// Skipped counts files without an embedded style element.
	Skipped int
	// Missing counts chapter files absent from the project directory.
	Missing int
}

// ProcessPrintCSS injects or refreshes the "@media print" block in every
// chapter file that carries one. Running it twice is safe, an existing block
// is replaced rather than duplicated.
func ProcessPrintCSS(srcDir string, log *zap.Logger) (PrintCSSStats, error) {

	var stats PrintCSSStats
	for _, name := range book.PrintTargets() {
		path := filepath.Join(srcDir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("Chapter file not found", zap.String("file", name))
				stats.Missing++
				continue
			}
			return stats, fmt.Errorf("unable to read %s: %w", path, err)
		}

		out, action := injectPrintCSS(data)
		switch action {
		case printAdded:
			stats.Added++
		case printUpdated:
			stats.Updated++
		case printSkipped:
			log.Warn("Chapter file has no style element", zap.String("file", name))
			stats.Skipped++
			continue
		}

		if bytes.Equal(out, data) {
			continue
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return stats, fmt.Errorf("unable to write %s: %w", path, err)
		}
		log.Debug("Processed print styles", zap.String("file", name), zap.String("action", action.String()))
	}
	return stats, nil
}

type printAction int

const (
	printAdded printAction = iota
	printUpdated
	printSkipped
)

func (a printAction) String() string {
	switch a {
	case printAdded:
		return "added"
	case printUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

// injectPrintCSS returns the updated document and what was done to it.
func injectPrintCSS(data []byte) ([]byte, printAction) {

	if start, end, ok := locateMediaPrint(data); ok {
		tstart, tend, _ := locateMediaPrint([]byte(printCSS))
		var out bytes.Buffer
		out.Grow(len(data))
		out.Write(data[:start])
		out.WriteString(printCSS[tstart:tend])
		out.Write(data[end:])
		return out.Bytes(), printUpdated
	}

	idx := bytes.Index(data, []byte("</style>"))
	if idx < 0 {
		return data, printSkipped
	}

	// the closing tag keeps its own indentation, the snippet goes right
	// before it on a fresh line
	var out bytes.Buffer
	out.Grow(len(data) + len(printCSS))
	out.Write(data[:idx])
	out.WriteString("\n")
	out.WriteString(printCSS)
	out.Write(data[idx:])
	return out.Bytes(), printAdded
}

// locateMediaPrint finds the byte range of the first "@media print" block,
// from the at-keyword through its closing brace. The stylesheet is lexed so
// the string "@media print" inside a comment or a quoted value does not
// trigger a false match.
func locateMediaPrint(data []byte) (int, int, bool) {

	l := css.NewLexer(parse.NewInputBytes(data))
	offset := 0
	atMedia := -1    // offset of the pending @media keyword
	mediaPrint := -1 // offset of "@media print" awaiting its block
	depth := 0

	for {
		tt, text := l.Next()
		if tt == css.ErrorToken {
			return 0, 0, false
		}

		switch tt {
		case css.AtKeywordToken:
			if depth == 0 && bytes.EqualFold(text, []byte("@media")) {
				atMedia = offset
			}
		case css.IdentToken:
			if atMedia >= 0 && bytes.EqualFold(text, []byte("print")) {
				mediaPrint = atMedia
			}
		case css.LeftBraceToken:
			if mediaPrint >= 0 && depth == 0 {
				// found the block, consume until it closes
				start := mediaPrint
				offset += len(text)
				braces := 1
				for braces > 0 {
					tt, text = l.Next()
					if tt == css.ErrorToken {
						return 0, 0, false
					}
					switch tt {
					case css.LeftBraceToken:
						braces++
					case css.RightBraceToken:
						braces--
					}
					offset += len(text)
				}
				return start, offset, true
			}
			atMedia, mediaPrint = -1, -1
			depth++
		case css.RightBraceToken:
			if depth > 0 {
				depth--
			}
		case css.SemicolonToken:
			atMedia, mediaPrint = -1, -1
		}
		offset += len(text)
	}
}
