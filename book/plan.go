// Package book describes the single book project this tool builds: its
// metadata record and the fixed reading order of its chapter files.
package book

import (
	"path"
	"strings"
)

// Chapter is a single entry of the fixed reading order.
type Chapter struct {
	// Source is the HTML file name in the project directory.
	Source string
	// Name is the identifier stem used for package ids and output names.
	Name string
	// Title is the navigation label used in NCX and nav documents.
	Title string
	// Cover marks the cover document which lives at the OEBPS root.
	Cover bool
	// PrintCSS marks files the print stylesheet commands operate on.
	PrintCSS bool
}

// Spine is the fixed reading order of the book. Files missing from the
// project directory are skipped silently, the order itself never changes.
var Spine = []Chapter{
	{Source: "index.html", Name: "cover", Title: "Cover", Cover: true},
	{Source: "copyright.html", Name: "copyright", Title: "Copyright", PrintCSS: true},
	{Source: "dedication.html", Name: "dedication", Title: "Dedication"},
	{Source: "toc.html", Name: "toc", Title: "Table of Contents", PrintCSS: true},
	{Source: "introduction.html", Name: "introduction", Title: "Introduction", PrintCSS: true},
	{Source: "part1.html", Name: "part1", Title: "Part 1: Unmasking the Myth", PrintCSS: true},
	{Source: "chapter1.html", Name: "chapter1", Title: "Chapter 1: The Invention of Eternal Fire", PrintCSS: true},
	{Source: "chapter2.html", Name: "chapter2", Title: "Chapter 2: Jesus vs. the Punishing God", PrintCSS: true},
	{Source: "part2.html", Name: "part2", Title: "Part 2: How Fear Slipped Back In", PrintCSS: true},
	{Source: "chapter3.html", Name: "chapter3", Title: "Chapter 3: Paul and the Return of Fear", PrintCSS: true},
	{Source: "part3.html", Name: "part3", Title: `Part 3: Clearing Up The "Hell" Texts`, PrintCSS: true},
	{Source: "chapter4.html", Name: "chapter4", Title: "Chapter 4: The Verses Everyone Can't Unsee", PrintCSS: true},
	{Source: "chapter5.html", Name: "chapter5", Title: "Chapter 5: The Day the World Ended", PrintCSS: true},
	{Source: "part4.html", Name: "part4", Title: "Part 4: The Gospel Of Love", PrintCSS: true},
	{Source: "chapter6.html", Name: "chapter6", Title: "Chapter 6: The Father Who Never Stops Loving", PrintCSS: true},
	{Source: "chapter7.html", Name: "chapter7", Title: "Chapter 7: Escaping the Fear Cycle", PrintCSS: true},
	{Source: "chapter8.html", Name: "chapter8", Title: "Chapter 8: The Wounds We Inherit", PrintCSS: true},
	{Source: "conclusion.html", Name: "conclusion", Title: "Conclusion: Love Wins. Always.", PrintCSS: true},
	{Source: "other-books.html", Name: "other-books", Title: "Books By Ansilo Boff", PrintCSS: true},
	{Source: "appendix.html", Name: "appendix", Title: "Appendix: Glossary of Key Terms", PrintCSS: true},
	{Source: "bibliography.html", Name: "bibliography", Title: "Bibliography", PrintCSS: true},
	{Source: "acknowledgments.html", Name: "acknowledgments", Title: "Acknowledgments"},
}

// TargetPath returns the path of the converted document inside the OEBPS
// tree. The cover sits next to the package document, everything else goes
// under Text.
func (c Chapter) TargetPath() string {
	if c.Cover {
		return "cover.xhtml"
	}
	return path.Join("Text", c.Name+".xhtml")
}

// PrintTargets returns source files the print stylesheet commands process.
func PrintTargets() []string {
	var out []string
	for _, c := range Spine {
		if c.PrintCSS {
			out = append(out, c.Source)
		}
	}
	return out
}

// SanitizeAssetName normalizes an image file name the same way on every
// path that mentions it: spaces become hyphens, parentheses are dropped.
// Image references in converted documents, copied assets and the manifest
// all go through this so they agree on one name.
func SanitizeAssetName(name string) string {
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "(", "")
	name = strings.ReplaceAll(name, ")", "")
	return name
}
