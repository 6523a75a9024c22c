// Package content holds the prepared book content on its way into a
// container: converted documents, collected image assets and resolved
// metadata, everything the packaging stage needs in one place.
package content

import (
	"fmt"

	"github.com/google/uuid"

	"ebc/book"
	"ebc/common"
)

// Document is a single converted chapter ready to be packaged.
type Document struct {
	Chapter book.Chapter
	// Target is the document path inside the OEBPS tree.
	Target string
	// Title from the source document head, used in the OPF when the
	// navigation table has no entry.
	Title string
	// Data is the serialized XHTML.
	Data []byte
}

// Asset is an image file collected from the source directories.
type Asset struct {
	// Filename is the sanitized base name the asset is packaged under.
	Filename string
	// Source is the path of the original file.
	Source string
	// MediaType is derived from the file extension.
	MediaType string
}

// Content aggregates everything a single channel build packages.
type Content struct {
	Meta  *book.Metadata
	Cover *book.CoverInfo

	Channel common.Channel

	// Identifier is the package identifier, fresh per build, shared by the
	// OPF and the NCX within it.
	Identifier string

	Documents []Document
	Assets    []Asset

	// SourceDir is the project directory the build reads from.
	SourceDir string
	// WorkDir is an exclusively owned scratch directory.
	WorkDir string
}

// New creates content shell for a single channel build with a fresh
// package identifier.
func New(meta *book.Metadata, cover *book.CoverInfo, channel common.Channel, srcDir, workDir string) *Content {
	return &Content{
		Meta:       meta,
		Cover:      cover,
		Channel:    channel,
		Identifier: fmt.Sprintf("urn:uuid:%s", uuid.NewString()),
		SourceDir:  srcDir,
		WorkDir:    workDir,
	}
}

// Document returns the converted document for the given spine name, nil
// when the source file was absent or skipped.
func (c *Content) Document(name string) *Document {
	for i := range c.Documents {
		if c.Documents[i].Chapter.Name == name {
			return &c.Documents[i]
		}
	}
	return nil
}

// CoverAssetName returns the sanitized base name of the cover image from
// the metadata record. Manifest marking and the cover page agree on this
// name with the asset collector.
func (c *Content) CoverAssetName() string {
	if c.Meta == nil || len(c.Meta.CoverImage) == 0 {
		return ""
	}
	return book.SanitizeAssetName(basename(c.Meta.CoverImage))
}

func basename(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
