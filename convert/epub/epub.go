// Package epub assembles EPUB 3 containers: mimetype-first stored entry,
// OPF package document, NCX and nav for navigation, converted chapters and
// collected images under the OEBPS tree.
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"ebc/archive"
	"ebc/book"
	"ebc/content"
	"ebc/state"
)

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
)

// Generate assembles the container for a single channel build and moves it
// to outputPath. The archive is written to the scratch directory first and
// only copied out after it verifies. Packaging is not additive, an archive
// already sitting at outputPath is replaced.
func Generate(ctx context.Context, c *content.Content, outputPath string, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	if _, err := os.Stat(outputPath); err == nil {
		log.Warn("Replacing existing file", zap.String("file", outputPath))
		if err = os.Remove(outputPath); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	log.Info("Generating EPUB", zap.Stringer("channel", c.Channel), zap.String("output", outputPath))

	_, tmpName := filepath.Split(outputPath)
	tmpName = filepath.Join(c.WorkDir, tmpName)

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}

	entries, err := buildEntries(c, log)
	if err != nil {
		return err
	}
	// deterministic container layout, only the mimetype position matters
	// to readers but reproducible archives are easier to compare
	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].name, entries[j].name)
	})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.write(zw, e.name); err != nil {
			return fmt.Errorf("unable to write %s: %w", e.name, err)
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	// clean temporary file
	defer os.Remove(tmpName)

	if err := verifyContainer(tmpName); err != nil {
		return err
	}

	if c.Channel.KDPMode() || env.Cfg.Book.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return copyFile(tmpName, outputPath)
}

// verifyContainer re-opens the finished archive and checks the container
// contract: the very first physical entry is an uncompressed mimetype. A
// violation fails the build, such a file is not an EPUB.
func verifyContainer(name string) error {

	hdr, err := archive.FirstEntry(name)
	if err != nil {
		return fmt.Errorf("unable to verify container %s: %w", name, err)
	}
	if hdr.Name != "mimetype" || hdr.Method != zip.Store {
		return fmt.Errorf("broken container %s: first entry is %q (method %d), expected stored mimetype", name, hdr.Name, hdr.Method)
	}
	return nil
}

type zipEntry struct {
	name  string
	write func(zw *zip.Writer, name string) error
}

// buildEntries prepares everything that goes into the archive after the
// mimetype.
func buildEntries(c *content.Content, log *zap.Logger) ([]zipEntry, error) {

	m := buildModel(c)

	entries := []zipEntry{
		{name: "META-INF/container.xml", write: func(zw *zip.Writer, name string) error {
			return writeXMLToZip(zw, name, containerDocument())
		}},
		{name: path.Join(oebpsDir, "Styles/style.css"), write: func(zw *zip.Writer, name string) error {
			return writeDataToZip(zw, name, Stylesheet(c.Channel.KDPMode()))
		}},
		{name: path.Join(oebpsDir, "content.opf"), write: func(zw *zip.Writer, name string) error {
			return writeXMLToZip(zw, name, opfDocument(c, m))
		}},
		{name: path.Join(oebpsDir, "toc.ncx"), write: func(zw *zip.Writer, name string) error {
			return writeXMLToZip(zw, name, ncxDocument(c, m))
		}},
		{name: path.Join(oebpsDir, "nav.xhtml"), write: func(zw *zip.Writer, name string) error {
			return writeXMLToZip(zw, name, navDocument(c, m))
		}},
	}

	for i := range c.Documents {
		doc := c.Documents[i]
		entries = append(entries, zipEntry{
			name: path.Join(oebpsDir, doc.Target),
			write: func(zw *zip.Writer, name string) error {
				return writeDataToZip(zw, name, doc.Data)
			},
		})
	}

	if m.syntheticCover {
		log.Debug("Cover document missing, generating a cover page")
		entries = append(entries, zipEntry{
			name: path.Join(oebpsDir, "cover.xhtml"),
			write: func(zw *zip.Writer, name string) error {
				return writeXMLToZip(zw, name, coverPageDocument(c))
			},
		})
	}

	for i := range c.Assets {
		asset := c.Assets[i]
		entries = append(entries, zipEntry{
			name: path.Join(oebpsDir, "images", asset.Filename),
			write: func(zw *zip.Writer, name string) error {
				return writeFileToZip(zw, name, asset.Source)
			},
		})
	}
	return entries, nil
}

// packageModel is the manifest, spine and navigation computed once and
// shared by the OPF, NCX and nav writers.
type packageModel struct {
	items []manifestItem
	spine []string
	nav   []navEntry

	// syntheticCover is set when no cover chapter was converted but a
	// cover image exists, a generated page wraps the image then.
	syntheticCover bool
	hasTocDoc      bool
}

type manifestItem struct {
	id         string
	href       string
	mediaType  string
	properties string
}

type navEntry struct {
	label string
	href  string
}

func buildModel(c *content.Content) *packageModel {

	m := &packageModel{
		items: []manifestItem{
			{id: "ncx", href: "toc.ncx", mediaType: "application/x-dtbncx+xml"},
			{id: "nav", href: "nav.xhtml", mediaType: "application/xhtml+xml", properties: "nav"},
			{id: "css", href: "Styles/style.css", mediaType: "text/css"},
		},
	}
	alloc := NewAllocator("ncx", "nav", "css", "cover", "cover_image")

	m.syntheticCover = c.Document("cover") == nil && len(c.CoverAssetName()) != 0

	for _, chapter := range book.Spine {
		doc := c.Document(chapter.Name)
		if doc == nil {
			if !chapter.Cover || !m.syntheticCover {
				continue
			}
		}

		id := "cover"
		if !chapter.Cover {
			id = alloc.Allocate(chapter.Name)
		}

		m.items = append(m.items, manifestItem{id: id, href: chapter.TargetPath(), mediaType: "application/xhtml+xml"})
		m.spine = append(m.spine, id)
		m.nav = append(m.nav, navEntry{label: chapter.Title, href: chapter.TargetPath()})
		if chapter.Name == "toc" {
			m.hasTocDoc = true
		}
	}

	coverAsset := c.CoverAssetName()
	for _, asset := range c.Assets {
		item := manifestItem{href: path.Join("images", asset.Filename), mediaType: asset.MediaType}
		if asset.Filename == coverAsset {
			item.id = "cover_image"
			item.properties = "cover-image"
		} else {
			item.id = alloc.Allocate(stem(asset.Filename))
		}
		m.items = append(m.items, item)
	}
	return m
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

func containerDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, "content.opf"))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")
	return doc
}

func opfDocument(c *content.Content, m *packageModel) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "book-id")
	pkg.CreateAttr("version", "3.0")

	meta := pkg.CreateElement("metadata")
	meta.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	meta.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	ident := meta.CreateElement("dc:identifier")
	ident.CreateAttr("id", "book-id")
	ident.SetText(c.Identifier)

	meta.CreateElement("dc:title").SetText(c.Meta.Title)

	creator := meta.CreateElement("dc:creator")
	creator.CreateAttr("id", "author")
	creator.SetText(c.Meta.Author)

	role := meta.CreateElement("meta")
	role.CreateAttr("refines", "#author")
	role.CreateAttr("property", "role")
	role.CreateAttr("scheme", "marc:relators")
	role.SetText("aut")

	fileAs := meta.CreateElement("meta")
	fileAs.CreateAttr("refines", "#author")
	fileAs.CreateAttr("property", "file-as")
	fileAs.SetText(c.Meta.Author)

	meta.CreateElement("dc:publisher").SetText(c.Meta.Publisher)
	meta.CreateElement("dc:date").SetText(c.Meta.PublicationDate)
	meta.CreateElement("dc:language").SetText(c.Meta.LanguageOrDefault())
	if len(c.Meta.Tags) != 0 {
		meta.CreateElement("dc:subject").SetText(c.Meta.Tags)
	}
	if len(c.Meta.Description) != 0 {
		meta.CreateElement("dc:description").SetText(c.Meta.Description)
	}

	modified := meta.CreateElement("meta")
	modified.CreateAttr("property", "dcterms:modified")
	modified.SetText(time.Now().UTC().Format("2006-01-02T15:04:05Z"))

	coverMeta := meta.CreateElement("meta")
	coverMeta.CreateAttr("name", "cover")
	coverMeta.CreateAttr("content", "cover_image")

	manifest := pkg.CreateElement("manifest")
	for _, item := range m.items {
		el := manifest.CreateElement("item")
		el.CreateAttr("id", item.id)
		el.CreateAttr("href", item.href)
		el.CreateAttr("media-type", item.mediaType)
		if len(item.properties) != 0 {
			el.CreateAttr("properties", item.properties)
		}
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	for _, idref := range m.spine {
		spine.CreateElement("itemref").CreateAttr("idref", idref)
	}

	guide := pkg.CreateElement("guide")
	cover := guide.CreateElement("reference")
	cover.CreateAttr("type", "cover")
	cover.CreateAttr("title", "Cover")
	cover.CreateAttr("href", "cover.xhtml")
	if m.hasTocDoc {
		toc := guide.CreateElement("reference")
		toc.CreateAttr("type", "toc")
		toc.CreateAttr("title", "Table of Contents")
		toc.CreateAttr("href", "Text/toc.xhtml")
	}
	return doc
}

func ncxDocument(c *content.Content, m *packageModel) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	for _, kv := range [][2]string{
		{"dtb:uid", c.Identifier},
		{"dtb:depth", "1"},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		el := head.CreateElement("meta")
		el.CreateAttr("name", kv[0])
		el.CreateAttr("content", kv[1])
	}

	ncx.CreateElement("docTitle").CreateElement("text").SetText(c.Meta.Title)
	ncx.CreateElement("docAuthor").CreateElement("text").SetText(c.Meta.Author)

	navMap := ncx.CreateElement("navMap")
	for i, entry := range m.nav {
		point := navMap.CreateElement("navPoint")
		point.CreateAttr("id", "navpoint-"+strconv.Itoa(i+1))
		point.CreateAttr("playOrder", strconv.Itoa(i+1))
		point.CreateElement("navLabel").CreateElement("text").SetText(entry.label)
		point.CreateElement("content").CreateAttr("src", entry.href)
	}
	return doc
}

func navDocument(c *content.Content, m *packageModel) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")

	head := html.CreateElement("head")
	head.CreateElement("title").SetText(c.Meta.Title)
	metaEl := head.CreateElement("meta")
	metaEl.CreateAttr("charset", "UTF-8")

	body := html.CreateElement("body")
	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateElement("h1").SetText("Table of Contents")

	ol := nav.CreateElement("ol")
	for _, entry := range m.nav {
		a := ol.CreateElement("li").CreateElement("a")
		a.CreateAttr("href", entry.href)
		a.SetText(entry.label)
	}
	return doc
}

// coverPageDocument wraps the cover image into a page scaled to the reader
// viewport, used when the project has no cover chapter of its own.
func coverPageDocument(c *content.Content) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	style := head.CreateElement("style")
	style.CreateAttr("type", "text/css")
	style.SetText("html, body { margin: 0; padding: 0; width:100%; height: 100%; } svg { display: block; width: auto; height: 100%; margin: 0 auto }")

	head.CreateElement("title").SetText(c.Meta.Title)

	w, h := 600, 800
	if c.Cover != nil && c.Cover.Width > 0 && c.Cover.Height > 0 {
		w, h = c.Cover.Width, c.Cover.Height
	}

	body := html.CreateElement("body")
	svg := body.CreateElement("svg")
	svg.CreateAttr("version", "1.1")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", w, h))
	svg.CreateAttr("preserveAspectRatio", "xMidYMid meet")

	img := svg.CreateElement("image")
	img.CreateAttr("width", strconv.Itoa(w))
	img.CreateAttr("height", strconv.Itoa(h))
	img.CreateAttr("xlink:href", "images/"+c.CoverAssetName())
	return doc
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	doc.Indent(4)
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeDataToZip(zw, name, buf.Bytes())
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeFileToZip(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return destFile.Sync()
}
