package convert

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"ebc/archive"
	"ebc/book"
)

// ImageRef ties a referenced image to the chapter file mentioning it.
type ImageRef struct {
	File  string
	Image string
}

// ImageCheckResult is the outcome of cross-checking image references in the
// chapter files against a produced container and the source directories.
type ImageCheckResult struct {
	// MissingFromArchive lists references with no matching container entry.
	// A non-empty list means the produced book has broken images.
	MissingFromArchive []ImageRef
	// MissingFromSource lists references with no matching source file, an
	// early warning even when the container still has an older copy.
	MissingFromSource []ImageRef

	ArchiveImages int
	SourceImages  int
	Checked       int
}

// CheckImages verifies that every image the chapter files reference made it
// into the container and still exists in the source directories. Container
// entries carry sanitized names, source files do not, so the two comparisons
// differ.
func CheckImages(epubPath, srcDir string, assetDirs []string, log *zap.Logger) (*ImageCheckResult, error) {

	packaged, err := archive.ImageBasenames(epubPath)
	if err != nil {
		return nil, fmt.Errorf("unable to list container images: %w", err)
	}
	sources, err := sourceImageNames(srcDir, assetDirs)
	if err != nil {
		return nil, err
	}

	res := &ImageCheckResult{
		ArchiveImages: len(packaged),
		SourceImages:  len(sources),
	}

	for _, chapter := range book.Spine {
		srcPath := filepath.Join(srcDir, chapter.Source)
		data, err := os.ReadFile(srcPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("unable to read %s: %w", srcPath, err)
		}

		refs, err := imageReferences(data)
		if err != nil {
			return nil, fmt.Errorf("unable to parse %s: %w", srcPath, err)
		}

		res.Checked++
		for _, img := range refs {
			if !packaged[book.SanitizeAssetName(img)] {
				res.MissingFromArchive = append(res.MissingFromArchive, ImageRef{File: chapter.Source, Image: img})
			}
			if !sources[img] {
				res.MissingFromSource = append(res.MissingFromSource, ImageRef{File: chapter.Source, Image: img})
			}
		}
		log.Debug("Checked image references", zap.String("file", chapter.Source), zap.Int("images", len(refs)))
	}
	return res, nil
}

// imageReferences extracts base names of img sources from a chapter file.
func imageReferences(data []byte) ([]string, error) {

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var refs []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && len(src) != 0 {
			refs = append(refs, path.Base(src))
		}
	})
	return refs, nil
}

// sourceImageNames lists image file names present in the asset directories,
// unsanitized, the way chapter files reference them.
func sourceImageNames(srcDir string, assetDirs []string) (map[string]bool, error) {

	names := make(map[string]bool)
	for _, dir := range assetDirs {
		entries, err := os.ReadDir(filepath.Join(srcDir, dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("unable to read assets directory %s: %w", filepath.Join(srcDir, dir), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, ok := assetExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
				names[e.Name()] = true
			}
		}
	}
	return names, nil
}

// Report writes the verification outcome to the log, one line per problem.
func (r *ImageCheckResult) Report(log *zap.Logger) {

	log.Info("Image verification",
		zap.Int("files", r.Checked),
		zap.Int("in_archive", r.ArchiveImages),
		zap.Int("in_source", r.SourceImages))

	sort.Slice(r.MissingFromArchive, func(i, j int) bool {
		return r.MissingFromArchive[i].File < r.MissingFromArchive[j].File
	})
	for _, ref := range r.MissingFromArchive {
		log.Error("Image missing from the container", zap.String("image", ref.Image), zap.String("referenced_in", ref.File))
	}
	for _, ref := range r.MissingFromSource {
		log.Warn("Image missing from the sources", zap.String("image", ref.Image), zap.String("referenced_in", ref.File))
	}
	if len(r.MissingFromArchive) == 0 {
		log.Info("All referenced images are packaged")
	}
}
