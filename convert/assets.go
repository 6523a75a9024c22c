package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"ebc/book"
	"ebc/content"
)

// assetExtensions maps image file extensions to their manifest media types.
var assetExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// CollectAssets gathers image files from the configured asset directories,
// relative to the project directory. Names are sanitized, the first file
// claiming a name wins and later duplicates are reported and dropped.
func CollectAssets(srcDir string, assetDirs []string, log *zap.Logger) ([]content.Asset, error) {

	var assets []content.Asset
	claimed := make(map[string]string)

	for _, dir := range assetDirs {
		imagesDir := filepath.Join(srcDir, dir)
		entries, err := os.ReadDir(imagesDir)
		if err != nil {
			if os.IsNotExist(err) {
				log.Debug("Asset directory not present", zap.String("dir", imagesDir))
				continue
			}
			return nil, fmt.Errorf("unable to read assets directory %s: %w", imagesDir, err)
		}

		var names []string
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			mt, ok := assetExtensions[strings.ToLower(filepath.Ext(name))]
			if !ok {
				continue
			}

			src := filepath.Join(imagesDir, name)
			packaged := book.SanitizeAssetName(name)
			if prev, dup := claimed[packaged]; dup {
				log.Warn("Duplicate asset name, keeping first",
					zap.String("name", packaged), zap.String("kept", prev), zap.String("dropped", src))
				continue
			}
			claimed[packaged] = src

			if sniffed := sniffMediaType(src, log); len(sniffed) != 0 && sniffed != mt {
				// extension wins, a mismatch usually means a mislabeled export
				log.Warn("Asset content does not match its extension",
					zap.String("file", src), zap.String("extension", mt), zap.String("content", sniffed))
			}

			assets = append(assets, content.Asset{
				Filename:  packaged,
				Source:    src,
				MediaType: mt,
			})
		}
	}
	return assets, nil
}

// EnsureCoverAsset makes sure the validated cover image is part of the
// asset set. The metadata record may point outside the scanned directories,
// the manifest and the cover page still have to resolve.
func EnsureCoverAsset(assets []content.Asset, name, src string, log *zap.Logger) []content.Asset {
	if len(name) == 0 {
		return assets
	}
	for _, a := range assets {
		if a.Filename == name {
			return assets
		}
	}
	// cover validation only admits jpg/jpeg/png extensions
	mt, ok := assetExtensions[strings.ToLower(filepath.Ext(src))]
	if !ok {
		return assets
	}
	log.Debug("Cover image is outside asset directories, packaging it directly", zap.String("file", src))
	return append(assets, content.Asset{
		Filename:  name,
		Source:    src,
		MediaType: mt,
	})
}

// sniffMediaType checks the file magic, empty string when undetectable.
func sniffMediaType(path string, log *zap.Logger) string {
	buf := make([]byte, 261)
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return ""
	}
	kind, err := filetype.Match(buf[:n])
	if err != nil || kind == filetype.Unknown {
		log.Debug("Unable to detect asset type", zap.String("file", path))
		return ""
	}
	return kind.MIME.Value
}
