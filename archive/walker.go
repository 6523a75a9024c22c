// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to Walk
// The file argument is the zip.File structure for file in archive which satisfies
// match condition. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk walks the all files in the archive which satisfy match condition,
// calling walkFn for each item. An entry with path traversal components
// ("..") or an absolute path aborts the walk with an error to prevent Zip
// Slip attacks.
func Walk(archive, pattern string, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, pattern) {
			if err := walkFn(archive, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// FirstEntry returns the header of the first physical entry in the archive.
// EPUB containers are only valid when that entry is an uncompressed
// "mimetype", so assembly checks the finished file with this.
func FirstEntry(archive string) (*zip.FileHeader, error) {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if len(r.File) == 0 {
		return nil, fmt.Errorf("archive %s is empty", archive)
	}
	hdr := r.File[0].FileHeader
	return &hdr, nil
}

// ImageBasenames collects base names of entries under the images directory
// of an EPUB container, case-insensitive on the directory name.
func ImageBasenames(archive string) (map[string]bool, error) {

	names := make(map[string]bool)
	err := Walk(archive, "", func(_ string, f *zip.File) error {
		if strings.Contains(strings.ToLower(f.Name), "/images/") {
			names[path.Base(f.Name)] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
