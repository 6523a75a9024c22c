package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// MaxCoverSize is the upper limit for the cover image file.
const MaxCoverSize = 5 * 1024 * 1024

// Metadata is the persisted description of the book, a flat JSON record.
type Metadata struct {
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle,omitempty"`
	Author          string `json:"author"`
	Publisher       string `json:"publisher"`
	PublicationDate string `json:"publication_date"`
	Language        string `json:"language,omitempty"`
	Tags            string `json:"tags,omitempty"`
	Description     string `json:"description,omitempty"`
	CoverImage      string `json:"cover_image"`
	ISBN            string `json:"isbn,omitempty"`
}

// Field pairs a metadata field name with the description shown when
// prompting for it.
type Field struct {
	Name        string
	Description string
}

var requiredFields = []Field{
	{"title", "Book Title"},
	{"author", "Author Name"},
	{"publisher", "Publisher Name"},
	{"publication_date", "Publication Year"},
	{"cover_image", "Cover Image Path"},
}

func (m *Metadata) field(name string) *string {
	switch name {
	case "title":
		return &m.Title
	case "subtitle":
		return &m.Subtitle
	case "author":
		return &m.Author
	case "publisher":
		return &m.Publisher
	case "publication_date":
		return &m.PublicationDate
	case "language":
		return &m.Language
	case "tags":
		return &m.Tags
	case "description":
		return &m.Description
	case "cover_image":
		return &m.CoverImage
	case "isbn":
		return &m.ISBN
	}
	// this should never happen
	panic("unknown metadata field: " + name)
}

// MissingRequired returns required fields without a value, in declaration
// order. Pure function of the record.
func (m *Metadata) MissingRequired() []Field {
	var missing []Field
	for _, f := range requiredFields {
		if len(strings.TrimSpace(*m.field(f.Name))) == 0 {
			missing = append(missing, f)
		}
	}
	return missing
}

// Validate checks values beyond mere presence. Presently only the language
// tag, which must parse as BCP 47 when set.
func (m *Metadata) Validate() error {
	if len(m.Language) > 0 {
		if _, err := language.Parse(m.Language); err != nil {
			return fmt.Errorf("bad language tag %q: %w", m.Language, err)
		}
	}
	return nil
}

// LanguageOrDefault returns the record language falling back to "en".
func (m *Metadata) LanguageOrDefault() string {
	if len(m.Language) > 0 {
		return m.Language
	}
	return "en"
}

// LoadMetadata reads the record from path. A missing file yields an empty
// record, malformed JSON is an error.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Metadata{}, nil
		}
		return nil, fmt.Errorf("unable to read metadata file: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed metadata file %s: %w", path, err)
	}
	return &m, nil
}

// Save persists the record as indented JSON.
func (m *Metadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal metadata: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to save metadata file: %w", err)
	}
	return nil
}

// Prompter supplies values for metadata fields. The command line installs
// an interactive implementation, tests a programmatic one.
type Prompter interface {
	Prompt(description string) (string, error)
}

// Resolver loads the metadata record and fills the gaps through a Prompter.
type Resolver struct {
	Log    *zap.Logger
	Prompt Prompter
}

// Resolve loads the record at path, prompts for exactly the missing
// required fields (insisting until a non-empty value arrives) and saves
// the merged record back. Fields that already carry a value and the
// optional ones are never asked about.
func (r *Resolver) Resolve(path string) (*Metadata, error) {

	m, err := LoadMetadata(path)
	if err != nil {
		return nil, err
	}

	missing := m.MissingRequired()
	if len(missing) == 0 {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	}

	r.Log.Info("Metadata record is incomplete", zap.Int("missing", len(missing)))
	if r.Prompt == nil {
		return nil, fmt.Errorf("metadata record %s is missing %d required field(s)", path, len(missing))
	}

	for _, f := range missing {
		for {
			value, err := r.Prompt.Prompt(f.Description)
			if err != nil {
				return nil, fmt.Errorf("unable to read %s: %w", f.Name, err)
			}
			value = strings.TrimSpace(value)
			if len(value) > 0 {
				*m.field(f.Name) = value
				break
			}
			r.Log.Warn("This field is required, please provide a value", zap.String("field", f.Description))
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.Save(path); err != nil {
		return nil, err
	}
	r.Log.Info("Metadata record saved", zap.String("path", path))
	return m, nil
}

// CoverInfo describes a validated cover image.
type CoverInfo struct {
	Path   string
	Width  int
	Height int
}

// ValidateCover checks the cover image the record points to: it must exist
// under dir, stay under MaxCoverSize, carry a jpg/jpeg/png extension and
// actually decode. Dimensions are reported for the cover page.
func (m *Metadata) ValidateCover(dir string) (*CoverInfo, error) {

	if len(m.CoverImage) == 0 {
		return nil, errors.New("no cover image path provided")
	}

	path := m.CoverImage
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cover image not found: %s", m.CoverImage)
	}
	if fi.Size() > MaxCoverSize {
		return nil, fmt.Errorf("cover image too large: %.1fMB (max 5MB)", float64(fi.Size())/(1024*1024))
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return nil, fmt.Errorf("cover image format not supported: %s (use JPG or PNG)", ext)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to decode cover image %s: %w", m.CoverImage, err)
	}
	bounds := img.Bounds()

	return &CoverInfo{
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
