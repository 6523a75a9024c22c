package book

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type scriptedPrompter struct {
	answers []string
	asked   []string
}

func (p *scriptedPrompter) Prompt(description string) (string, error) {
	p.asked = append(p.asked, description)
	if len(p.answers) == 0 {
		return "", nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func writeCover(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create cover file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("Failed to encode cover: %v", err)
	}
	return path
}

func TestLoadMetadata(t *testing.T) {
	t.Run("missing file yields empty record", func(t *testing.T) {
		m, err := LoadMetadata(filepath.Join(t.TempDir(), "absent.json"))
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}
		if len(m.MissingRequired()) != 5 {
			t.Errorf("MissingRequired() = %d fields, want 5", len(m.MissingRequired()))
		}
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadMetadata(path); err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book_metadata.json")
		m := &Metadata{
			Title:           "Escape The Hell Myth",
			Author:          "Ansilo Boff",
			Publisher:       "Example Press",
			PublicationDate: "2025",
			CoverImage:      "ebook cover.jpg",
		}
		if err := m.Save(path); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		loaded, err := LoadMetadata(path)
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}
		if *loaded != *m {
			t.Errorf("Loaded record = %+v, want %+v", loaded, m)
		}
	})
}

func TestMetadata_MissingRequired(t *testing.T) {
	m := &Metadata{
		Title:  "Title",
		Author: "Author",
		// publisher, publication_date, cover_image absent
		Language: "en",
	}

	missing := m.MissingRequired()
	want := []string{"publisher", "publication_date", "cover_image"}

	if len(missing) != len(want) {
		t.Fatalf("MissingRequired() = %d fields, want %d", len(missing), len(want))
	}
	for i, f := range missing {
		if f.Name != want[i] {
			t.Errorf("MissingRequired()[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestMetadata_MissingRequired_Whitespace(t *testing.T) {
	m := &Metadata{Title: "   "}

	missing := m.MissingRequired()
	if len(missing) == 0 || missing[0].Name != "title" {
		t.Error("Whitespace-only title should count as missing")
	}
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name      string
		lang      string
		shouldErr bool
	}{
		{"empty", "", false},
		{"en", "en", false},
		{"pt-BR", "pt-BR", false},
		{"garbage", "not a language", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Metadata{Language: tt.lang}
			err := m.Validate()
			if tt.shouldErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestMetadata_LanguageOrDefault(t *testing.T) {
	m := &Metadata{}
	if m.LanguageOrDefault() != "en" {
		t.Errorf("LanguageOrDefault() = %q, want en", m.LanguageOrDefault())
	}
	m.Language = "de"
	if m.LanguageOrDefault() != "de" {
		t.Errorf("LanguageOrDefault() = %q, want de", m.LanguageOrDefault())
	}
}

func TestResolver_Resolve_Complete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book_metadata.json")

	m := &Metadata{
		Title:           "T",
		Author:          "A",
		Publisher:       "P",
		PublicationDate: "2025",
		CoverImage:      "cover.jpg",
	}
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	p := &scriptedPrompter{}
	r := &Resolver{Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())), Prompt: p}

	got, err := r.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(p.asked) != 0 {
		t.Errorf("Complete record should not prompt, asked %v", p.asked)
	}
	if got.Title != "T" {
		t.Errorf("Title = %q, want T", got.Title)
	}
}

func TestResolver_Resolve_PromptsForMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book_metadata.json")

	m := &Metadata{
		Title:  "T",
		Author: "A",
	}
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	p := &scriptedPrompter{answers: []string{
		"",          // publisher: rejected, must repeat
		"P",         // publisher
		"2025",      // publication_date
		"cover.jpg", // cover_image
	}}
	r := &Resolver{Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())), Prompt: p}

	got, err := r.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got.Publisher != "P" || got.PublicationDate != "2025" || got.CoverImage != "cover.jpg" {
		t.Errorf("Required fields not filled: %+v", got)
	}
	// publisher is asked twice, the empty answer is rejected
	if len(p.asked) != 4 {
		t.Errorf("Asked %d times (%v), want 4", len(p.asked), p.asked)
	}
	if got.Subtitle != "" || got.Tags != "" || got.Description != "" || got.Language != "" || got.ISBN != "" {
		t.Errorf("Optional fields must stay untouched: %+v", got)
	}

	// record must be persisted
	saved, err := LoadMetadata(path)
	if err != nil {
		t.Fatal(err)
	}
	if *saved != *got {
		t.Errorf("Persisted record = %+v, want %+v", saved, got)
	}
}

func TestResolver_Resolve_PromptsOnlyMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book_metadata.json")

	m := &Metadata{
		Title:           "T",
		Author:          "A",
		PublicationDate: "2025",
		CoverImage:      "cover.jpg",
		// publisher is the single gap
	}
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	p := &scriptedPrompter{answers: []string{"Example Press"}}
	r := &Resolver{Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())), Prompt: p}

	got, err := r.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(p.asked) != 1 || p.asked[0] != "Publisher Name" {
		t.Errorf("Asked %v, want exactly the publisher", p.asked)
	}
	if got.Publisher != "Example Press" {
		t.Errorf("Publisher = %q, want Example Press", got.Publisher)
	}

	saved, err := LoadMetadata(path)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Publisher != "Example Press" {
		t.Errorf("Persisted publisher = %q, want Example Press", saved.Publisher)
	}
}

func TestResolver_Resolve_NoPrompter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book_metadata.json")

	r := &Resolver{Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))}
	if _, err := r.Resolve(path); err == nil {
		t.Error("Expected error when record is incomplete and no prompter is set")
	}
}

func TestMetadata_ValidateCover(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid png", func(t *testing.T) {
		writeCover(t, dir, "cover.png", 600, 800)
		m := &Metadata{CoverImage: "cover.png"}

		info, err := m.ValidateCover(dir)
		if err != nil {
			t.Fatalf("ValidateCover() error = %v", err)
		}
		if info.Width != 600 || info.Height != 800 {
			t.Errorf("Dimensions = %dx%d, want 600x800", info.Width, info.Height)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		m := &Metadata{CoverImage: "absent.jpg"}
		if _, err := m.ValidateCover(dir); err == nil {
			t.Error("Expected error for missing cover")
		}
	})

	t.Run("no path", func(t *testing.T) {
		m := &Metadata{}
		if _, err := m.ValidateCover(dir); err == nil {
			t.Error("Expected error for empty cover path")
		}
	})

	t.Run("bad extension", func(t *testing.T) {
		path := filepath.Join(dir, "cover.bmp")
		if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
			t.Fatal(err)
		}
		m := &Metadata{CoverImage: "cover.bmp"}
		_, err := m.ValidateCover(dir)
		if err == nil || !strings.Contains(err.Error(), "not supported") {
			t.Errorf("Expected unsupported format error, got %v", err)
		}
	})

	t.Run("undecodable content", func(t *testing.T) {
		path := filepath.Join(dir, "fake.jpg")
		if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
			t.Fatal(err)
		}
		m := &Metadata{CoverImage: "fake.jpg"}
		if _, err := m.ValidateCover(dir); err == nil {
			t.Error("Expected error for undecodable cover")
		}
	})

	t.Run("oversized", func(t *testing.T) {
		path := filepath.Join(dir, "big.jpg")
		if err := os.WriteFile(path, make([]byte, MaxCoverSize+1), 0644); err != nil {
			t.Fatal(err)
		}
		m := &Metadata{CoverImage: "big.jpg"}
		_, err := m.ValidateCover(dir)
		if err == nil || !strings.Contains(err.Error(), "too large") {
			t.Errorf("Expected size error, got %v", err)
		}
	})
}
