package convert

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
}

func TestCollectAssets(t *testing.T) {
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	writePNG(t, filepath.Join(dir, "cover.png"))
	writePNG(t, filepath.Join(dir, "ebook cover.png"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "otherbooks"), 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "otherbooks", "series.png"))

	assets, err := CollectAssets(dir, []string{".", "otherbooks"}, log)
	if err != nil {
		t.Fatalf("CollectAssets() error = %v", err)
	}

	byName := map[string]string{}
	for _, a := range assets {
		byName[a.Filename] = a.MediaType
	}

	if len(assets) != 3 {
		t.Errorf("collected %d assets, want 3: %v", len(assets), byName)
	}
	if byName["cover.png"] != "image/png" {
		t.Errorf("cover.png media type = %q", byName["cover.png"])
	}
	if _, ok := byName["ebook-cover.png"]; !ok {
		t.Error("file name with spaces must be sanitized")
	}
	if _, ok := byName["series.png"]; !ok {
		t.Error("secondary asset directory not collected")
	}
	if _, ok := byName["notes.txt"]; ok {
		t.Error("non-image file collected")
	}
}

func TestCollectAssets_FirstCopyWins(t *testing.T) {
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	writePNG(t, filepath.Join(dir, "logo.png"))
	if err := os.Mkdir(filepath.Join(dir, "otherbooks"), 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "otherbooks", "logo.png"))

	assets, err := CollectAssets(dir, []string{".", "otherbooks"}, log)
	if err != nil {
		t.Fatalf("CollectAssets() error = %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("collected %d assets, want 1", len(assets))
	}
	if assets[0].Source != filepath.Join(dir, "logo.png") {
		t.Errorf("kept %s, want the first claim to win", assets[0].Source)
	}
}

func TestCollectAssets_MissingDirectory(t *testing.T) {
	log := zaptest.NewLogger(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "cover.png"))

	assets, err := CollectAssets(dir, []string{".", "otherbooks"}, log)
	if err != nil {
		t.Fatalf("CollectAssets() error = %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("collected %d assets, want 1", len(assets))
	}
}

func TestEnsureCoverAsset(t *testing.T) {
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	if err := os.Mkdir(filepath.Join(dir, "art"), 0755); err != nil {
		t.Fatal(err)
	}
	coverPath := filepath.Join(dir, "art", "cover.png")
	writePNG(t, coverPath)
	writePNG(t, filepath.Join(dir, "logo.png"))

	// the metadata record points outside the scanned directories
	assets, err := CollectAssets(dir, []string{"."}, log)
	if err != nil {
		t.Fatalf("CollectAssets() error = %v", err)
	}

	assets = EnsureCoverAsset(assets, "cover.png", coverPath, log)
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want the cover appended: %v", len(assets), assets)
	}
	last := assets[len(assets)-1]
	if last.Filename != "cover.png" || last.Source != coverPath || last.MediaType != "image/png" {
		t.Errorf("appended cover asset = %+v", last)
	}

	// a second pass must not duplicate it
	if again := EnsureCoverAsset(assets, "cover.png", coverPath, log); len(again) != 2 {
		t.Errorf("got %d assets after second pass, want 2", len(again))
	}
}

func TestEnsureCoverAsset_AlreadyCollected(t *testing.T) {
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	coverPath := filepath.Join(dir, "cover.png")
	writePNG(t, coverPath)

	assets, err := CollectAssets(dir, []string{"."}, log)
	if err != nil {
		t.Fatalf("CollectAssets() error = %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("collected %d assets, want 1", len(assets))
	}

	if out := EnsureCoverAsset(assets, "cover.png", coverPath, log); len(out) != 1 {
		t.Errorf("got %d assets, cover inside asset directories must not be duplicated", len(out))
	}
	if out := EnsureCoverAsset(assets, "", "", log); len(out) != 1 {
		t.Errorf("got %d assets, empty cover name must be a no-op", len(out))
	}
}

func TestSniffMediaType_MismatchedExtension(t *testing.T) {
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	// png bytes behind a jpg extension
	writePNG(t, filepath.Join(dir, "cover.jpg"))

	assets, err := CollectAssets(dir, []string{"."}, log)
	if err != nil {
		t.Fatalf("CollectAssets() error = %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("collected %d assets, want 1", len(assets))
	}
	// extension decides the manifest media type even when content disagrees
	if assets[0].MediaType != "image/jpeg" {
		t.Errorf("media type = %q, want image/jpeg", assets[0].MediaType)
	}
}
