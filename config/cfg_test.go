package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rupor-github/gencfg"

	"ebc/common"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
book:
  metadata_path: meta.json
  asset_dirs: [".", "extra"]
  file_name_transliterate: true
  fix_zip: true
validator:
  java_path: /usr/bin/java
  timeout_seconds: 30
logging:
  console:
    level: normal
  file:
    level: debug
    destination: /tmp/test.log
    mode: append
reporting:
  destination: /tmp/test-report.zip
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}

	if cfg.Book.MetadataPath != "meta.json" {
		t.Errorf("MetadataPath = %q, want meta.json", cfg.Book.MetadataPath)
	}

	if len(cfg.Book.AssetDirs) != 2 {
		t.Errorf("AssetDirs length = %d, want 2", len(cfg.Book.AssetDirs))
	}

	if !cfg.Book.FixZip {
		t.Error("Expected FixZip to be true")
	}

	if !cfg.Book.FileNameTransliterate {
		t.Error("Expected FileNameTransliterate to be true")
	}

	if cfg.Validator.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.Validator.TimeoutSeconds)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_UnknownFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "unknown.yaml")

	configWithUnknown := `version: 1
unknown_field: value
book:
  fix_zip: true
`

	if err := os.WriteFile(configPath, []byte(configWithUnknown), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for unknown fields")
	}
}

func TestLoadConfiguration_ValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_values.yaml")

	// Invalid version number
	configWithInvalidVersion := `version: 2
book:
  fix_zip: true
`

	if err := os.WriteFile(configPath, []byte(configWithInvalidVersion), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected validation error for invalid version")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	// Partial config that only overrides some values
	partialConfig := `version: 1
book:
  fix_zip: true
`

	if err := os.WriteFile(configPath, []byte(partialConfig), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if !cfg.Book.FixZip {
		t.Error("Expected FixZip to be true from config file")
	}

	// Defaults survive for unspecified fields
	if cfg.Book.MetadataPath != "book_metadata.json" {
		t.Errorf("MetadataPath = %q, want default book_metadata.json", cfg.Book.MetadataPath)
	}

	if len(cfg.Book.AssetDirs) == 0 {
		t.Error("AssetDirs should have default value")
	}

	if cfg.Validator.TimeoutSeconds <= 0 {
		t.Error("TimeoutSeconds should have positive default")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	cfg := &Config{}
	_, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Book: BookConfig{
			MetadataPath: "book_metadata.json",
			AssetDirs:    []string{"."},
			FixZip:       true,
		},
		Validator: ValidatorConfig{
			JavaPath:       "java",
			TimeoutSeconds: 60,
		},
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Dump() returned empty data")
	}

	// Verify we can load it back
	cfg2 := &Config{}
	_, err = unmarshalConfig(data, cfg2, false)
	if err != nil {
		t.Errorf("Dumped config cannot be loaded: %v", err)
	}

	if cfg2.Book.MetadataPath != cfg.Book.MetadataPath {
		t.Errorf("MetadataPath mismatch after dump/load: got %q, want %q", cfg2.Book.MetadataPath, cfg.Book.MetadataPath)
	}
}

func TestChannel_String(t *testing.T) {
	tests := []struct {
		ch       common.Channel
		expected string
	}{
		{common.ChannelStore, "store"},
		{common.ChannelKDP, "kdp"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.ch.String()
			if got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  common.Channel
		shouldErr bool
	}{
		{"store lowercase", "store", common.ChannelStore, false},
		{"STORE uppercase", "STORE", common.ChannelStore, false},
		{"kdp", "kdp", common.ChannelKDP, false},
		{"invalid", "invalid", common.Channel(0), true},
		{"empty", "", common.Channel(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := common.ParseChannel(tt.input)
			if tt.shouldErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if got != tt.expected {
					t.Errorf("common.ParseChannel(%q) = %v, want %v", tt.input, got, tt.expected)
				}
			}
		})
	}
}

func TestChannel_Suffix(t *testing.T) {
	if common.ChannelStore.Suffix() != "Store" {
		t.Errorf("Suffix() = %q, want Store", common.ChannelStore.Suffix())
	}
	if common.ChannelKDP.Suffix() != "KDP" {
		t.Errorf("Suffix() = %q, want KDP", common.ChannelKDP.Suffix())
	}
}

func TestChannel_KDPMode(t *testing.T) {
	if common.ChannelStore.KDPMode() {
		t.Error("store channel should not set kdp mode")
	}
	if !common.ChannelKDP.KDPMode() {
		t.Error("kdp channel should set kdp mode")
	}
}
