package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// BookConfig describes the single book project this tool builds.
	BookConfig struct {
		// MetadataPath is the persisted metadata record (flat JSON object).
		MetadataPath string `yaml:"metadata_path" validate:"required,filepath"`
		// AssetDirs are directories scanned for images, in order.
		AssetDirs []string `yaml:"asset_dirs" validate:"min=1,dive,required"`
		// FileNameTransliterate converts the book title to ASCII when deriving
		// output archive names.
		FileNameTransliterate bool `yaml:"file_name_transliterate"`
		// FixZip rewrites finished archives without data descriptors. Some
		// stores cannot handle streamed zip entries; always forced on for the
		// kdp channel.
		FixZip bool `yaml:"fix_zip"`
	}

	// ValidatorConfig drives the optional external epubcheck run.
	ValidatorConfig struct {
		JarPath        string `yaml:"jar_path,omitempty" validate:"omitempty,filepath"`
		JavaPath       string `yaml:"java_path"`
		TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Book      BookConfig      `yaml:"book"`
		Validator ValidatorConfig `yaml:"validator"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
