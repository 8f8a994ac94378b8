package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
)

// LoadSettings reads settings from a YAML file. A missing file yields defaults;
// keys absent from the file keep their default values.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, apperrors.Wrapf(err, apperrors.CodeConfigMissing, "read settings %s", path)
	}
	return ParseSettings(content)
}

// ParseSettings decodes YAML content over the defaults and validates the result.
func ParseSettings(content []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(content, &s); err != nil {
		return DefaultSettings(), apperrors.Wrap(err, apperrors.CodeConfigInvalid, "decode settings yaml")
	}
	if err := s.Validate(); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// SaveSettings writes settings with a temp file and rename so readers never
// observe a partially written file.
func SaveSettings(path string, s Settings) error {
	content, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
