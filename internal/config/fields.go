package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"news-archive-parser/internal/scraper"
)

// LoadFieldSet загружает описание полей карточки из YAML файла
func LoadFieldSet(filePath string) ([]scraper.FieldSpec, error) {
	if filePath == "" {
		return nil, fmt.Errorf("fields file path is empty")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("fields file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open fields file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close fields file: %v\n", closeErr)
		}
	}()

	var set scraper.FieldSet
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse fields YAML: %w", err)
	}

	if err := validateFields(set.Fields); err != nil {
		return nil, err
	}

	return set.Fields, nil
}

// validateFields проверяет имена и типы полей
func validateFields(fields []scraper.FieldSpec) error {
	if len(fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("fields[%d].name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case "", scraper.KindText, scraper.KindURL:
		default:
			return fmt.Errorf("fields[%d].kind must be 'text' or 'url', got %q", i, f.Kind)
		}
	}

	return nil
}
