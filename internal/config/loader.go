package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvStorageDSN переопределяет storage.dsn (удобно держать пароль в .env)
const EnvStorageDSN = "NEWS_ARCHIVE_STORAGE_DSN"

func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			// Логируем ошибку, но не возвращаем, иначе перезапишем основную ошибку
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if dsn := os.Getenv(EnvStorageDSN); dsn != "" {
		cfg.Storage.DSN = dsn
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	// fields_file указывается относительно каталога конфига
	baseDir := filepath.Dir(filePath)
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.FieldsFile == "" {
			continue
		}
		path := src.FieldsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		fields, err := LoadFieldSet(path)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		src.Fields = append(src.Fields, fields...)
	}

	for i := range cfg.Sources {
		if err := validateFields(cfg.Sources[i].Fields); err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Sources[i].Name, err)
		}
	}

	return &cfg, nil
}
