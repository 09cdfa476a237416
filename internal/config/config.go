package config

import (
	"errors"
	"fmt"
	"time"

	"news-archive-parser/internal/normalize"
	"news-archive-parser/internal/scraper"
)

const (
	StrategySequential = "sequential"
	StrategyOffsetAJAX = "offset_ajax"

	DefaultPerPage = 50
)

// Ошибки валидации конфигурации
var (
	ErrNoSources             = errors.New("at least one source is required")
	ErrSourceMissingName     = errors.New("sources[].name is required")
	ErrDuplicateSource       = errors.New("sources[].name must be unique")
	ErrUnknownStrategy       = errors.New("sources[].strategy must be 'sequential' or 'offset_ajax'")
	ErrMissingItemSelector   = errors.New("sources[].item_selector is required")
	ErrMissingFields         = errors.New("sources[].fields or sources[].fields_file is required")
	ErrMissingBaseURL        = errors.New("sources[].sequential.base_url is required")
	ErrMissingPagePath       = errors.New("sources[].sequential.page_path is required")
	ErrNegativeStartPage     = errors.New("sources[].sequential.start_page must be >= 0")
	ErrMissingStartURL       = errors.New("sources[].offset_ajax.start_url is required")
	ErrMissingLoadMore       = errors.New("sources[].offset_ajax.load_more_selector is required")
	ErrMissingAJAXTemplate   = errors.New("sources[].offset_ajax.endpoint_template is required")
	ErrMissingUserAgent      = errors.New("http.user_agent is required")
	ErrInvalidTimeout        = errors.New("http.connect_timeout_ms and http.total_timeout_ms must be > 0")
	ErrInvalidRateLimit      = errors.New("rate_limit.max_concurrent_per_host and rate_limit.rpm must be > 0")
	ErrInvalidRobotsTTL      = errors.New("robots_cache_ttl_hours must be > 0")
	ErrInvalidConcurrency    = errors.New("concurrency.max_parallel_chains must be >= 0")
	ErrInvalidStorageDriver  = errors.New("storage.driver must be 'mssql' or 'sqlite'")
	ErrMissingDSN            = errors.New("storage.dsn is required")
	ErrInvalidCommandTimeout = errors.New("storage.command_timeout_ms must be > 0")
	ErrInvalidSchedulerMode  = errors.New("scheduler.mode must be 'interval', 'cron' or 'oneshot'")
	ErrInvalidInterval       = errors.New("scheduler.interval_s must be > 0 when mode is 'interval'")
	ErrMissingCronExpr       = errors.New("scheduler.cron_expr must be set when mode is 'cron'")
	ErrMissingLogLevel       = errors.New("observability.log_level is required")
	ErrInvalidRod            = errors.New("rod.page_timeout_s and rod.wait_load_timeout_s must be > 0 when rod.enabled is true")
)

type Config struct {
	Sources             []SourceConfig      `yaml:"sources"`
	Rod                 RodConfig           `yaml:"rod"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	HTTP                HttpConfig          `yaml:"http"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	Concurrency         ConcurrencyConfig   `yaml:"concurrency"`
	Normalize           normalize.Options   `yaml:"normalize"`
	Storage             StorageConfig       `yaml:"storage"`
	Scheduler           SchedulerConfig     `yaml:"scheduler"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

// SourceConfig описывает один архив и стратегию его пагинации
type SourceConfig struct {
	Name         string              `yaml:"name"`
	Enabled      bool                `yaml:"enabled"`
	Strategy     string              `yaml:"strategy"`
	ItemSelector string              `yaml:"item_selector"`
	Fields       []scraper.FieldSpec `yaml:"fields"`
	FieldsFile   string              `yaml:"fields_file"`
	TitleField   string              `yaml:"title_field"`
	LinkField    string              `yaml:"link_field"`
	DateField    string              `yaml:"date_field"`
	Sequential   SequentialConfig    `yaml:"sequential"`
	OffsetAJAX   OffsetAJAXConfig    `yaml:"offset_ajax"`
}

// SequentialConfig: пагинация вида /archiv?page=N
type SequentialConfig struct {
	BaseURL   string `yaml:"base_url"`
	PagePath  string `yaml:"page_path"`
	PageParam string `yaml:"page_param"`
	StartPage int    `yaml:"start_page"`
}

// OffsetAJAXConfig: стартовая страница с кнопкой "Mehr Artikel" и AJAX-подгрузка по offset
type OffsetAJAXConfig struct {
	StartURL         string `yaml:"start_url"`
	LoadMoreSelector string `yaml:"load_more_selector"`
	PerPageAttr      string `yaml:"per_page_attr"`
	ParamsAttr       string `yaml:"params_attr"`
	DefaultPerPage   int    `yaml:"default_per_page"`
	EndpointTemplate string `yaml:"endpoint_template"`
}

type RodConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ChromePath       string `yaml:"chrome_path"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
	LazyLoadDelayS   int    `yaml:"lazy_load_delay_s"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
	AcceptLanguage            string `yaml:"accept_language"`
	RespectRobots             bool   `yaml:"respect_robots"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type ConcurrencyConfig struct {
	// 0: все источники параллельно
	MaxParallelChains int `yaml:"max_parallel_chains"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type SchedulerConfig struct {
	Mode      string `yaml:"mode"`
	IntervalS int    `yaml:"interval_s"`
	CronExpr  string `yaml:"cron_expr"`
}

type ObservabilityConfig struct {
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
}

// ApplyDefaults заполняет необязательные поля значениями по умолчанию
func (c *Config) ApplyDefaults() {
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.TitleField == "" {
			src.TitleField = "title"
		}
		if src.LinkField == "" {
			src.LinkField = "link"
		}
		if src.Sequential.PageParam == "" {
			src.Sequential.PageParam = "page"
		}
		if src.OffsetAJAX.PerPageAttr == "" {
			src.OffsetAJAX.PerPageAttr = "data-per-load"
		}
		if src.OffsetAJAX.ParamsAttr == "" {
			src.OffsetAJAX.ParamsAttr = "data-last-param"
		}
		if src.OffsetAJAX.DefaultPerPage <= 0 {
			src.OffsetAJAX.DefaultPerPage = DefaultPerPage
		}
	}
	if c.HTTP.MaxIdleConnections == 0 {
		c.HTTP.MaxIdleConnections = 100
	}
	if c.HTTP.MaxIdleConnectionsPerHost == 0 {
		c.HTTP.MaxIdleConnectionsPerHost = 10
	}
	if c.HTTP.IdleConnectionTimeoutS == 0 {
		c.HTTP.IdleConnectionTimeoutS = 90
	}
	if c.Scheduler.Mode == "" {
		c.Scheduler.Mode = "oneshot"
	}
}

// Validation
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source %d (%s): %w", i, src.Name, err)
		}
		if seen[src.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name)
		}
		seen[src.Name] = true
	}
	if c.HTTP.UserAgent == "" {
		return ErrMissingUserAgent
	}
	if c.HTTP.ConnectTimeoutMS <= 0 || c.HTTP.TotalTimeoutMS <= 0 {
		return ErrInvalidTimeout
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 || c.RateLimit.RPM <= 0 {
		return ErrInvalidRateLimit
	}
	if c.HTTP.RespectRobots && c.RobotsCacheTTLHours <= 0 {
		return ErrInvalidRobotsTTL
	}
	if c.Concurrency.MaxParallelChains < 0 {
		return ErrInvalidConcurrency
	}
	if c.Storage.Driver != "mssql" && c.Storage.Driver != "sqlite" {
		return ErrInvalidStorageDriver
	}
	if c.Storage.DSN == "" {
		return ErrMissingDSN
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return ErrInvalidCommandTimeout
	}
	switch c.Scheduler.Mode {
	case "oneshot":
	case "interval":
		if c.Scheduler.IntervalS <= 0 {
			return ErrInvalidInterval
		}
	case "cron":
		if c.Scheduler.CronExpr == "" {
			return ErrMissingCronExpr
		}
	default:
		return ErrInvalidSchedulerMode
	}
	if c.Observability.LogLevel == "" {
		return ErrMissingLogLevel
	}
	if c.Rod.Enabled && (c.Rod.PageTimeoutS <= 0 || c.Rod.WaitLoadTimeoutS <= 0) {
		return ErrInvalidRod
	}
	return nil
}

func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return ErrSourceMissingName
	}
	if s.ItemSelector == "" {
		return ErrMissingItemSelector
	}
	if len(s.Fields) == 0 && s.FieldsFile == "" {
		return ErrMissingFields
	}
	switch s.Strategy {
	case StrategySequential:
		if s.Sequential.BaseURL == "" {
			return ErrMissingBaseURL
		}
		if s.Sequential.PagePath == "" {
			return ErrMissingPagePath
		}
		if s.Sequential.StartPage < 0 {
			return ErrNegativeStartPage
		}
	case StrategyOffsetAJAX:
		if s.OffsetAJAX.StartURL == "" {
			return ErrMissingStartURL
		}
		if s.OffsetAJAX.LoadMoreSelector == "" {
			return ErrMissingLoadMore
		}
		if s.OffsetAJAX.EndpointTemplate == "" {
			return ErrMissingAJAXTemplate
		}
	default:
		return ErrUnknownStrategy
	}
	return nil
}

// EnabledSources возвращает включённые источники; если names не пуст, то только перечисленные
func (c *Config) EnabledSources(names ...string) ([]SourceConfig, error) {
	if len(names) == 0 {
		var out []SourceConfig
		for _, src := range c.Sources {
			if src.Enabled {
				out = append(out, src)
			}
		}
		return out, nil
	}

	out := make([]SourceConfig, 0, len(names))
	for _, name := range names {
		src, ok := c.Source(name)
		if !ok {
			return nil, fmt.Errorf("unknown source: %s", name)
		}
		out = append(out, src)
	}
	return out, nil
}

func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalS) * time.Second
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetRodLazyLoadDelay() time.Duration {
	return time.Duration(c.Rod.LazyLoadDelayS) * time.Second
}
