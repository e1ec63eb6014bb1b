// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "talent-harvester/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CatalogConfig holds settings for the upstream author catalog.
type CatalogConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the catalog API root (default https://api.openalex.org).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is sent as the api_key parameter when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email is sent as the mailto parameter for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// PerPage is the page size requested from the catalog (default 200, max 200).
	PerPage int `json:"per_page" yaml:"per_page"`

	// RequestsPerSecond bounds the outbound request rate (default 10).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// CountriesURL is the country naming service root
	// (default https://restcountries.com/v3.1).
	CountriesURL string `json:"countries_url" yaml:"countries_url"`
}

// CapsConfig bounds how many researchers may be admitted. A zero cap means
// no limit at that tier.
type CapsConfig struct {
	// MaxGlobal caps the all-time number of stored researchers (default 60000).
	MaxGlobal int `json:"max_global" yaml:"max_global"`

	// MaxSession caps admissions within one process run (default 30000).
	MaxSession int `json:"max_session" yaml:"max_session"`

	// MaxPartition caps admissions credited to a single topic (default 500).
	MaxPartition int `json:"max_partition" yaml:"max_partition"`
}

// HarvestConfig holds settings for an ingestion run.
type HarvestConfig struct {
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
	Caps    CapsConfig    `json:"caps" yaml:"caps"`

	// DatabasePath is the SQLite file holding harvested data.
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// KeywordsFile lists the discovery keywords (YAML or JSON array).
	KeywordsFile string `json:"keywords_file" yaml:"keywords_file"`

	// PageDelay is the pause after every committed page (default 1.2s).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// PartitionDelay is the pause between topics (default 1s).
	PartitionDelay time.Duration `json:"partition_delay" yaml:"partition_delay"`

	// Workers is the number of topics walked concurrently (default 1).
	Workers int `json:"workers" yaml:"workers"`
}

// Defaults used when a HarvestConfig field is left at its zero value.
const (
	DefaultCatalogURL     = "https://api.openalex.org"
	DefaultCountriesURL   = "https://restcountries.com/v3.1"
	DefaultPerPage        = 200
	DefaultRequestRate    = 10.0
	DefaultTimeout        = 30 * time.Second
	DefaultUserAgent      = "talent-harvester/0.1"
	DefaultMaxGlobal      = 60000
	DefaultMaxSession     = 30000
	DefaultMaxPartition   = 500
	DefaultPageDelay      = 1200 * time.Millisecond
	DefaultPartitionDelay = 1 * time.Second
	DefaultDatabasePath   = "data/talent.db"
)

// WithDefaults returns a copy of c with zero-valued settings filled in.
// Caps are left untouched since zero means unlimited there.
func (c HarvestConfig) WithDefaults() HarvestConfig {
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = DefaultCatalogURL
	}
	if c.Catalog.CountriesURL == "" {
		c.Catalog.CountriesURL = DefaultCountriesURL
	}
	if c.Catalog.PerPage <= 0 || c.Catalog.PerPage > DefaultPerPage {
		c.Catalog.PerPage = DefaultPerPage
	}
	if c.Catalog.RequestsPerSecond <= 0 {
		c.Catalog.RequestsPerSecond = DefaultRequestRate
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = DefaultTimeout
	}
	if c.Catalog.UserAgent == "" {
		c.Catalog.UserAgent = DefaultUserAgent
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}
