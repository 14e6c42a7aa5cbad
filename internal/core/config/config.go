package config

import (
	"checkout/internal/infra/catalog"
	"checkout/internal/infra/client"
	"checkout/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig        `yaml:"server"`
	Client   client.Config       `yaml:"client"`
	Catalog  CatalogConfig       `yaml:"catalog"`
	Redis    catalog.RedisConfig `yaml:"redis"`
	Database postgres.Config     `yaml:"database"`
	Logging  LoggingConfig       `yaml:"logging"`
	Sales    SalesConfig         `yaml:"sales"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CatalogConfig holds the stock catalog source. An empty URL selects the
// local in-process catalog.
type CatalogConfig struct {
	URL string `yaml:"url"`
}

// SalesConfig holds sale semantics: the flat tax multiplier and the operator
// roles allowed to finalize. TaxRate is a pointer so an absent key (default
// applies) is distinguishable from an explicit 0 (tax-free).
type SalesConfig struct {
	TaxRate       *float64 `yaml:"tax_rate"`
	FinalizeRoles []string `yaml:"finalize_roles"`
}
