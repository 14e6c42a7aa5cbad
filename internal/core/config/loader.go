package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"checkout/internal/infra/client"
)

// Load reads configuration from a YAML file. Environment variables in the
// file are expanded before parsing. Client defaults are pre-filled so an
// explicit zero (e.g. retry_attempts: 0) survives while absent keys get the
// documented defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := AppConfig{
		Client: client.DefaultConfig(""),
	}
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Sales.TaxRate == nil {
		rate := 0.19
		cfg.Sales.TaxRate = &rate
	}
	if len(cfg.Sales.FinalizeRoles) == 0 {
		cfg.Sales.FinalizeRoles = []string{"cashier", "manager"}
	}

	return &cfg, nil
}
