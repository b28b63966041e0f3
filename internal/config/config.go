// Package config provides configuration management for the crawler.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config holds the crawl parameters. Optional fields use pointers so a
// config file can distinguish "absent" from an explicit zero.
type Config struct {
	TotalRepositories              *int     `json:"total_repositories"`
	SeedQueries                    []string `json:"seed_queries"`
	NumberWorkers                  *int     `json:"number_workers"`
	MaxRepositoryFetchedPerRequest *int     `json:"max_repository_fetched_per_request"`
	PostgresConnectionString       string   `json:"postgres_connection_string"`
	Verbose                        *bool    `json:"verbose"`
}

// New returns the defaults, overlaid with the JSON file at configPath when
// one is given.
func New(configPath string) (*Config, error) {
	totalRepositories := 100000
	numberWorkers := 1
	maxFetched := 100
	verbose := false

	conf := Config{
		TotalRepositories:              &totalRepositories,
		SeedQueries:                    []string{"is:public"},
		NumberWorkers:                  &numberWorkers,
		MaxRepositoryFetchedPerRequest: &maxFetched,
		Verbose:                        &verbose,
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, &conf); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return &conf, nil
}

// Validate checks the crawl parameters before any network or database work
// starts.
func (c *Config) Validate() error {
	if c.TotalRepositories == nil || *c.TotalRepositories < 1 {
		return errors.New("total_repositories must be at least 1")
	}
	if len(c.SeedQueries) == 0 {
		return errors.New("at least one seed query is required")
	}
	if c.NumberWorkers == nil || *c.NumberWorkers < 1 {
		return errors.New("number_workers must be at least 1")
	}
	if c.MaxRepositoryFetchedPerRequest == nil ||
		*c.MaxRepositoryFetchedPerRequest < 1 || *c.MaxRepositoryFetchedPerRequest > 100 {
		return fmt.Errorf("max_repository_fetched_per_request must be between 1 and 100")
	}
	if c.PostgresConnectionString == "" {
		return errors.New("postgres connection string is required")
	}
	return nil
}
