// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package conf

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/openshelf/loansync/pkg/account"
)

// Client engine configuration
type Config struct {
	LogLevel string `yaml:"log_level" envconfig:"log_level"` // "debug", "info", "warn", "error"

	// DataDir is the root under which book databases are stored.
	DataDir string `yaml:"data_dir" envconfig:"data_dir" validate:"required"`

	// Dsn locates the account store; defaults to a sqlite file in DataDir.
	Dsn string `yaml:"dsn" envconfig:"dsn"`

	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" envconfig:"http_timeout_seconds"`

	Provider account.Provider `yaml:"provider"`
}

// Init reads the configuration file, applies environment overrides with the
// LOANSYNC_ prefix, and fills in defaults.
func Init(configFile string) (*Config, error) {

	var c Config

	if configFile != "" {
		f, _ := filepath.Abs(configFile)
		yamlData, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		err = yaml.Unmarshal(yamlData, &c)
		if err != nil {
			return nil, err
		}

	} else {
		return nil, errors.New("failed to find the configuration file")
	}

	if err := envconfig.Process("loansync", &c); err != nil {
		return nil, err
	}

	if c.Dsn == "" {
		c.Dsn = "sqlite3://" + filepath.Join(c.DataDir, "accounts.sqlite")
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = 30
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks required fields and values
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Provider.Validate()
}

// InitLogging applies the configured log level.
func (c *Config) InitLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
