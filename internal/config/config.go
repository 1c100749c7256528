// Package config reads evalsheet settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/layout"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

// Environment variable names.
const (
	EnvPassword   = "EVALSHEET_PASSWORD"
	EnvBackend    = "EVALSHEET_BACKEND"
	EnvTemplate   = "EVALSHEET_TEMPLATE"
	EnvLayout     = "EVALSHEET_LAYOUT"
	EnvVBAProject = "EVALSHEET_VBA_PROJECT"
	EnvAddr       = "EVALSHEET_ADDR"
	EnvTempDir    = "EVALSHEET_TEMP_DIR"
	EnvLogLevel   = "EVALSHEET_LOG_LEVEL"
)

// Config holds settings shared by the CLI, the HTTP server and the MCP
// server. Command-line flags override these values.
type Config struct {
	Password   string
	Backend    string
	Template   string
	Layout     string
	VBAProject string
	Addr       string
	TempDir    string
	LogLevel   string
}

// Load reads envFile (or ".env" when empty) into the process environment
// and returns the resulting configuration. A missing default .env file is
// not an error; a missing explicit one is.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from EVALSHEET_* variables.
func FromEnv() Config {
	return Config{
		Password:   getenv(EnvPassword, evalsheet.DefaultPassword),
		Backend:    getenv(EnvBackend, workbook.BackendAuto),
		Template:   getenv(EnvTemplate, "templates/Template.xlsx"),
		Layout:     os.Getenv(EnvLayout),
		VBAProject: os.Getenv(EnvVBAProject),
		Addr:       getenv(EnvAddr, ":8080"),
		TempDir:    getenv(EnvTempDir, os.TempDir()),
		LogLevel:   getenv(EnvLogLevel, "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Options converts the configuration into generation options, loading the
// layout and VBA project files it names.
func (c Config) Options() (evalsheet.Options, error) {
	opts := evalsheet.DefaultOptions()
	opts.Backend = c.Backend
	opts.Password = c.Password

	if c.Layout != "" {
		l, err := layout.Load(c.Layout)
		if err != nil {
			return opts, fmt.Errorf("failed to load layout: %w", err)
		}
		opts.Layout = l
	}
	if c.VBAProject != "" {
		data, err := os.ReadFile(c.VBAProject)
		if err != nil {
			return opts, fmt.Errorf("failed to read VBA project: %w", err)
		}
		opts.VBAProject = data
	}
	return opts, nil
}

// ApplyLogLevel sets the level of the standard logrus logger.
func (c Config) ApplyLogLevel() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}
