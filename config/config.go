package config

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

// Bounds of a custom icon size.
const (
	MinSize = 8
	MaxSize = 1024
)

// Config represents the application configuration
type Config struct {
	Sizes   []int         `yaml:"sizes"`
	Filter  string        `yaml:"filter"`
	Workers int           `yaml:"workers"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`
	Package PackageConfig `yaml:"package"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Package bool   `yaml:"package"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PackageConfig struct {
	Name            string `yaml:"name"`
	ThemeColor      string `yaml:"theme_color"`
	BackgroundColor string `yaml:"background_color"`
	Display         string `yaml:"display"`
}

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"mitchell":   imaging.MitchellNetravali,
	"catmullrom": imaging.CatmullRom,
	"lanczos":    imaging.Lanczos,
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Sizes:   []int{16, 32, 48, 64, 180, 192, 512},
		Filter:  "lanczos",
		Workers: runtime.NumCPU(),
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// Load reads and parses the configuration file.
// Fields missing from the file keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := ValidateSizes(c.Sizes); err != nil {
		return err
	}
	if _, ok := filters[strings.ToLower(c.Filter)]; !ok {
		return fmt.Errorf("unknown filter %q, expected one of %s", c.Filter, strings.Join(FilterNames(), ", "))
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers should be positive, got %d", c.Workers)
	}
	return nil
}

// ResampleFilter returns the imaging filter selected by name.
func (c *Config) ResampleFilter() imaging.ResampleFilter {
	if f, ok := filters[strings.ToLower(c.Filter)]; ok {
		return f
	}
	return imaging.Lanczos
}

// FilterNames lists the accepted filter names.
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateSizes checks that at least one size is requested, each size is
// between MinSize and MaxSize and no size is repeated.
func ValidateSizes(sizes []int) error {
	if len(sizes) == 0 {
		return fmt.Errorf("at least one icon size is required")
	}
	seen := make(map[int]bool, len(sizes))
	for _, s := range sizes {
		if s < MinSize || s > MaxSize {
			return fmt.Errorf("icon size %d out of range [%d, %d]", s, MinSize, MaxSize)
		}
		if seen[s] {
			return fmt.Errorf("duplicated icon size %d", s)
		}
		seen[s] = true
	}
	return nil
}

// ParseSizes parses a comma separated list of sizes, e.g. "16,32,48".
// An "NxN" notation is accepted as well.
func ParseSizes(s string) ([]int, error) {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if w, h, ok := strings.Cut(strings.ToLower(field), "x"); ok {
			if w != h {
				return nil, fmt.Errorf("icon size %q is not square", field)
			}
			field = w
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid icon size %q", field)
		}
		sizes = append(sizes, n)
	}
	if err := ValidateSizes(sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}
