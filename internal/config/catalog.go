package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"studiobook/internal/catalog"
	"studiobook/internal/discount"
	"studiobook/internal/models"
	"studiobook/internal/money"
	"studiobook/internal/pricing"
)

// PackageConfig is a priced duration of a studio. Price is in pounds.
type PackageConfig struct {
	Label string  `yaml:"label"` // "2 hours"
	Hours float64 `yaml:"hours"`
	Price float64 `yaml:"price"` // 150.00
}

// StudioConfig represents a single studio and its packages.
type StudioConfig struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	CalendarID  string          `yaml:"calendar_id"`
	Packages    []PackageConfig `yaml:"packages"`
}

// AddOnConfig is an optional extra. Price is in pounds.
type AddOnConfig struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Price       float64 `yaml:"price"`
	MaxQuantity int     `yaml:"max_quantity"`
}

// CatalogConfig is the root of catalog.yaml.
type CatalogConfig struct {
	Studios       []StudioConfig    `yaml:"studios"`
	AddOns        []AddOnConfig     `yaml:"add_ons"`
	DiscountCodes []discount.Record `yaml:"discount_codes"`
}

// LoadCatalog reads, validates and converts catalog YAML at path. ${VAR} placeholders
// are expanded from the environment.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog([]byte(os.ExpandEnv(string(data))))
}

// ParseCatalog decodes catalog YAML into a typed catalog.
func ParseCatalog(data []byte) (*catalog.Catalog, error) {
	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return cfg.Build()
}

// Validate checks the raw values that the typed catalog cannot see, such as prices in pounds.
func (c *CatalogConfig) Validate() error {
	if len(c.Studios) == 0 {
		return fmt.Errorf("no studios defined")
	}
	for i, s := range c.Studios {
		if s.ID == "" {
			return fmt.Errorf("studios[%d]: id is required", i)
		}
		if len(s.Packages) == 0 {
			return fmt.Errorf("studios[%d]: at least one package is required", i)
		}
		for j, p := range s.Packages {
			if p.Hours <= 0 {
				return fmt.Errorf("studios[%d].packages[%d]: hours must be positive", i, j)
			}
			if p.Price < 0 {
				return fmt.Errorf("studios[%d].packages[%d]: price cannot be negative", i, j)
			}
		}
	}
	for i, a := range c.AddOns {
		if a.Price < 0 {
			return fmt.Errorf("add_ons[%d]: price cannot be negative", i)
		}
	}
	return nil
}

// Build converts the raw catalog into its typed form.
func (c *CatalogConfig) Build() (*catalog.Catalog, error) {
	var (
		studios  []catalog.Studio
		packages []pricing.PricingPackage
		addOns   []pricing.AddOn
		codes    []discount.Code
	)

	for _, s := range c.Studios {
		id := models.Studio(s.ID)
		name := s.Name
		if name == "" {
			name = s.ID
		}
		studios = append(studios, catalog.Studio{ID: id, Name: name, Description: s.Description, CalendarID: s.CalendarID})
		for _, p := range s.Packages {
			packages = append(packages, pricing.PricingPackage{
				Studio:         id,
				DurationLabel:  p.Label,
				DurationHours:  p.Hours,
				BasePricePence: money.FromMajor(p.Price),
			})
		}
	}

	for _, a := range c.AddOns {
		addOns = append(addOns, pricing.AddOn{
			ID:          a.ID,
			Name:        a.Name,
			PricePence:  money.FromMajor(a.Price),
			MaxQuantity: a.MaxQuantity,
		})
	}

	for i, r := range c.DiscountCodes {
		code, err := r.Parse()
		if err != nil {
			return nil, fmt.Errorf("discount_codes[%d]: %w", i, err)
		}
		codes = append(codes, code)
	}

	return catalog.New(studios, packages, addOns, codes)
}
